package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/embedding"
	"github.com/hyperjump/saiyo/internal/extract"
	"github.com/hyperjump/saiyo/internal/indexer"
	"github.com/hyperjump/saiyo/internal/profile"
	"github.com/hyperjump/saiyo/internal/search"
	"github.com/hyperjump/saiyo/internal/storage"
	"github.com/hyperjump/saiyo/internal/vector"
	"github.com/hyperjump/saiyo/pkg/utils"
)

const (
	codeInvalidQuery        = "invalid_query"
	codeEmptyIndex          = "empty_index"
	codeNoMatches           = "no_matches"
	codeEmbeddingFailed     = "embedding_unavailable"
	codeStoreUnavailable    = "profile_store_unavailable"
	codePersistence         = "persistence_failure"
	codeNotFound            = "not_found"
	codeInvalidProfile      = "invalid_profile"
	codeUnsupportedFormat   = "unsupported_format"
	codeUnreadableDocument  = "unreadable_document"
	codeBadRequest          = "bad_request"
	codeDirectoryDisabled   = "directory_unavailable"
	codeInternal            = "internal_error"
	codeCanceled            = "canceled"
	codeTimeout             = "timeout"
	maxMultipartMemoryBytes = 8 << 20

	// statusClientClosedRequest is the nginx convention for a request the client abandoned.
	statusClientClosedRequest = 499
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the typed error of a failed request.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// errorHandler writes the response for err and reports whether it did.
type errorHandler func(w http.ResponseWriter, r *http.Request, err error) bool

func sentinelHandler(sentinel error, status int, code, message string) errorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, r, status, code, message)
		return true
	}
}

// defaultErrorHandlers is ordered: the first matching sentinel wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(search.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery, "query is empty or k is out of range"),
		sentinelHandler(search.ErrEmptyIndex, http.StatusConflict, codeEmptyIndex, "no candidates are indexed"),
		sentinelHandler(search.ErrNoMatches, http.StatusNotFound, codeNoMatches, "no candidate matched the query"),
		sentinelHandler(search.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingFailed, "embedding provider failed"),
		sentinelHandler(embedding.ErrProvider, http.StatusBadGateway, codeEmbeddingFailed, "embedding provider failed"),
		sentinelHandler(search.ErrProfileStore, http.StatusServiceUnavailable, codeStoreUnavailable, "profile store unavailable"),
		sentinelHandler(vector.ErrPersistence, http.StatusInternalServerError, codePersistence, "index could not be persisted"),
		sentinelHandler(storage.ErrProfileNotFound, http.StatusNotFound, codeNotFound, "candidate not found"),
		sentinelHandler(profile.ErrInvalidProfile, http.StatusBadRequest, codeInvalidProfile, "profile is invalid"),
		sentinelHandler(indexer.ErrInvalidCandidate, http.StatusBadRequest, codeInvalidProfile, "profile is invalid"),
		sentinelHandler(extract.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat, "unsupported document format"),
		sentinelHandler(context.Canceled, statusClientClosedRequest, codeCanceled, "request canceled"),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout, "request timed out"),
	}
}

// handleError maps err to a typed response. Internal error text is logged, never returned.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := utils.LoggerFromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, r, err) {
			logger.Warn("request failed", zap.String("stage", "http"), zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.String("stage", "http"), zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}
