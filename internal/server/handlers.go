package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/extract"
	"github.com/hyperjump/saiyo/internal/keyword"
	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/internal/profile"
	"github.com/hyperjump/saiyo/pkg/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}
	s.runSearch(w, r, &req)
}

// handleSearchFile searches with the text of an uploaded job description.
func (s *Server) handleSearchFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.UploadLimitMB<<20)
	if err := r.ParseMultipartForm(maxMultipartMemoryBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "multipart form expected, within the upload limit")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "file field is required")
		return
	}
	defer file.Close()

	var k int
	if v := r.FormValue("k"); v != "" {
		if k, err = strconv.Atoi(v); err != nil {
			writeError(w, r, http.StatusBadRequest, codeInvalidQuery, "k must be an integer")
			return
		}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "upload could not be read")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	text, err := s.extractor.ExtractBytes(data, ext)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			s.handleError(w, r, err)
			return
		}
		utils.LoggerFromContext(r.Context()).Warn("job description not extracted",
			zap.String("stage", "extract"), zap.String("file", header.Filename), zap.Error(err))
		writeError(w, r, http.StatusUnprocessableEntity, codeUnreadableDocument, "document text could not be extracted")
		return
	}
	s.runSearch(w, r, &models.SearchRequest{Query: text, K: k})
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req *models.SearchRequest) {
	utils.LoggerFromContext(r.Context()).Debug("search request",
		zap.Int("query_len", len(req.Query)), zap.Int("k", req.K))
	resp, err := s.engine.Search(r.Context(), req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type putCandidateResponse struct {
	Identity  string `json:"identity"`
	Positions []int  `json:"positions"`
}

// handlePutCandidate stores and indexes a profile. The body identity may be empty, in which case
// the path identity is used, but must not name a different candidate.
func (s *Server) handlePutCandidate(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(p.Identity) == "" {
		p.Identity = identity
	} else if !strings.EqualFold(strings.TrimSpace(p.Identity), strings.TrimSpace(identity)) {
		writeError(w, r, http.StatusBadRequest, codeInvalidProfile, "body identity does not match the path")
		return
	}
	positions, err := s.manager.IndexProfile(r.Context(), &p)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, putCandidateResponse{Identity: p.Identity, Positions: positions})
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProfile(r.Context(), chi.URLParam(r, "identity"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	removed, err := s.manager.RemoveCandidate(r.Context(), identity)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": identity, "removed_entries": removed})
}

type listCandidatesResponse struct {
	Candidates []*keyword.Hit `json:"candidates"`
	Total      int64          `json:"total,omitempty"`
}

// handleListCandidates looks candidates up in the directory when q is set, and otherwise pages
// through the profile store in identity order.
func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "limit must be between 1 and 200")
		return
	}
	if q == "" {
		s.listProfiles(w, r, limit)
		return
	}
	if s.directory == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeDirectoryDisabled, "candidate directory is not enabled")
		return
	}
	fuzzy, _ := strconv.ParseBool(r.URL.Query().Get("fuzzy"))
	hits, err := s.directory.Search(r.Context(), q, limit, &keyword.SearchOptions{FuzzyEnabled: fuzzy})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if hits == nil {
		hits = []*keyword.Hit{}
	}
	writeJSON(w, http.StatusOK, listCandidatesResponse{Candidates: hits})
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request, limit int) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "offset must be a non-negative integer")
		return
	}
	profiles, err := s.store.ListProfiles(r.Context(), offset, limit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	total, err := s.store.CountProfiles(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	out := listCandidatesResponse{Candidates: make([]*keyword.Hit, 0, len(profiles)), Total: total}
	for _, p := range profiles {
		out.Candidates = append(out.Candidates, &keyword.Hit{
			Identity:    p.Identity,
			Name:        p.Name,
			CurrentRole: p.CurrentRole,
			Company:     p.Company,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	report, err := s.manager.Rebuild(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := CollectStatus(r.Context(), s.manager, s.store, s.directory, s.cfg)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
