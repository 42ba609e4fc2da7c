package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/internal/server"
)

func searchViaHTTP(ctx context.Context, serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(serverURL, "/search"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	var resp models.SearchResponse
	if err := doJSON(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// searchFileViaHTTP uploads a job description document to the server.
func searchFileViaHTTP(ctx context.Context, serverURL, path string, k int) (*models.SearchResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job description: %w", err)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if k > 0 {
		if err := mw.WriteField("k", strconv.Itoa(k)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(serverURL, "/search/file"), &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	var resp models.SearchResponse
	if err := doJSON(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func statusViaHTTP(ctx context.Context, serverURL string) (*models.Status, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL(serverURL, "/status"), nil)
	if err != nil {
		return nil, err
	}
	var st models.Status
	if err := doJSON(httpReq, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func apiURL(serverURL, path string) string {
	return strings.TrimRight(serverURL, "/") + "/api/v1" + path
}

// doJSON sends req and decodes a 200 response into out. Other statuses are decoded as the
// server's error body when possible.
func doJSON(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var body server.ErrorBody
		if json.Unmarshal(b, &body) == nil && body.Error.Code != "" {
			return fmt.Errorf("server returned %d %s: %s", resp.StatusCode, body.Error.Code, body.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
