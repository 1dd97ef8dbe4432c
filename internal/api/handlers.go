package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/store"
)

// multipartOverhead is the slack allowed on top of the file size limit for
// multipart framing and other form fields.
const multipartOverhead = 1 << 20

var endpoints = map[string]string{
	"health":     "/health",
	"uploadFile": "/api/files/upload",
	"getFile":    "/api/files/:id",
	"search":     "/api/search",
}

type rootResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

type healthResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	FileID    string `json:"fileId"`
	Message   string `json:"message"`
	FileName  string `json:"fileName"`
	PageCount int    `json:"pageCount"`
}

type fileResponse struct {
	Success bool       `json:"success"`
	File    store.Info `json:"file"`
}

type listResponse struct {
	Success bool         `json:"success"`
	Files   []store.Info `json:"files"`
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query   string         `json:"query"`
	Filters search.Filters `json:"filters"`
	FileID  string         `json:"fileId"`
}

// SearchResponse is the body answered by POST /api/search.
type SearchResponse struct {
	Success      bool            `json:"success"`
	Results      []search.Result `json:"results"`
	TotalResults int             `json:"totalResults"`
	FileName     string          `json:"fileName"`
}

type errorResponse struct {
	Success bool             `json:"success"`
	Error   dferrors.Payload `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{Message: "PDF Search API is running", Endpoints: endpoints})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Message:   "PDF Search API is running",
		Endpoints: endpoints,
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.svc.MaxBytes()
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			s.writeError(w, r, dferrors.New(dferrors.ErrCodeFileTooLarge, "File too large", err))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			s.writeError(w, r, dferrors.New(dferrors.ErrCodeInvalidInput, "No file uploaded", err))
		default:
			s.writeError(w, r, dferrors.New(dferrors.ErrCodeInvalidInput, "Malformed upload", err))
		}
		return
	}
	defer func() { _ = file.Close() }()

	if err := s.svc.CheckUpload(header.Header.Get("Content-Type"), header.Size); err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, dferrors.New(dferrors.ErrCodeInvalidInput, "Failed to read upload", err))
		return
	}

	s.logger.Info("processing upload", slog.String("name", header.Filename), slog.Int("bytes", len(data)))
	rec, err := s.svc.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:   true,
		FileID:    rec.ID,
		Message:   "File uploaded and parsed successfully",
		FileName:  rec.Name,
		PageCount: rec.Document.TotalPages,
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileResponse{Success: true, File: rec.Info()})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	files := make([]store.Info, len(recs))
	for i, rec := range recs {
		files[i] = rec.Info()
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Files: files})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, dferrors.New(dferrors.ErrCodeInvalidInput, "Request body must be JSON", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	rec, results, err := s.svc.Search(ctx, req.FileID, req.Query, req.Filters)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = dferrors.New(dferrors.ErrCodeRequestTimeout, "Search timed out", err)
		}
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Success:      true,
		Results:      results,
		TotalResults: len(results),
		FileName:     rec.Name,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := dferrors.HTTPStatus(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := append([]any{slog.String("path", r.URL.Path), slog.Int("status", status)}, dferrors.LogAttrs(err)...)
	s.logger.Log(r.Context(), level, "request failed", attrs...)

	writeJSON(w, status, errorResponse{Success: false, Error: dferrors.ToPayload(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
