// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/models"
)

const successMessage = "Change order generated successfully"

type generateResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	DownloadURL string   `json:"download_url"`
	Filename    string   `json:"filename"`
	Warnings    []string `json:"warnings,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ==========================
// Generation
// ==========================

func (s *Server) generateFromText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(s.opts.MaxUploadBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		s.errors.WriteError(w, r, s.bodyError(err))
		return
	}

	description := r.FormValue("description")
	if strings.TrimSpace(description) == "" {
		s.errors.WriteError(w, r, apperrors.NewInvalidInputError("form field 'description' is required"))
		return
	}

	s.run(w, r, models.TextRequest{Description: description})
}

func (s *Server) generateFromPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		s.errors.WriteError(w, r, s.bodyError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.errors.WriteError(w, r, apperrors.NewInvalidInputError("multipart field 'file' is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.errors.WriteError(w, r, s.bodyError(err))
		return
	}

	s.run(w, r, models.DocumentRequest{
		Content:  content,
		MimeType: header.Header.Get("Content-Type"),
		Filename: header.Filename,
	})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, req models.GenerationRequest) {
	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.errors.WriteError(w, r, err)
		return
	}

	resp := generateResponse{
		Status:      "success",
		Message:     successMessage,
		DownloadURL: result.Artifact.DownloadURL,
		Filename:    result.Artifact.Filename,
	}
	for _, warning := range result.Warnings {
		resp.Warnings = append(resp.Warnings, warning.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

// bodyError classifies a failure to read the request body.
func (s *Server) bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.NewInvalidInputError(fmt.Sprintf("request body exceeds %d bytes", s.opts.MaxUploadBytes))
	}
	return apperrors.NewInvalidInputError(fmt.Sprintf("malformed request body: %v", err))
}

// ==========================
// Service Endpoints
// ==========================

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": s.opts.Service,
		"version": s.opts.Version,
		"endpoints": map[string]string{
			"POST /generate-from-text": "form field 'description'",
			"POST /generate-from-pdf":  "multipart field 'file' (application/pdf)",
			"GET /health":              "liveness",
			"GET /ready":               "object store reachability",
			"GET /metrics":             "prometheus metrics",
		},
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":               "healthy",
		"service":              s.opts.Service,
		"time":                 s.now().UTC().Format(time.RFC3339),
		"reasoning_configured": s.opts.ReasoningConfigured,
		"storage_configured":   s.opts.StorageConfigured,
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReadyTimeout)
	defer cancel()

	if err := s.runner.Health(ctx); err != nil {
		s.logger.Warn("readiness check failed", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"time":   s.now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}
