// internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-order-generator/internal/common/database"
	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/models"
	"change-order-generator/internal/pipeline"
	validatebreakdown "change-order-generator/internal/workers/change-order/validate-breakdown"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeRunner struct {
	mu        sync.Mutex
	requests  []models.GenerationRequest
	err       error
	healthErr error
}

func (f *fakeRunner) Run(ctx context.Context, req models.GenerationRequest) (*pipeline.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{
		RunID: "run-1",
		Artifact: &models.GeneratedArtifact{
			Filename:    "20240101_000000_deadbeef.xlsx",
			Key:         "change_orders/20240101_000000_deadbeef.xlsx",
			DownloadURL: "https://storage.example.com/change_orders/20240101_000000_deadbeef.xlsx",
		},
		Warnings: []validatebreakdown.Warning{{Category: models.CategoryLabor, Index: 1, Reason: "quantity is missing"}},
	}, nil
}

func (f *fakeRunner) Health(ctx context.Context) error {
	return f.healthErr
}

func (f *fakeRunner) last() models.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*database.RateLimitResult, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return &database.RateLimitResult{Allowed: f.allowed, Remaining: 0, ResetIn: 30 * time.Second}, nil
}

func newTestServer(t *testing.T, runner Runner, limiter Limiter, opts Options) http.Handler {
	if opts.Service == "" {
		opts.Service = "change-order-api"
	}
	return NewServer(runner, limiter, opts, logger.NewTestLogger(t)).Router()
}

func postForm(handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func postFile(t *testing.T, handler http.Handler, field, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate-from-pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ==========================
// Generate From Text
// ==========================

func TestGenerateFromText_Success(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestServer(t, runner, nil, Options{})

	rec := postForm(handler, "/generate-from-text", url.Values{"description": {"Install 4 outlets"}})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, successMessage, body["message"])
	assert.Equal(t, "https://storage.example.com/change_orders/20240101_000000_deadbeef.xlsx", body["download_url"])
	assert.Equal(t, "20240101_000000_deadbeef.xlsx", body["filename"])
	assert.Equal(t, []interface{}{"labor[1]: quantity is missing"}, body["warnings"])

	assert.Equal(t, models.TextRequest{Description: "Install 4 outlets"}, runner.last())
}

func TestGenerateFromText_MissingDescription(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestServer(t, runner, nil, Options{})

	rec := postForm(handler, "/generate-from-text", url.Values{"description": {"   "}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, string(apperrors.ErrCodeInvalidInput), body["code"])
	assert.Empty(t, runner.requests)
}

func TestGenerateFromText_PipelineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
		stage  string
	}{
		{
			name:   "invalid input from extractor",
			err:    &pipeline.PipelineError{Stage: pipeline.StageExtracting, Cause: apperrors.NewInvalidInputError("empty")},
			status: http.StatusBadRequest,
			code:   apperrors.ErrCodeInvalidInput,
			stage:  "extracting",
		},
		{
			name:   "reasoning timeout",
			err:    &pipeline.PipelineError{Stage: pipeline.StageSynthesizing, Cause: apperrors.NewSynthesisUnavailableError(context.DeadlineExceeded)},
			status: http.StatusInternalServerError,
			code:   apperrors.ErrCodeSynthesisUnavailable,
			stage:  "synthesizing",
		},
		{
			name:   "empty breakdown",
			err:    &pipeline.PipelineError{Stage: pipeline.StageValidating, Cause: apperrors.NewEmptyBreakdownError(2)},
			status: http.StatusInternalServerError,
			code:   apperrors.ErrCodeEmptyBreakdown,
			stage:  "validating",
		},
		{
			name:   "storage down",
			err:    &pipeline.PipelineError{Stage: pipeline.StageStoring, Cause: apperrors.NewStorageUnavailableError(errors.New("secret endpoint detail"))},
			status: http.StatusInternalServerError,
			code:   apperrors.ErrCodeStorageUnavailable,
			stage:  "storing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, &fakeRunner{err: tt.err}, nil, Options{})

			rec := postForm(handler, "/generate-from-text", url.Values{"description": {"x"}})

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, string(tt.code), body["code"])
			assert.Equal(t, tt.stage, body["stage"])
			assert.NotContains(t, rec.Body.String(), "secret endpoint detail")
		})
	}
}

func TestGenerateFromText_BodyTooLarge(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestServer(t, runner, nil, Options{MaxUploadBytes: 64})

	rec := postForm(handler, "/generate-from-text", url.Values{"description": {strings.Repeat("a", 500)}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.requests)
}

// ==========================
// Generate From PDF
// ==========================

func TestGenerateFromPDF_Success(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestServer(t, runner, nil, Options{})

	rec := postFile(t, handler, "file", "scope.pdf", "application/pdf", []byte("%PDF-1.4 fake"))

	require.Equal(t, http.StatusOK, rec.Code)
	req, ok := runner.last().(models.DocumentRequest)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", req.MimeType)
	assert.Equal(t, "scope.pdf", req.Filename)
	assert.Equal(t, []byte("%PDF-1.4 fake"), req.Content)
}

func TestGenerateFromPDF_MissingFile(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestServer(t, runner, nil, Options{})

	rec := postFile(t, handler, "attachment", "scope.pdf", "application/pdf", []byte("%PDF"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.requests)
}

func TestGenerateFromPDF_UnreadableDocument(t *testing.T) {
	runner := &fakeRunner{err: &pipeline.PipelineError{
		Stage: pipeline.StageExtracting,
		Cause: apperrors.NewUnreadableDocumentError("no text layer", nil),
	}}
	handler := newTestServer(t, runner, nil, Options{})

	rec := postFile(t, handler, "file", "scan.pdf", "application/pdf", []byte("%PDF"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeUnreadableDocument), decodeBody(t, rec)["code"])
}

func TestGenerateFromPDF_NotMultipart(t *testing.T) {
	handler := newTestServer(t, &fakeRunner{}, nil, Options{})

	rec := postForm(handler, "/generate-from-pdf", url.Values{"file": {"x"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Rate Limiting
// ==========================

func TestRateLimit(t *testing.T) {
	opts := Options{RateLimit: RateLimitOptions{Enabled: true, Requests: 5, Window: time.Minute}}

	t.Run("rejects over budget", func(t *testing.T) {
		runner := &fakeRunner{}
		limiter := &fakeLimiter{allowed: false}
		handler := newTestServer(t, runner, limiter, opts)

		rec := postForm(handler, "/generate-from-text", url.Values{"description": {"x"}})

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		assert.Equal(t, string(apperrors.ErrCodeRateLimited), decodeBody(t, rec)["code"])
		assert.Empty(t, runner.requests)
		require.Len(t, limiter.keys, 1)
		assert.Equal(t, "ratelimit:192.0.2.1", limiter.keys[0])
	})

	t.Run("allows under budget", func(t *testing.T) {
		handler := newTestServer(t, &fakeRunner{}, &fakeLimiter{allowed: true}, opts)

		rec := postForm(handler, "/generate-from-text", url.Values{"description": {"x"}})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("fails open when limiter is down", func(t *testing.T) {
		handler := newTestServer(t, &fakeRunner{}, &fakeLimiter{err: errors.New("redis down")}, opts)

		rec := postForm(handler, "/generate-from-text", url.Values{"description": {"x"}})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health is never limited", func(t *testing.T) {
		limiter := &fakeLimiter{allowed: false}
		handler := newTestServer(t, &fakeRunner{}, limiter, opts)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, limiter.keys)
	})
}

// ==========================
// Service Endpoints
// ==========================

func TestHealth(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestServer(t, runner, nil, Options{ReasoningConfigured: true})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["reasoning_configured"])
	assert.Equal(t, false, body["storage_configured"])
	assert.Empty(t, runner.requests)
}

func TestReady(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestServer(t, runner, nil, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	runner.healthErr = errors.New("bucket missing")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "bucket missing")
}

func TestIndexAndMetrics(t *testing.T) {
	handler := newTestServer(t, &fakeRunner{}, nil, Options{Version: "1.2.3"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "1.2.3", body["version"])
	assert.Contains(t, body["endpoints"], "POST /generate-from-pdf")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownMethod(t *testing.T) {
	handler := newTestServer(t, &fakeRunner{}, nil, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/generate-from-text", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
