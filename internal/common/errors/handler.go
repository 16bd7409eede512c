// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
)

// ErrorHandler writes pipeline errors as JSON responses.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Response is the JSON envelope returned for any failed request.
type Response struct {
	Status  string    `json:"status"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Stage   string    `json:"stage,omitempty"`
}

// StageError is implemented by errors that know which pipeline stage failed.
type StageError interface {
	FailedStage() string
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// WriteError normalizes err, logs it and writes the envelope with the mapped
// status code.
func (h *ErrorHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := AsStandardError(err)
	stage := ""
	var se StageError
	if stderrors.As(err, &se) {
		stage = se.FailedStage()
	}

	status := HTTPStatus(stdErr.Code)
	h.logError(r, stdErr, stage, status)

	resp := Response{
		Status:  "error",
		Code:    stdErr.Code,
		Message: stdErr.Message,
		Details: stdErr.Details,
		Stage:   stage,
	}
	if status >= http.StatusInternalServerError {
		// Upstream failure detail may carry provider internals.
		resp.Details = ""
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, stage string, status int) {
	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if stage != "" {
		fields["stage"] = stage
	}

	if IsClientFault(stdErr.Code) {
		h.logger.Warn("Request rejected", fields)
		return
	}
	h.logger.Error("Request failed", fields)
}
