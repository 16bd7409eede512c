// internal/workers/change-order/synthesize-breakdown/handler.go
package synthesizebreakdown

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/models"
)

const (
	TaskType = "synthesize-breakdown"
)

type Handler struct {
	config    *Config
	completer Completer
	logger    logger.Logger
}

func NewHandler(config *Config, completer Completer, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		completer: completer,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute makes exactly one bounded call to the reasoning service and returns
// the shape-checked breakdown object. There is no retry.
func (h *Handler) Execute(ctx context.Context, input *models.NormalizedInput) (models.RawBreakdown, error) {
	if input == nil || input.Text == "" {
		return nil, apperrors.NewInvalidInputError("nothing to synthesize")
	}

	callCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	started := time.Now()
	reply, err := h.completer.Complete(callCtx, systemPrompt, buildUserPrompt(input))
	elapsed := time.Since(started)

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("no reply within %s: %w", h.config.Timeout, err)
		}
		h.logger.Error("reasoning call failed", map[string]interface{}{
			"model":     h.config.Model,
			"elapsedMs": elapsed.Milliseconds(),
			"error":     err.Error(),
		})
		return nil, apperrors.NewSynthesisUnavailableError(err)
	}

	raw, err := parseBreakdown(reply)
	if err != nil {
		h.logger.Warn("reasoning reply rejected", map[string]interface{}{
			"model":      h.config.Model,
			"replyBytes": len(reply),
			"error":      err.Error(),
		})
		return nil, apperrors.NewSynthesisSchemaError(err.Error(), err)
	}

	h.logger.Info("breakdown synthesized", map[string]interface{}{
		"model":     h.config.Model,
		"elapsedMs": elapsed.Milliseconds(),
		"source":    string(input.Source),
	})

	return raw, nil
}
