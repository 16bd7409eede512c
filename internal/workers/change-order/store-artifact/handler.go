// internal/workers/change-order/store-artifact/handler.go
package storeartifact

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/models"
)

const (
	TaskType = "store-artifact"

	timestampLayout = "20060102_150405"
)

// ObjectStore is durable, append-only storage for rendered artifacts.
type ObjectStore interface {
	Upload(ctx context.Context, key string, content []byte, contentType string, public bool) (string, error)
	Health(ctx context.Context) error
}

type Handler struct {
	config *Config
	store  ObjectStore
	logger logger.Logger
	now    func() time.Time
	token  func() string
}

func NewHandler(config *Config, store ObjectStore, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
		token:  randomToken,
	}
}

// randomToken returns 8 hex characters from a random UUID.
func randomToken() string {
	id := uuid.New()
	return hex.EncodeToString(id[:4])
}

// Filename is {UTC timestamp}_{8 hex}.xlsx. Names are never checked against
// existing objects.
func (h *Handler) Filename() string {
	return fmt.Sprintf("%s_%s.xlsx", h.now().UTC().Format(timestampLayout), h.token())
}

// Execute uploads content under a fresh name and returns the artifact with
// its public URL. Nothing is cleaned up on failure since no URL escapes.
func (h *Handler) Execute(ctx context.Context, content []byte) (*models.GeneratedArtifact, error) {
	if len(content) == 0 {
		return nil, apperrors.NewInternalError(fmt.Errorf("refusing to store an empty artifact"))
	}

	filename := h.Filename()
	key := path.Join(h.config.Prefix, filename)

	uploadCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	started := time.Now()
	url, err := h.store.Upload(uploadCtx, key, content, h.config.ContentType, h.config.Public)
	if err != nil {
		if errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("upload did not finish within %s: %w", h.config.Timeout, err)
		}
		h.logger.Error("upload failed", map[string]interface{}{
			"key":       key,
			"elapsedMs": time.Since(started).Milliseconds(),
			"error":     err.Error(),
		})
		return nil, apperrors.NewStorageUnavailableError(err)
	}

	h.logger.Info("artifact stored", map[string]interface{}{
		"key":       key,
		"bytes":     len(content),
		"elapsedMs": time.Since(started).Milliseconds(),
	})

	return &models.GeneratedArtifact{
		Filename:    filename,
		Key:         key,
		Content:     content,
		DownloadURL: url,
		SizeBytes:   len(content),
	}, nil
}

// Health reports whether the backing store is reachable.
func (h *Handler) Health(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.store.Health(healthCtx)
}
