// internal/workers/change-order/extract-content/handler.go
package extractcontent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/models"
)

const (
	TaskType = "extract-content"
)

type Handler struct {
	config *Config
	reader PageReader
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return NewHandlerWithReader(config, NewPDFReader(), log)
}

// NewHandlerWithReader swaps the PDF backend.
func NewHandlerWithReader(config *Config, reader PageReader, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		reader: reader,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute turns a request into normalized text. Document requests spill to
// exactly one temp file that is removed before Execute returns.
func (h *Handler) Execute(ctx context.Context, req models.GenerationRequest) (*models.NormalizedInput, error) {
	switch r := req.(type) {
	case models.TextRequest:
		return h.extractText(r)
	case *models.TextRequest:
		return h.extractText(*r)
	case models.DocumentRequest:
		return h.extractDocument(ctx, r)
	case *models.DocumentRequest:
		return h.extractDocument(ctx, *r)
	default:
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unsupported request type %T", req))
	}
}

func (h *Handler) extractText(req models.TextRequest) (*models.NormalizedInput, error) {
	text := strings.TrimSpace(req.Description)
	if text == "" {
		return nil, apperrors.NewInvalidInputError("description must not be empty")
	}

	h.logger.Debug("text input accepted", map[string]interface{}{"chars": len(text)})
	return &models.NormalizedInput{Text: text, Source: models.SourceText}, nil
}

func (h *Handler) extractDocument(ctx context.Context, req models.DocumentRequest) (*models.NormalizedInput, error) {
	if err := validateDocument(req); err != nil {
		return nil, err
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	path, err := h.spill(req.Content)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("write temp file: %w", err))
	}
	defer h.cleanup(path)

	pages, err := h.reader.ReadPages(ctx, path, h.config.MaxPages)
	if err != nil {
		return nil, apperrors.NewUnreadableDocumentError("could not parse PDF", err)
	}

	text, nonEmpty := joinPages(pages, h.config.PageSeparator)
	if text == "" {
		return nil, apperrors.NewUnreadableDocumentError(
			fmt.Sprintf("no extractable text in %d pages", len(pages)), nil)
	}

	h.logger.Info("document text extracted", map[string]interface{}{
		"pages":          len(pages),
		"pagesWithText":  nonEmpty,
		"chars":          len(text),
		"uploadFilename": req.Filename,
	})

	return &models.NormalizedInput{
		Text:      text,
		Source:    models.SourceDocument,
		PageCount: len(pages),
	}, nil
}

func validateDocument(req models.DocumentRequest) error {
	if len(req.Content) == 0 {
		return apperrors.NewInvalidInputError("uploaded file is empty")
	}

	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(req.MimeType, ";", 2)[0]))
	switch mime {
	case models.MimeTypePDF:
		return nil
	case "", "application/octet-stream":
		if strings.EqualFold(filepath.Ext(req.Filename), ".pdf") {
			return nil
		}
	}
	return apperrors.NewInvalidInputError(fmt.Sprintf("only PDF files are supported, got %q", req.MimeType))
}

func (h *Handler) spill(content []byte) (string, error) {
	f, err := os.CreateTemp(h.config.TempDir, "change-order-*.pdf")
	if err != nil {
		return "", err
	}
	path := f.Name()

	if _, err := f.Write(content); err != nil {
		f.Close()
		h.cleanup(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		h.cleanup(path)
		return "", err
	}
	return path, nil
}

func (h *Handler) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("failed to remove temp file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
}

// joinPages cleans each page and joins the non-empty ones in order.
func joinPages(pages []string, sep string) (string, int) {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if cleaned := cleanText(p); cleaned != "" {
			kept = append(kept, cleaned)
		}
	}
	return strings.Join(kept, sep), len(kept)
}

// cleanText drops control characters and collapses whitespace runs.
func cleanText(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = sb.Len() > 0
		case unicode.IsPrint(r):
			if space {
				sb.WriteByte(' ')
				space = false
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
