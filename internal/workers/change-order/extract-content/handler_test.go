// internal/workers/change-order/extract-content/handler_test.go
package extractcontent

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeReader struct {
	pages       []string
	err         error
	seenPath    string
	existedThen bool
	calls       int
}

func (f *fakeReader) ReadPages(ctx context.Context, path string, maxPages int) ([]string, error) {
	f.calls++
	f.seenPath = path
	_, statErr := os.Stat(path)
	f.existedThen = statErr == nil
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func createTestConfig(t *testing.T) *Config {
	cfg := LoadConfig()
	cfg.TempDir = t.TempDir()
	return cfg
}

func pdfRequest() models.DocumentRequest {
	return models.DocumentRequest{
		Content:  []byte("%PDF-1.4 fake"),
		MimeType: models.MimeTypePDF,
		Filename: "scope.pdf",
	}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files left behind")
}

// ==========================
// Text Requests
// ==========================

func TestHandler_Execute_Text(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"plain", "Install new electrical outlets in conference room", "Install new electrical outlets in conference room", nil},
		{"trimmed", "  \n Replace ceiling tiles\t ", "Replace ceiling tiles", nil},
		{"empty", "", "", apperrors.ErrInvalidInput},
		{"whitespace only", " \n\t ", "", apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createTestConfig(t)
			reader := &fakeReader{}
			h := NewHandlerWithReader(cfg, reader, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background(), models.TextRequest{Description: tt.input})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, out)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, out.Text)
				assert.Equal(t, models.SourceText, out.Source)
			}
			assert.Zero(t, reader.calls)
			assertDirEmpty(t, cfg.TempDir)
		})
	}
}

// ==========================
// Document Requests
// ==========================

func TestHandler_Execute_Document_JoinsPagesInOrder(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.PageSeparator = "\n---\n"
	reader := &fakeReader{pages: []string{"Page  one\x00 text", "", "  page\ttwo  "}}
	h := NewHandlerWithReader(cfg, reader, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), pdfRequest())

	require.NoError(t, err)
	assert.Equal(t, "Page one text\n---\npage two", out.Text)
	assert.Equal(t, models.SourceDocument, out.Source)
	assert.Equal(t, 3, out.PageCount)

	assert.True(t, reader.existedThen, "temp file must exist while parsing")
	_, statErr := os.Stat(reader.seenPath)
	assert.True(t, os.IsNotExist(statErr), "temp file must be removed after success")
	assertDirEmpty(t, cfg.TempDir)
}

func TestHandler_Execute_Document_NoTextLayer(t *testing.T) {
	cfg := createTestConfig(t)
	reader := &fakeReader{pages: []string{"", "  \n "}}
	h := NewHandlerWithReader(cfg, reader, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), pdfRequest())

	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperrors.ErrUnreadableDocument)
	assert.True(t, reader.existedThen)
	assertDirEmpty(t, cfg.TempDir)
}

func TestHandler_Execute_Document_ParseFailure(t *testing.T) {
	cfg := createTestConfig(t)
	reader := &fakeReader{err: errors.New("xref table corrupt")}
	h := NewHandlerWithReader(cfg, reader, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), pdfRequest())

	assert.ErrorIs(t, err, apperrors.ErrUnreadableDocument)
	assertDirEmpty(t, cfg.TempDir)
}

func TestHandler_Execute_Document_RejectedBeforeSpill(t *testing.T) {
	tests := []struct {
		name string
		req  models.DocumentRequest
	}{
		{"empty body", models.DocumentRequest{MimeType: models.MimeTypePDF}},
		{"wrong mime", models.DocumentRequest{Content: []byte("x"), MimeType: "image/png", Filename: "scan.png"}},
		{"octet stream without pdf name", models.DocumentRequest{Content: []byte("x"), MimeType: "application/octet-stream", Filename: "notes.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createTestConfig(t)
			reader := &fakeReader{pages: []string{"text"}}
			h := NewHandlerWithReader(cfg, reader, logger.NewTestLogger(t))

			_, err := h.Execute(context.Background(), tt.req)

			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Zero(t, reader.calls)
			assertDirEmpty(t, cfg.TempDir)
		})
	}
}

func TestHandler_Execute_Document_OctetStreamWithPDFName(t *testing.T) {
	cfg := createTestConfig(t)
	reader := &fakeReader{pages: []string{"Demolish partition wall"}}
	h := NewHandlerWithReader(cfg, reader, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &models.DocumentRequest{
		Content:  []byte("%PDF"),
		MimeType: "application/octet-stream",
		Filename: "SCOPE.PDF",
	})

	require.NoError(t, err)
	assert.Equal(t, "Demolish partition wall", out.Text)
}

func TestHandler_Execute_Document_RealParserRejectsGarbage(t *testing.T) {
	cfg := createTestConfig(t)
	h := NewHandler(cfg, logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), models.DocumentRequest{
		Content:  []byte("this is not a pdf at all"),
		MimeType: models.MimeTypePDF,
	})

	assert.ErrorIs(t, err, apperrors.ErrUnreadableDocument)
	assertDirEmpty(t, cfg.TempDir)
}

// ==========================
// Content Stream Parsing
// ==========================

func TestTextFromContentStream(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "Tj with positioning",
			stream: "BT\n/F1 12 Tf\n72 720 Td\n(Install outlets) Tj\nT*\n[(Conference) -250 ( room)] TJ\nET",
			want:   "Install outlets\nConference room\n",
		},
		{
			name:   "escapes and nested parens",
			stream: `BT (a\(b\)c \101 (d)) Tj ET`,
			want:   "a(b)c A (d)\n",
		},
		{
			name:   "hex string",
			stream: "BT <48656C6C6F> Tj ET",
			want:   "Hello\n",
		},
		{
			name:   "quote operator starts a new line",
			stream: "BT (first) Tj (second) ' ET",
			want:   "first\nsecond\n",
		},
		{
			name:   "wide TJ gap becomes a space",
			stream: "BT [(Install)-300(new)-250.5(outlets)] TJ ET",
			want:   "Install new outlets\n",
		},
		{
			name:   "narrow TJ kerning joins letters",
			stream: "BT [(Con)-15(duit)12(s)] TJ ET",
			want:   "Conduits\n",
		},
		{
			name:   "gap next to an explicit space is not doubled",
			stream: "BT [(Install )-400(outlets)-400] TJ ET",
			want:   "Install outlets\n",
		},
		{
			name:   "two-byte glyph codes are not decoded",
			stream: "BT /F2 12 Tf <002C0051> Tj ET",
			want:   "",
		},
		{
			name:   "operands of other operators ignored",
			stream: "q 1 0 0 1 0 0 cm (label) Tz Q",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textFromContentStream([]byte(tt.stream)))
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", cleanText("  a \n\n b\x07\tc  "))
	assert.Equal(t, "", cleanText("\x00\x01 \n"))
}
