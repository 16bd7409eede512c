// internal/models/request.go
package models

// Source labels where a request's content came from.
type Source string

const (
	SourceText     Source = "text"
	SourceDocument Source = "document"
)

const (
	MimeTypePDF  = "application/pdf"
	MimeTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// GenerationRequest is either a TextRequest or a DocumentRequest.
type GenerationRequest interface {
	Source() Source
}

// TextRequest carries a free-text job description.
type TextRequest struct {
	Description string `json:"description"`
}

func (TextRequest) Source() Source { return SourceText }

// DocumentRequest carries an uploaded job document.
type DocumentRequest struct {
	Content  []byte `json:"-"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename,omitempty"`
}

func (DocumentRequest) Source() Source { return SourceDocument }

// NormalizedInput is the flattened text handed to the synthesizer.
type NormalizedInput struct {
	Text      string `json:"text"`
	Source    Source `json:"source"`
	PageCount int    `json:"pageCount,omitempty"`
}

// RawBreakdown is the decoded JSON object returned by the reasoning service.
type RawBreakdown map[string]interface{}
