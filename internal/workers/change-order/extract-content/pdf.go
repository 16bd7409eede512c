// internal/workers/change-order/extract-content/pdf.go
package extractcontent

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageReader returns the text of each page of the PDF at path, in page order.
type PageReader interface {
	ReadPages(ctx context.Context, path string, maxPages int) ([]string, error)
}

type pdfcpuReader struct{}

// NewPDFReader returns the pdfcpu-backed PageReader.
func NewPDFReader() PageReader {
	return pdfcpuReader{}
}

func (pdfcpuReader) ReadPages(ctx context.Context, path string, maxPages int) (pages []string, err error) {
	// pdfcpu panics on some malformed cross reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	count := pdfCtx.PageCount
	if maxPages > 0 && count > maxPages {
		count = maxPages
	}

	pages = make([]string, 0, count)
	for pageNr := 1; pageNr <= count; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil || r == nil {
			pages = append(pages, "")
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, textFromContentStream(data))
	}
	return pages, nil
}

// kernGapThreshold is the TJ adjustment, in thousandths of an em, at or past
// which a gap is read as a word space.
const kernGapThreshold = -200

// kernGap marks a wide TJ adjustment among the pending strings.
const kernGap = "\x00"

// textFromContentStream pulls the shown strings out of a page content stream.
// Text positioning operators become line breaks and wide TJ gaps become
// spaces. Fonts without a byte-per-character encoding are not decoded.
func textFromContentStream(data []byte) string {
	var (
		sb      strings.Builder
		pending []string
		word    []byte
		inArray bool
	)

	newline := func() {
		s := sb.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			sb.WriteByte('\n')
		}
	}

	flushWord := func() {
		if len(word) == 0 {
			return
		}
		op := string(word)
		word = word[:0]
		switch op {
		case "Tj", "TJ":
			writeShown(&sb, pending)
		case "'", "\"":
			newline()
			writeShown(&sb, pending)
		case "Td", "TD", "T*", "Tm", "ET":
			newline()
		}
		pending = pending[:0]
	}

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '(':
			flushWord()
			s, next := readLiteralString(data, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] != '<':
			flushWord()
			end := strings.IndexByte(string(data[i:]), '>')
			if end < 0 {
				i = len(data)
				continue
			}
			pending = append(pending, decodeHexString(data[i+1:i+end]))
			i += end
		case c == '%':
			flushWord()
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '[' || c == ']':
			flushWord()
			inArray = c == '['
		case c == '\'' || c == '"':
			flushWord()
			word = append(word, c)
			flushWord()
		case isDelimiter(c):
			flushWord()
		default:
			if len(word) == 0 && (c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')) {
				start := i
				for i+1 < len(data) && !isDelimiter(data[i+1]) && data[i+1] != '(' && data[i+1] != '[' && data[i+1] != ']' && data[i+1] != '<' {
					i++
				}
				if inArray {
					if n, err := strconv.ParseFloat(string(data[start:i+1]), 64); err == nil && n <= kernGapThreshold {
						pending = append(pending, kernGap)
					}
				}
				continue
			}
			word = append(word, c)
		}
	}
	flushWord()

	return sb.String()
}

// writeShown writes the strings of one show operator. A kerning gap becomes a
// single space unless a neighbouring string already supplies one.
func writeShown(sb *strings.Builder, pending []string) {
	var last byte
	for i, p := range pending {
		if p == kernGap {
			if last == 0 || last == ' ' || i+1 >= len(pending) {
				continue
			}
			if next := pending[i+1]; next == kernGap || strings.HasPrefix(next, " ") {
				continue
			}
			sb.WriteByte(' ')
			last = ' '
			continue
		}
		sb.WriteString(p)
		if len(p) > 0 {
			last = p[len(p)-1]
		}
	}
}

func isDelimiter(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0 || c == '/'
}

// readLiteralString decodes a (...) string starting at data[start] and returns
// the index of its closing parenthesis.
func readLiteralString(data []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	for i := start; i < len(data); i++ {
		c := data[i]
		switch c {
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte(c)
			}
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		case '\\':
			if i+1 >= len(data) {
				return sb.String(), i
			}
			i++
			switch e := data[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), len(data) - 1
}

func decodeHexString(raw []byte) string {
	clean := make([]byte, 0, len(raw))
	for _, c := range raw {
		if !unicode.IsSpace(rune(c)) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out, err := hex.DecodeString(string(clean))
	if err != nil {
		return ""
	}
	// Control bytes mean multi-byte glyph codes (Identity-H and similar)
	// that need the font's ToUnicode map.
	for _, b := range out {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			return ""
		}
	}
	return string(out)
}
