// Package extract turns uploaded documents into plain text for analysis.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const PDFContentType = "application/pdf"

var (
	// ErrParse is returned when the file cannot be read as a PDF.
	ErrParse = errors.New("pdf parse failed")
	// ErrEmptyText is returned when a PDF has no extractable text (e.g. a scan).
	ErrEmptyText = errors.New("no text could be extracted")
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether the upload is a PDF: the declared content type must be
// application/pdf and the bytes must start with the PDF header.
func IsPDF(contentType string, data []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != PDFContentType {
		return false
	}
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic)
}

// Result is the text of a document together with its page count.
type Result struct {
	Text      string
	PageCount int
}

// PDFExtractor validates PDFs with pdfcpu and reads their text layer.
type PDFExtractor struct {
	conf *model.Configuration
}

func NewPDFExtractor() *PDFExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

// Extract returns the document text. It fails with ErrParse when the PDF is
// invalid and with ErrEmptyText when the text layer is blank.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	if err := api.Validate(bytes.NewReader(data), e.conf); err != nil {
		return nil, fmt.Errorf("%w: validate: %v", ErrParse, err)
	}
	pageCount, err := api.PageCount(bytes.NewReader(data), e.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: page count: %v", ErrParse, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := plainText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return &Result{Text: text, PageCount: pageCount}, nil
}

// plainText reads the text layer. The reader panics on some malformed
// content streams, so panics are converted to errors.
func plainText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return string(b), nil
}
