// Package loader turns document bytes into raw pages for extraction.
//
// Two inputs are understood: PDF files, read with github.com/ledongthuc/pdf,
// and pdf2json output (JSON with Pages[].Texts[].R[].T percent-encoded runs).
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/docfind/internal/document"
	dferrors "github.com/Aman-CERP/docfind/internal/errors"
)

// Format identifies an input format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatPDF2JSON Format = "pdf2json"
)

// ContentType returns the MIME type uploads of this format carry.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/json"
}

var pdfMagic = []byte("%PDF-")

// DetectFormat sniffs the input. PDFs may carry a few bytes of junk before
// the header, so the first KiB is searched.
func DetectFormat(data []byte) (Format, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(head, pdfMagic) {
		return FormatPDF, nil
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		return FormatPDF2JSON, nil
	}
	return "", dferrors.New(dferrors.ErrCodeUnsupportedType,
		"Only PDF files and pdf2json documents are supported", nil)
}

// Option configures a Loader.
type Option func(*Loader)

// WithNormalize toggles NFC normalization of PDF glyph text.
func WithNormalize(on bool) Option {
	return func(l *Loader) {
		l.normalize = on
	}
}

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader reads raw pages from document bytes.
type Loader struct {
	normalize bool
	logger    *slog.Logger
}

// New creates a Loader with NFC normalization enabled.
func New(opts ...Option) *Loader {
	l := &Loader{normalize: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load detects the format and reads the raw pages.
func (l *Loader) Load(data []byte) ([]document.RawPage, Format, error) {
	if len(data) == 0 {
		return nil, "", dferrors.New(dferrors.ErrCodeInvalidInput, "document is empty", nil)
	}
	format, err := DetectFormat(data)
	if err != nil {
		return nil, "", err
	}

	var pages []document.RawPage
	switch format {
	case FormatPDF:
		pages, err = l.LoadPDF(data)
	case FormatPDF2JSON:
		pages, err = LoadPDF2JSON(data)
	}
	if err != nil {
		return nil, format, err
	}
	l.logger.Debug("document loaded",
		slog.String("format", string(format)),
		slog.Int("page_count", len(pages)),
		slog.Int("bytes", len(data)))
	return pages, format, nil
}

func corrupt(format Format, err error) error {
	return dferrors.New(dferrors.ErrCodeFileCorrupt,
		fmt.Sprintf("cannot parse %s document: %v", format, err), err)
}
