// Package document defines the extracted document model and the Extractor
// that builds it from raw per-page text runs.
//
// A page's Content is its fragment texts joined by exactly one space and
// trimmed as a whole. Offsets into Content can therefore be mapped back to
// the owning fragment by walking the fragments and advancing len(text)+1
// per fragment.
package document

import (
	"strings"
	"unicode"
)

// TextFragment is one decoded run of text with its placement on the page.
type TextFragment struct {
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageContent is the searchable text of one page plus the fragments it was
// built from, in source order.
type PageContent struct {
	PageNumber int            `json:"pageNumber"`
	Content    string         `json:"content"`
	Fragments  []TextFragment `json:"texts"`
}

// LeadingTrim returns how many bytes of leading whitespace were removed
// from the joined fragment text when Content was trimmed. Adding it to an
// offset in Content yields the offset in the untrimmed join, which is the
// coordinate space fragment walking uses.
func (p PageContent) LeadingTrim() int {
	n := 0
	for i, f := range p.Fragments {
		if i > 0 {
			n++
		}
		rest := strings.TrimLeftFunc(f.Text, unicode.IsSpace)
		n += len(f.Text) - len(rest)
		if rest != "" {
			return n
		}
	}
	return n
}

// ProcessedDocument is the immutable result of extraction. Pages are in
// page-number order with one entry per physical page.
type ProcessedDocument struct {
	TotalPages int           `json:"totalPages"`
	Pages      []PageContent `json:"pages"`
}

// FragmentCount returns the total number of fragments across all pages.
func (d *ProcessedDocument) FragmentCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Fragments)
	}
	return n
}

// Encoding describes how a raw run's text is encoded.
type Encoding int

const (
	// EncodingPercent is URI component encoding (%XX escapes, '+' literal).
	EncodingPercent Encoding = iota
	// EncodingPlain is already-decoded UTF-8 text.
	EncodingPlain
)

// RawTextRun is one text run as produced by a loader, before decoding.
type RawTextRun struct {
	Text     string
	Encoding Encoding
	X        float64
	Y        float64
	Width    float64
	Height   float64
	// Index is the 1-based position of the run in the loader's source, such
	// as the pdf2json Texts array. Zero means the run's position in the page.
	Index int
}

// RawPage holds the runs of one physical page in source order.
type RawPage struct {
	Runs []RawTextRun
}
