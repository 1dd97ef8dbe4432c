package loader

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/Aman-CERP/docfind/internal/document"
)

// Glyph grouping thresholds, as fractions of the font size.
const (
	// baselineTolerance is how far two glyphs' baselines may differ and
	// still be on the same line.
	baselineTolerance = 0.3
	// wordGap is the horizontal gap that implies a space between glyphs.
	wordGap = 0.15
	// runGap is the horizontal gap that starts a new run (column or cell).
	runGap = 1.5
)

// LoadPDF reads every page of a PDF and groups its glyphs into runs. A page
// whose content stream cannot be decoded fails the load.
func (l *Loader) LoadPDF(data []byte) (pages []document.RawPage, err error) {
	// The PDF reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = corrupt(FormatPDF, fmt.Errorf("reader panic: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, corrupt(FormatPDF, err)
	}

	n := r.NumPage()
	pages = make([]document.RawPage, 0, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			l.logger.Warn("pdf page missing, keeping it empty", slog.Int("page", i))
			pages = append(pages, document.RawPage{})
			continue
		}
		runs, perr := l.pageRuns(page)
		if perr != nil {
			return nil, corrupt(FormatPDF, fmt.Errorf("page %d: %w", i, perr))
		}
		pages = append(pages, document.RawPage{Runs: runs})
	}
	return pages, nil
}

func (l *Loader) pageRuns(page pdf.Page) (runs []document.RawTextRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream: %v", r)
		}
	}()

	glyphs := page.Content().Text
	height := pageHeight(page)

	var cur *runBuilder
	flush := func() {
		if cur == nil {
			return
		}
		if run, ok := cur.build(height, l.normalize); ok {
			runs = append(runs, run)
		}
		cur = nil
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if cur != nil {
			switch cur.relation(g) {
			case sameWord:
			case nextWord:
				cur.space()
			case newRun:
				flush()
			}
		}
		if cur == nil {
			cur = newRunBuilder(g)
		}
		cur.add(g)
	}
	flush()
	return runs, nil
}

// pageHeight returns the MediaBox height, looking up the page tree when the
// page does not set it. Zero means unknown.
func pageHeight(page pdf.Page) float64 {
	for depth, v := 0, page.V; depth < 32 && !v.IsNull(); depth, v = depth+1, v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			return box.Index(3).Float64() - box.Index(1).Float64()
		}
	}
	return 0
}

type glyphRelation int

const (
	sameWord glyphRelation = iota
	nextWord
	newRun
)

// runBuilder accumulates consecutive glyphs sharing a line and font.
type runBuilder struct {
	sb       strings.Builder
	font     string
	size     float64
	x, y     float64
	right    float64
	trailing bool // last byte written is a space
}

func newRunBuilder(g pdf.Text) *runBuilder {
	return &runBuilder{font: g.Font, size: g.FontSize, x: g.X, y: g.Y, right: g.X}
}

func (b *runBuilder) relation(g pdf.Text) glyphRelation {
	size := math.Max(b.size, 1)
	if g.Font != b.font || math.Abs(g.FontSize-b.size) > 0.01 {
		return newRun
	}
	if math.Abs(g.Y-b.y) > size*baselineTolerance {
		return newRun
	}
	gap := g.X - b.right
	switch {
	case gap < -size || gap > size*runGap:
		return newRun
	case gap > size*wordGap:
		return nextWord
	default:
		return sameWord
	}
}

func (b *runBuilder) space() {
	if !b.trailing && b.sb.Len() > 0 {
		b.sb.WriteByte(' ')
		b.trailing = true
	}
}

func (b *runBuilder) add(g pdf.Text) {
	for _, r := range g.S {
		if unicode.IsSpace(r) {
			b.space()
			continue
		}
		b.sb.WriteRune(r)
		b.trailing = false
	}
	if end := g.X + g.W; end > b.right {
		b.right = end
	}
}

// build finishes the run. Y is flipped to a top-left origin when the page
// height is known. Whitespace-only runs are dropped.
func (b *runBuilder) build(pageHeight float64, normalize bool) (document.RawTextRun, bool) {
	text := strings.TrimSpace(strings.ToValidUTF8(b.sb.String(), ""))
	if normalize {
		text = norm.NFC.String(text)
	}
	if text == "" {
		return document.RawTextRun{}, false
	}
	y := b.y
	if pageHeight > 0 {
		y = pageHeight - b.y
	}
	return document.RawTextRun{
		Text:     text,
		Encoding: document.EncodingPlain,
		X:        b.x,
		Y:        y,
		Width:    b.right - b.x,
		Height:   b.size,
	}, true
}
