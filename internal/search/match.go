package search

import "github.com/Aman-CERP/docfind/internal/document"

// MatchSpan is one match within a page's content, in bytes.
type MatchSpan struct {
	Start  int
	Length int
}

// End returns the offset just past the match.
func (m MatchSpan) End() int {
	return m.Start + m.Length
}

// FindMatches returns every non-overlapping match of p in text, left to
// right, with the leftmost-first semantics of regexp.FindAllStringIndex.
// An empty match is never reported at the position where the previous
// match ended, so zero-width patterns always make progress.
//
// This is deliberately stricter than an exec loop that only bumps its index
// after an empty match: such a loop reports `a*` over "aaa" as [0,3] and
// [3,0], while FindMatches reports [0,3] alone. Over "baaa" it reports
// [0,0] and [1,3] and drops the trailing empty match at 4.
func FindMatches(p *Pattern, text string) []MatchSpan {
	locs := p.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	spans := make([]MatchSpan, len(locs))
	for i, loc := range locs {
		spans[i] = MatchSpan{Start: loc[0], Length: loc[1] - loc[0]}
	}
	return spans
}

// Position is a point on a page.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Resolve maps a byte offset in the space-joined fragment text back to the
// fragment that contains it. Each fragment occupies [cursor, cursor+len)
// and is followed by one separator byte, which belongs to no fragment.
// It reports false for separators and offsets past the last fragment.
func Resolve(fragments []document.TextFragment, offset int) (Position, bool) {
	if offset < 0 {
		return Position{}, false
	}
	cursor := 0
	for _, f := range fragments {
		end := cursor + len(f.Text)
		if offset < cursor {
			break
		}
		if offset < end {
			return Position{X: f.X, Y: f.Y}, true
		}
		cursor = end + 1
	}
	return Position{}, false
}
