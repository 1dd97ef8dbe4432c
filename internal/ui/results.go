package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/telemetry"
)

// ResultsRenderer prints search results and query statistics.
type ResultsRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewResultsRenderer creates a renderer writing to out.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{out: out, styles: GetStyles(noColor), noColor: noColor}
}

// Render prints one line per result with the match highlighted inside its
// context.
func (r *ResultsRenderer) Render(query, fileName string, results []search.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintf(r.out, "No matches for %q in %s\n", query, fileName)
		return
	}

	noun := "matches"
	if len(results) == 1 {
		noun = "match"
	}
	_, _ = fmt.Fprintln(r.out, r.styles.Header.Render(
		fmt.Sprintf("%d %s for %q in %s", len(results), noun, query, fileName)))

	for _, res := range results {
		line := r.styles.Page.Render(fmt.Sprintf("p.%-3d", res.Page)) + " " + r.Highlight(res.Context, res.Highlight)
		if res.Position != nil {
			line += " " + r.styles.Dim.Render(fmt.Sprintf("(x=%g, y=%g)", res.Position.X, res.Position.Y))
		}
		_, _ = fmt.Fprintln(r.out, line)
	}
}

// Highlight marks the first occurrence of match in context. Without color
// the match is wrapped in brackets.
func (r *ResultsRenderer) Highlight(context, match string) string {
	context = strings.ReplaceAll(context, "\n", " ")
	idx := strings.Index(context, match)
	if match == "" || idx < 0 {
		return context
	}
	marked := r.styles.Match.Render(match)
	if r.noColor {
		marked = "[" + match + "]"
	}
	return context[:idx] + marked + context[idx+len(match):]
}

// latencyOrder is the display order of the latency histogram.
var latencyOrder = []telemetry.LatencyBucket{
	telemetry.BucketP1,
	telemetry.BucketP5,
	telemetry.BucketP20,
	telemetry.BucketP100,
	telemetry.BucketSlow,
}

// RenderStats prints a query statistics panel.
func (r *ResultsRenderer) RenderStats(s *telemetry.Snapshot) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", r.styles.Header.Render("Query statistics"))
	fmt.Fprintf(&sb, "%s %d\n", r.field("Queries:"), s.TotalQueries)
	fmt.Fprintf(&sb, "%s %d (%.1f%%)\n", r.field("Zero-result:"), s.ZeroResultCount, s.ZeroResultPercentage())
	fmt.Fprintf(&sb, "%s %d\n", r.field("Matches:"), s.TotalMatches)
	fmt.Fprintf(&sb, "%s %d\n", r.field("Pages read:"), s.PagesScanned)

	if len(s.ModeCounts) > 0 {
		modes := make([]string, 0, len(s.ModeCounts))
		for m := range s.ModeCounts {
			modes = append(modes, string(m))
		}
		sort.Strings(modes)
		parts := make([]string, len(modes))
		for i, m := range modes {
			parts[i] = fmt.Sprintf("%s=%d", m, s.ModeCounts[telemetry.QueryMode(m)])
		}
		fmt.Fprintf(&sb, "%s %s\n", r.field("Modes:"), strings.Join(parts, " "))
	}

	values := make([]float64, len(latencyOrder))
	for i, b := range latencyOrder {
		values[i] = float64(s.LatencyDistribution[b])
	}
	fmt.Fprintf(&sb, "%s %s  <1ms..>=100ms\n", r.field("Latency:"), r.styles.Spark.Render(Sparkline(values)))

	if len(s.TopTerms) > 0 {
		sb.WriteString("\n" + r.styles.Label.Render("Top terms") + "\n")
		for _, tc := range s.TopTerms {
			fmt.Fprintf(&sb, "  %-20s %d\n", tc.Term, tc.Count)
		}
	}
	if len(s.ZeroResultQueries) > 0 {
		sb.WriteString("\n" + r.styles.Label.Render("Recent zero-result queries") + "\n")
		for _, q := range s.ZeroResultQueries {
			fmt.Fprintf(&sb, "  %s\n", q)
		}
	}

	_, _ = fmt.Fprintln(r.out, strings.TrimRight(sb.String(), "\n"))
}

// field renders a label padded to a fixed column.
func (r *ResultsRenderer) field(label string) string {
	const width = 12
	pad := ""
	if len(label) < width {
		pad = strings.Repeat(" ", width-len(label))
	}
	return r.styles.Label.Render(label) + pad
}
