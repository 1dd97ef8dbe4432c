package mcp

import (
	"fmt"
	"strings"
)

// FormatSearchResults renders search_document output as markdown.
func FormatSearchResults(query, fileName string, out SearchOutput) string {
	if out.TotalResults == 0 {
		return fmt.Sprintf("No results found for %q in %s", query, fileName)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Results for %q in %s\n\n", query, fileName)
	fmt.Fprintf(&sb, "Found %d result", out.TotalResults)
	if out.TotalResults != 1 {
		sb.WriteString("s")
	}
	if out.Truncated {
		fmt.Fprintf(&sb, " (showing first %d)", len(out.Results))
	}
	sb.WriteString("\n\n")

	for i, r := range out.Results {
		fmt.Fprintf(&sb, "%d. **Page %d**, offset %d", i+1, r.Page, r.Offset)
		if r.Position != nil {
			fmt.Fprintf(&sb, " at (%g, %g)", r.Position.X, r.Position.Y)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "   > %s\n", emphasize(r.Context, r.Highlight))
	}
	return sb.String()
}

// emphasize bolds the first occurrence of highlight in the snippet and
// flattens newlines so the quote stays on one line.
func emphasize(context, highlight string) string {
	context = strings.Join(strings.Fields(context), " ")
	if highlight == "" {
		return context
	}
	i := strings.Index(context, highlight)
	if i < 0 {
		return context
	}
	return context[:i] + "**" + highlight + "**" + context[i+len(highlight):]
}
