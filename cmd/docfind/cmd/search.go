package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	filters search.Filters
	limit   int
	format  string // "text", "json"
}

// searchOutput is the --format json shape.
type searchOutput struct {
	Query        string          `json:"query"`
	FileName     string          `json:"fileName"`
	TotalResults int             `json:"totalResults"`
	Results      []search.Result `json:"results"`
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <file> <query>",
		Short: "Search a document for text",
		Long: `Search a PDF or pdf2json file and print each match with its page,
surrounding context and position.

Matching is case-insensitive and literal by default. With --regex the query
is RE2 syntax; an invalid expression is matched literally instead.

Examples:
  docfind search invoice.pdf "total due"
  docfind search invoice.pdf total --whole-word --case-sensitive
  docfind search invoice.pdf "INV-[0-9]+" --regex --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", opts.format)
			}
			return runSearch(cmd, root, args[0], strings.Join(args[1:], " "), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.filters.CaseSensitive, "case-sensitive", "c", false, "Match case exactly")
	cmd.Flags().BoolVarP(&opts.filters.WholeWord, "whole-word", "w", false, "Match whole words only")
	cmd.Flags().BoolVarP(&opts.filters.Regex, "regex", "r", false, "Treat the query as a regular expression")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 for all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, path, query string, opts searchOptions) error {
	ctx := cmd.Context()
	logger, cleanup := root.fileLogger()
	defer cleanup()

	metrics, closeMetrics, err := openMetrics(root.cfg, logger)
	if err != nil {
		logger.Warn("telemetry unavailable", slog.String("error", err.Error()))
		metrics, closeMetrics = nil, func() {}
	}
	defer closeMetrics()

	svc, err := newService(root.cfg, logger, metrics)
	if err != nil {
		return err
	}
	rec, err := svc.IngestFile(ctx, path)
	if err != nil {
		return err
	}
	_, results, err := svc.Search(ctx, rec.ID, query, opts.filters)
	if err != nil {
		return err
	}
	total := len(results)
	if opts.limit > 0 && len(results) > opts.limit {
		results = results[:opts.limit]
	}
	logger.Info("search_complete",
		slog.String("query", query),
		slog.String("file", rec.Name),
		slog.Int("result_count", total))

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(searchOutput{Query: query, FileName: rec.Name, TotalResults: total, Results: results})
	}

	noColor := !ui.IsTTY(out) || ui.DetectNoColor()
	ui.NewResultsRenderer(out, noColor).Render(query, rec.Name, results)
	if total > len(results) {
		_, _ = fmt.Fprintf(out, "... %d more (use --limit 0 to show all)\n", total-len(results))
	}
	return nil
}
