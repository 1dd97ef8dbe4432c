package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfind/internal/document"
	"github.com/Aman-CERP/docfind/internal/ui"
)

type extractOptions struct {
	format string
	plain  bool
}

// extractedFile is one document in --format json output.
type extractedFile struct {
	Name string `json:"name"`
	*document.ProcessedDocument
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract <file>...",
		Short: "Extract page text from PDF or pdf2json files",
		Long: `Extract the text of each page, in reading order.

Progress is shown on stderr; extracted text goes to stdout. A file that fails
does not stop the others, but the command exits non-zero.

Examples:
  docfind extract report.pdf
  docfind extract scans/*.json --format json > pages.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", opts.format)
			}
			return runExtract(cmd, root, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output (no TUI)")

	return cmd
}

func runExtract(cmd *cobra.Command, root *rootOptions, paths []string, opts extractOptions) error {
	ctx := cmd.Context()
	logger, cleanup := root.fileLogger()
	defer cleanup()

	svc, err := newService(root.cfg, logger, nil)
	if err != nil {
		return err
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(), ui.WithForcePlain(opts.plain)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}

	start := time.Now()
	var files []extractedFile
	stats := ui.CompletionStats{}
	for i, path := range paths {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageExtracting,
			Current:     i,
			Total:       len(paths),
			CurrentFile: filepath.Base(path),
		})
		rec, err := svc.IngestFile(ctx, path)
		if err != nil {
			stats.Errors++
			renderer.AddError(ui.ErrorEvent{File: path, Err: err})
			continue
		}
		files = append(files, extractedFile{Name: rec.Name, ProcessedDocument: rec.Document})
		stats.Files++
		stats.Pages += rec.Document.TotalPages
		stats.Fragments += rec.Document.FragmentCount()
	}
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageComplete, Current: len(paths), Total: len(paths)})
	stats.Duration = time.Since(start)
	renderer.Complete(stats)
	_ = renderer.Stop()

	if err := writeExtracted(cmd.OutOrStdout(), files, opts.format); err != nil {
		return err
	}
	if stats.Errors > 0 {
		return fmt.Errorf("%d of %d files failed", stats.Errors, len(paths))
	}
	return nil
}

func writeExtracted(w io.Writer, files []extractedFile, format string) error {
	if format == "json" {
		if files == nil {
			files = []extractedFile{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(files)
	}

	for _, f := range files {
		_, _ = fmt.Fprintf(w, "== %s (%d pages)\n", f.Name, f.TotalPages)
		for _, p := range f.Pages {
			_, _ = fmt.Fprintf(w, "\n--- page %d ---\n%s\n", p.PageNumber, p.Content)
		}
		_, _ = fmt.Fprintln(w)
	}
	return nil
}
