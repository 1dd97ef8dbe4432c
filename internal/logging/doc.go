// Package logging sets up structured slog output for docfind.
//
// Servers log JSON to a rotating file under ~/.docfind/logs and, unless the
// MCP stdio transport owns the terminal, to stderr as well. The viewer reads
// those files back for `docfind logs`.
package logging
