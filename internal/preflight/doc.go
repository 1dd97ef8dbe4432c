// Package preflight checks that the machine can run a docfind server.
//
// The checks cover:
//   - the data directory is writable
//   - free disk space in the data directory (minimum 100 MB)
//   - the file descriptor limit (minimum 1024)
//   - whether another server already holds the instance lock
//   - whether the configured listen address is free
//   - the inbox and telemetry directories, when those features are enabled
//
// Use the Checker type to run them all:
//
//	checker := preflight.New(cfg)
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
