package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/docfind/internal/config"
	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/instance"
	"github.com/Aman-CERP/docfind/internal/logging"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name for JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
	// Code is the docfind error code of a failed check.
	Code string `json:"code,omitempty"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// fail marks r failed with err's message, code and suggestion.
func (r CheckResult) fail(err *dferrors.AppError) CheckResult {
	r.Status = StatusFail
	r.Message = err.Message
	r.Code = err.Code
	if err.Suggestion != "" {
		r.Details = err.Suggestion
	}
	return r
}

// Checker performs preflight validation checks.
type Checker struct {
	cfg     *config.Config
	logCfg  logging.Config
	dataDir string
	verbose bool
	output  io.Writer

	// rlimit and freeSpace read the process and filesystem limits.
	rlimit    func() (uint64, error)
	freeSpace func(dir string) (uint64, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithDataDir overrides the data directory (default config.DataDir()).
func WithDataDir(dir string) Option {
	return func(c *Checker) {
		c.dataDir = dir
	}
}

// WithLogConfig sets the log file settings the server runs with
// (default logging.DefaultConfig()).
func WithLogConfig(cfg logging.Config) Option {
	return func(c *Checker) {
		c.logCfg = cfg
	}
}

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a Checker for cfg.
func New(cfg *config.Config, opts ...Option) *Checker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	c := &Checker{
		cfg:       cfg,
		logCfg:    logging.DefaultConfig(),
		dataDir:   config.DataDir(),
		output:    os.Stdout,
		rlimit:    openFileLimit,
		freeSpace: availableBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check. The instance check runs before the listen check
// so a running server explains a busy port.
func (c *Checker) RunAll(_ context.Context) []CheckResult {
	results := []CheckResult{
		c.CheckWritePermissions("data_dir", c.dataDir),
		c.CheckDiskSpace(),
		c.CheckFileDescriptors(),
		c.CheckInstance(),
	}
	if c.cfg.Server.Transport != "stdio" {
		results = append(results, c.CheckListenAddr(c.cfg.Server.Addr))
	}
	if c.cfg.Watch.Enabled {
		results = append(results, c.CheckWritePermissions("inbox_dir", c.cfg.Watch.Dir))
	}
	if c.cfg.Telemetry.Enabled {
		results = append(results, c.CheckTelemetry(c.cfg.Telemetry.DBPath))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns ready, ready_with_warnings or failed.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "docfind system check")
	_, _ = fmt.Fprintln(c.output, "====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errs []string
	for _, r := range results {
		if r.IsCritical() {
			errs = append(errs, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	printList(c.output, "error(s)", errs)
	printList(c.output, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d %s:\n", len(items), label)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", item)
	}
}

// CheckWritePermissions creates dir if needed and writes a scratch file in it.
func (c *Checker) CheckWritePermissions(name, dir string) CheckResult {
	result := CheckResult{Name: name, Required: true, Details: dir}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create directory: %v", err)
		return result
	}
	scratch := filepath.Join(dir, ".docfind-preflight")
	f, err := os.Create(scratch)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(scratch)

	result.Status = StatusPass
	result.Message = "writable"
	return result
}

// CheckInstance warns when another server holds the instance lock.
func (c *Checker) CheckInstance() CheckResult {
	result := CheckResult{Name: "instance"}

	guard, err := instance.Acquire(c.dataDir)
	if err != nil {
		if ae, ok := dferrors.As(err); ok && ae.Code == dferrors.ErrCodeInstanceLocked {
			result.Status = StatusWarn
			result.Message = "a docfind server is already running"
			if pid := ae.Details["pid"]; pid != "" {
				result.Message += " (pid " + pid + ")"
			}
			result.Details = ae.Details["lock"]
			return result
		}
		result.Status = StatusFail
		result.Required = true
		result.Message = err.Error()
		return result
	}
	_ = guard.Release()

	result.Status = StatusPass
	result.Message = "no other server running"
	return result
}

// CheckTelemetry checks that the query statistics database can be created.
func (c *Checker) CheckTelemetry(dbPath string) CheckResult {
	result := c.CheckWritePermissions("telemetry_db", filepath.Dir(dbPath))
	result.Required = false
	result.Details = dbPath
	if result.Status == StatusFail {
		result.Details = "Set telemetry.enabled: false to run without query statistics"
	}
	return result
}
