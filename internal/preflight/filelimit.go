package preflight

import (
	"fmt"
	"strings"
	"syscall"

	dferrors "github.com/Aman-CERP/docfind/internal/errors"
)

// Descriptor budget. A worker holds the source PDF plus one scratch file
// while it extracts; an HTTP server also needs room for its connections.
const (
	baseDescriptors      = 16
	descriptorsPerWorker = 2
	httpConnDescriptors  = 256
	telemetryDescriptors = 3 // database, WAL and shared-memory files
)

// descriptorUse is one line of the descriptor budget.
type descriptorUse struct {
	what  string
	count uint64
}

// descriptorBudget lists what the configured server keeps open at peak.
func (c *Checker) descriptorBudget() []descriptorUse {
	uses := []descriptorUse{
		{"runtime", baseDescriptors},
		{"extract workers", uint64(max(c.cfg.Extract.Workers, 1)) * descriptorsPerWorker},
	}
	if c.cfg.Server.Transport != "stdio" {
		uses = append(uses, descriptorUse{"listener", 1 + httpConnDescriptors})
	}
	if c.cfg.Watch.Enabled {
		uses = append(uses, descriptorUse{"watcher",
			1 + uint64(max(c.cfg.Watch.Workers, 1))*descriptorsPerWorker})
	}
	if c.logCfg.FilePath != "" {
		uses = append(uses, descriptorUse{"log file", 1})
	}
	if c.cfg.Telemetry.Enabled {
		uses = append(uses, descriptorUse{"telemetry", telemetryDescriptors})
	}
	return uses
}

// RequiredDescriptors is the open-file limit the configured server needs.
func (c *Checker) RequiredDescriptors() uint64 {
	var total uint64
	for _, u := range c.descriptorBudget() {
		total += u.count
	}
	return total
}

// CheckFileDescriptors compares the soft open-file limit with what the
// configured workers, listener, log and telemetry files need.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	limit, err := c.rlimit()
	if err != nil {
		return result.fail(dferrors.New(dferrors.ErrCodeInternal,
			fmt.Sprintf("cannot read open-file limit: %v", err), err))
	}

	need := c.RequiredDescriptors()
	parts := make([]string, 0, 6)
	for _, u := range c.descriptorBudget() {
		parts = append(parts, fmt.Sprintf("%s %d", u.what, u.count))
	}
	result.Details = strings.Join(parts, ", ")

	if limit < need {
		return result.fail(dferrors.New(dferrors.ErrCodeFDLimitLow,
			fmt.Sprintf("limit %d, configuration needs %d", limit, need), nil).
			WithSuggestion(fmt.Sprintf("Run 'ulimit -n %d' or lower extract.workers and watch.workers", need*2)))
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("limit %d, configuration needs %d", limit, need)
	return result
}

func openFileLimit() (uint64, error) {
	var rl syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, err
	}
	return uint64(rl.Cur), nil
}
