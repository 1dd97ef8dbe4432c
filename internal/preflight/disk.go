package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	dferrors "github.com/Aman-CERP/docfind/internal/errors"
)

const (
	mb = 1024 * 1024

	// dataDirBytes covers the instance lock and files dropped in the inbox
	// before they are picked up.
	dataDirBytes = 16 * mb
	// telemetryBytes is the headroom kept for the statistics database.
	telemetryBytes = 32 * mb
)

// spaceNeed is the free space one directory must have.
type spaceNeed struct {
	dir   string
	what  []string
	bytes uint64
}

// spaceNeeds lists every directory docfind writes to with the space it
// needs there. Directories that do not exist yet are charged to their
// nearest existing parent, and needs on the same directory add up.
func (c *Checker) spaceNeeds() []spaceNeed {
	var needs []spaceNeed
	add := func(what, dir string, bytes uint64) {
		dir = existingParent(dir)
		for i := range needs {
			if needs[i].dir == dir {
				needs[i].what = append(needs[i].what, what)
				needs[i].bytes += bytes
				return
			}
		}
		needs = append(needs, spaceNeed{dir: dir, what: []string{what}, bytes: bytes})
	}

	add("data", c.dataDir, dataDirBytes)
	if c.logCfg.FilePath != "" {
		// The live file plus every rotated one, each up to MaxSizeMB.
		files := uint64(max(c.logCfg.MaxFiles, 0) + 1)
		add("logs", filepath.Dir(c.logCfg.FilePath), uint64(max(c.logCfg.MaxSizeMB, 1))*mb*files)
	}
	if c.cfg.Telemetry.Enabled && c.cfg.Telemetry.DBPath != "" {
		add("telemetry", filepath.Dir(c.cfg.Telemetry.DBPath), telemetryBytes)
	}
	return needs
}

// CheckDiskSpace checks free space where the data, log and telemetry files
// are written. The log requirement follows the rotation settings.
func (c *Checker) CheckDiskSpace() CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var parts []string
	for _, n := range c.spaceNeeds() {
		label := strings.Join(n.what, "+")
		free, err := c.freeSpace(n.dir)
		if err != nil {
			return result.fail(dferrors.New(dferrors.ErrCodeFilePermission,
				fmt.Sprintf("cannot read free space of %s: %v", n.dir, err), err))
		}
		if free < n.bytes {
			return result.fail(dferrors.New(dferrors.ErrCodeDiskSpaceLow,
				fmt.Sprintf("%s: %s free in %s, needs %s", label, formatBytes(free), n.dir, formatBytes(n.bytes)), nil).
				WithSuggestion("Free space or lower the log rotation size and file count"))
		}
		parts = append(parts, fmt.Sprintf("%s %s free (needs %s)", label, formatBytes(free), formatBytes(n.bytes)))
	}

	result.Status = StatusPass
	result.Message = strings.Join(parts, "; ")
	return result
}

// existingParent returns dir or its closest ancestor that exists.
func existingParent(dir string) string {
	dir = filepath.Clean(dir)
	for {
		if _, err := os.Stat(dir); err == nil || !errors.Is(err, fs.ErrNotExist) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func availableBytes(dir string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// formatBytes renders a byte count with one decimal in the largest unit.
func formatBytes(n uint64) string {
	units := []string{"KB", "MB", "GB", "TB"}
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
