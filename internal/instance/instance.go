// Package instance keeps a single docfind server running per data directory.
//
// The guard is a gofrs/flock lock on serve.lock next to a serve.pid file
// naming the holder, so a second server fails fast with a useful message.
package instance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	dferrors "github.com/Aman-CERP/docfind/internal/errors"
)

const (
	LockFileName = "serve.lock"
	PIDFileName  = "serve.pid"
)

// Guard is a held instance lock.
type Guard struct {
	lock   *flock.Flock
	pid    *PIDFile
	locked bool
}

// Acquire takes the instance lock in dir without blocking. If another
// process holds it, the error carries ErrCodeInstanceLocked and the
// holder's pid when known.
func Acquire(dir string) (*Guard, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	g := &Guard{
		lock: flock.New(filepath.Join(dir, LockFileName)),
		pid:  NewPIDFile(filepath.Join(dir, PIDFileName)),
	}
	acquired, err := g.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		ae := dferrors.New(dferrors.ErrCodeInstanceLocked, "another docfind server is already running", nil).
			WithDetail("lock", g.lock.Path()).
			WithSuggestion("Stop the other server or use a different data directory")
		if pid, err := g.pid.Read(); err == nil {
			ae = ae.WithDetail("pid", fmt.Sprint(pid))
		}
		return nil, ae
	}
	g.locked = true

	if err := g.pid.Write(); err != nil {
		_ = g.lock.Unlock()
		g.locked = false
		return nil, err
	}
	return g, nil
}

// Release removes the pid file and drops the lock. Safe to call twice.
func (g *Guard) Release() error {
	if g == nil || !g.locked {
		return nil
	}
	g.locked = false
	pidErr := g.pid.Remove()
	if err := g.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return pidErr
}

// LockPath returns the lock file path.
func (g *Guard) LockPath() string {
	return g.lock.Path()
}

// Held reports whether the lock is still held.
func (g *Guard) Held() bool {
	return g != nil && g.locked
}
