package instance

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dferrors "github.com/Aman-CERP/docfind/internal/errors"
)

func TestAcquire_WritesPIDAndReleases(t *testing.T) {
	// Given: an empty data directory
	dir := filepath.Join(t.TempDir(), "data")

	// When: the lock is acquired
	g, err := Acquire(dir)
	require.NoError(t, err)

	// Then: the pid file names this process
	assert.True(t, g.Held())
	assert.Equal(t, filepath.Join(dir, LockFileName), g.LockPath())
	pid, err := NewPIDFile(filepath.Join(dir, PIDFileName)).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// And: release removes it and can be repeated
	require.NoError(t, g.Release())
	require.NoError(t, g.Release())
	assert.False(t, g.Held())
	assert.NoFileExists(t, filepath.Join(dir, PIDFileName))
}

func TestAcquire_SecondHolderIsRejected(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = first.Release() }()

	// flock locks are per open file description, so a second Flock in the
	// same process still conflicts.
	second, err := Acquire(dir)

	require.Error(t, err)
	assert.Nil(t, second)
	ae, ok := dferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, dferrors.ErrCodeInstanceLocked, ae.Code)
	assert.Equal(t, stringPID(), ae.Details["pid"])
}

func TestAcquire_AfterReleaseSucceeds(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestPIDFile(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), "x.pid"))

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)
	assert.False(t, p.IsRunning())
	require.NoError(t, p.Remove())

	require.NoError(t, p.Write())
	assert.True(t, p.IsRunning())

	require.NoError(t, os.WriteFile(p.Path(), []byte("nope"), 0o644))
	_, err = p.Read()
	assert.Error(t, err)
}

func TestGuard_NilRelease(t *testing.T) {
	var g *Guard
	assert.NoError(t, g.Release())
	assert.False(t, g.Held())
}

func stringPID() string {
	return strconv.Itoa(os.Getpid())
}
