package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sammcj/pdfmaster/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootLifecycle(t *testing.T) {
	base := t.TempDir()
	root := New(base, testutils.CreateTestLogger())

	assert.Equal(t, StateUninitialized, root.State())
	assert.ErrorIs(t, root.Active(), ErrNotActive)

	require.NoError(t, root.Init())
	assert.Equal(t, StateActive, root.State())
	assert.NoError(t, root.Active())

	for _, dir := range []string{root.UploadDir(), root.OutputDir(), root.WorkDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.True(t, root.Contains(dir))
	}
	assert.Equal(t, base, filepath.Dir(root.Path()))
	assert.Contains(t, filepath.Base(root.Path()), DirPrefix)

	require.NoError(t, os.WriteFile(filepath.Join(root.OutputDir(), "x.pdf"), []byte("%PDF"), 0o600))

	require.NoError(t, root.Cleanup())
	assert.Equal(t, StateTerminated, root.State())
	_, err := os.Stat(root.Path())
	assert.True(t, os.IsNotExist(err), "session root should be gone after cleanup")

	// A second cleanup is a no-op.
	assert.NoError(t, root.Cleanup())
	assert.Equal(t, StateTerminated, root.State())
}

func TestInitTwice(t *testing.T) {
	root := New(t.TempDir(), testutils.CreateTestLogger())
	require.NoError(t, root.Init())
	defer func() { _ = root.Cleanup() }()

	err := root.Init()
	testutils.AssertErrorContains(t, err, "already active")
}

func TestCleanupBeforeInit(t *testing.T) {
	root := New(t.TempDir(), testutils.CreateTestLogger())
	assert.NoError(t, root.Cleanup())
	assert.Equal(t, StateTerminated, root.State())
	assert.Error(t, root.Init())
}

func TestCleanupConcurrent(t *testing.T) {
	root := New(t.TempDir(), testutils.CreateTestLogger())
	require.NoError(t, root.Init())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- root.Cleanup()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, StateTerminated, root.State())
}

func TestContains(t *testing.T) {
	root := New(t.TempDir(), testutils.CreateTestLogger())
	assert.False(t, root.Contains("/etc/passwd"), "uninitialised root contains nothing")

	require.NoError(t, root.Init())
	defer func() { _ = root.Cleanup() }()

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"root itself", root.Path(), true},
		{"upload file", filepath.Join(root.UploadDir(), "a.pdf"), true},
		{"escape with dots", filepath.Join(root.UploadDir(), "..", "..", "x"), false},
		{"unrelated", "/etc/passwd", false},
		{"sibling prefix", root.Path() + "-other/file", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, root.Contains(tt.path))
		})
	}
}

func TestMkdirWork(t *testing.T) {
	root := New(t.TempDir(), testutils.CreateTestLogger())
	_, err := root.MkdirWork("render-*")
	assert.ErrorIs(t, err, ErrNotActive)

	require.NoError(t, root.Init())
	dir, err := root.MkdirWork("render-*")
	require.NoError(t, err)
	assert.True(t, root.Contains(dir))
	require.NoError(t, root.Cleanup())
}

func TestSweepOrphans(t *testing.T) {
	base := t.TempDir()
	logger := testutils.CreateTestLogger()

	active := New(base, logger)
	require.NoError(t, active.Init())
	defer func() { _ = active.Cleanup() }()

	orphan := filepath.Join(base, DirPrefix+"orphan")
	require.NoError(t, os.MkdirAll(filepath.Join(orphan, "uploads"), 0o750))

	fresh := filepath.Join(base, DirPrefix+"fresh")
	require.NoError(t, os.MkdirAll(fresh, 0o750))

	unrelated := filepath.Join(base, "something-else")
	require.NoError(t, os.MkdirAll(unrelated, 0o750))

	old := time.Now().Add(-2 * time.Hour)
	for _, dir := range []string{active.Path(), orphan, unrelated} {
		require.NoError(t, os.Chtimes(dir, old, old))
	}

	removed, err := SweepOrphans(base, logger)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err), "orphan should be removed")
	_, err = os.Stat(active.Path())
	assert.NoError(t, err, "locked root must survive")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "young root must survive")
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "cleaning", StateCleaning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}
