package errorlog

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesSanitisedEntry(t *testing.T) {
	l, err := Open(t.TempDir(), testutils.CreateTestLogger())
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	l.Log("unlock", map[string]any{"password": "wrong", "file_id": "abc"}, response.BadRequest("Invalid password", nil), "http")

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "unlock", e.Operation)
	assert.Equal(t, "Invalid password", e.Error)
	assert.Equal(t, "bad_request", e.Category)
	assert.Equal(t, "http", e.Transport)
	assert.Equal(t, "[REDACTED]", e.Arguments["password"])
	assert.Equal(t, "abc", e.Arguments["file_id"])
}

func TestLogIgnoresNilError(t *testing.T) {
	l, err := Open(t.TempDir(), testutils.CreateTestLogger())
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	l.Log("merge", nil, nil, "http")

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPruneDropsOldEntries(t *testing.T) {
	l, err := Open(t.TempDir(), testutils.CreateTestLogger())
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now.AddDate(0, 0, -90) }
	l.Log("split", nil, errors.New("old failure"), "cli")
	l.now = func() time.Time { return now.AddDate(0, 0, -1) }
	l.Log("split", nil, errors.New("recent failure"), "cli")

	l.now = func() time.Time { return now }
	dropped, err := l.Prune(DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent failure", entries[0].Error)

	// The file is still writable after pruning.
	l.Log("split", nil, errors.New("after prune"), "cli")
	entries, err = l.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPruneKeepsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, testutils.CreateTestLogger())
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	require.NoError(t, os.WriteFile(l.Path(), []byte("not json\n{\"timestamp\":\"2000-01-01T00:00:00Z\",\"operation\":\"x\",\"error\":\"e\"}\n"), 0o600))

	dropped, err := l.Prune(DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, "not json\n", string(data))
}

func TestDisabledLogger(t *testing.T) {
	l := Disabled()
	assert.False(t, l.Enabled())
	l.Log("merge", nil, errors.New("x"), "http")
	entries, err := l.Entries()
	assert.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, l.Close())
}
