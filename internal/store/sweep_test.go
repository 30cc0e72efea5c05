package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_RemovesOnlyStaleFiles(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("old", "h", windowState{}))
	require.NoError(t, s.Save("fresh", "h", windowState{}))
	orphan := filepath.Join(s.Dir(), "old--h.json123456")
	require.NoError(t, os.WriteFile(orphan, []byte("{"), 0600))
	audit := filepath.Join(s.Dir(), "audit.jsonl")
	require.NoError(t, os.WriteFile(audit, []byte("{}\n"), 0600))

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(s.RecordPath("old", "h"), stale, stale))
	require.NoError(t, os.Chtimes(orphan, stale, stale))
	require.NoError(t, os.Chtimes(audit, stale, stale))

	result, err := s.Sweep(context.Background(), 24*time.Hour, shortLockConfig(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.Removed)

	_, err = os.Stat(s.RecordPath("old", "h"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.RecordPath("fresh", "h"))
	assert.NoError(t, err)
	_, err = os.Stat(audit)
	assert.NoError(t, err, "files other than records are kept")
}

func TestSweep_BlockedByConcurrentSweep(t *testing.T) {
	s := newTestStore(t)

	held, err := NewFileLock(context.Background(), filepath.Join(s.Dir(), sweepLockName), nil)
	require.NoError(t, err)
	defer held.Unlock()

	_, err = s.Sweep(context.Background(), time.Hour, shortLockConfig(50*time.Millisecond))
	assert.Error(t, err)
}
