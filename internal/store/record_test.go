package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/tollgate/internal/config"
	tgErrors "github.com/harunnryd/tollgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type windowState struct {
	Ops         []int64 `json:"ops"`
	LastWarning int64   `json:"last_warning"`
}

func configStore(timeout, retry string, maxRetry int) config.StoreConfig {
	return config.StoreConfig{LockTimeout: timeout, LockRetry: retry, LockMaxRetry: maxRetry}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	return s
}

func TestStore_LoadMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)

	var st windowState
	err := s.Load("sess-1", "batch-opportunity", &st)
	assert.ErrorIs(t, err, tgErrors.ErrNotFound)
	assert.Empty(t, st.Ops)
}

func TestStore_SaveThenLoad(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("sess-1", "batch-opportunity", windowState{Ops: []int64{1, 2}, LastWarning: 2}))

	var st windowState
	require.NoError(t, s.Load("sess-1", "batch-opportunity", &st))
	assert.Equal(t, []int64{1, 2}, st.Ops)
	assert.Equal(t, int64(2), st.LastWarning)

	// overwritten wholesale, no merge
	require.NoError(t, s.Save("sess-1", "batch-opportunity", windowState{Ops: []int64{9}}))
	var next windowState
	require.NoError(t, s.Load("sess-1", "batch-opportunity", &next))
	assert.Equal(t, []int64{9}, next.Ops)
	assert.Zero(t, next.LastWarning)
}

func TestStore_PartitionsBySessionAndHandler(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("a", "h1", windowState{LastWarning: 1}))
	require.NoError(t, s.Save("b", "h1", windowState{LastWarning: 2}))
	require.NoError(t, s.Save("a", "h2", windowState{LastWarning: 3}))

	var st windowState
	require.NoError(t, s.Load("b", "h1", &st))
	assert.Equal(t, int64(2), st.LastWarning)

	records, err := s.List("a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "h1", records[0].Handler)
	assert.Equal(t, "h2", records[1].Handler)
}

func TestStore_RecordPathIsDeterministicAndSafe(t *testing.T) {
	s := newTestStore(t)

	p1 := s.RecordPath("0b9c2f4e-1234", "batch-opportunity")
	assert.Equal(t, p1, s.RecordPath("0b9c2f4e-1234", "batch-opportunity"))
	assert.Equal(t, "0b9c2f4e-1234--batch-opportunity.json", filepath.Base(p1))

	hostile := s.RecordPath("../../etc/passwd", "h")
	assert.Equal(t, s.Dir(), filepath.Dir(hostile))
	assert.NotContains(t, filepath.Base(hostile), "/")

	assert.Equal(t, "anonymous--h.json", filepath.Base(s.RecordPath("  ", "h")))
	assert.NotEqual(t, s.RecordPath("a--b", "h"), s.RecordPath("a", "b--h"))
}

func TestStore_CorruptRecordIsStateIO(t *testing.T) {
	s := newTestStore(t)
	path := s.RecordPath("sess", "h")
	require.NoError(t, os.WriteFile(path, []byte(`{"session_id":"sess","data":{"ops":[1,`), 0600))

	var st windowState
	err := s.Load("sess", "h", &st)
	assert.ErrorIs(t, err, tgErrors.ErrStateIO)
}

// A writer that dies after writing a partial temp file but before the rename must leave
// the previous record readable.
func TestStore_CrashBeforeRenameKeepsPreviousRecord(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("sess", "h", windowState{Ops: []int64{1}}))

	s.writeFile = func(path string, r io.Reader) error {
		tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path))
		if err != nil {
			return err
		}
		defer tmp.Close()
		data, _ := io.ReadAll(r)
		_, _ = tmp.Write(data[:len(data)/2])
		return errors.New("killed before rename")
	}

	err := s.Save("sess", "h", windowState{Ops: []int64{1, 2, 3}})
	require.ErrorIs(t, err, tgErrors.ErrStateIO)

	for i := 0; i < 3; i++ {
		var st windowState
		require.NoError(t, s.Load("sess", "h", &st))
		assert.Equal(t, []int64{1}, st.Ops)
	}

	// leftover temp file does not show up as a record
	records, err := s.List("sess")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestStore_CrashWithNoPreviousRecord(t *testing.T) {
	s := newTestStore(t)
	s.writeFile = func(path string, r io.Reader) error {
		return os.WriteFile(path+".tmp-partial", []byte(`{"sess`), 0600)
	}

	require.Error(t, s.Save("sess", "h", windowState{Ops: []int64{1}}))

	var st windowState
	assert.ErrorIs(t, s.Load("sess", "h", &st), tgErrors.ErrNotFound)
}

func TestStore_SaveStampsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Save("sess", "h", map[string]int{"count": 1}))

	records, err := s.List("sess")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].UpdatedAt.Equal(fixed))
	assert.True(t, strings.Contains(string(records[0].Data), `"count":1`))
}

func TestNew_RejectsEmptyDir(t *testing.T) {
	_, err := New("  ")
	assert.ErrorIs(t, err, tgErrors.ErrInvalidInput)
}
