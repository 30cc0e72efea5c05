package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/store"
	"github.com/harunnryd/tollgate/internal/transcript"
	"github.com/harunnryd/tollgate/internal/vcs"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	layout    vcs.Layout
	layoutErr error
	branch    string
	branchErr error
	dirs      []string
}

func (f *fakeRepo) Layout(ctx context.Context, dir string) (vcs.Layout, error) {
	f.dirs = append(f.dirs, dir)
	return f.layout, f.layoutErr
}

func (f *fakeRepo) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return f.branch, f.branchErr
}

func notRepository() error {
	return tgErrors.WrapWithCategory(errors.New("exit status 128"), "fatal: not a git repository", tgErrors.ErrNotRepository)
}

type fakeTranscript struct {
	entries []transcript.Entry
	err     error
	calls   int
}

func (f *fakeTranscript) Tail(ref string, n int) ([]transcript.Entry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.entries) > n {
		return f.entries[len(f.entries)-n:], nil
	}
	return f.entries, nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	return s
}

func editEnv(target, cwd string) *hook.Envelope {
	return hook.New(hook.PreAction, hook.Fields{
		ActionName:       "Edit",
		Input:            map[string]any{"file_path": target},
		SessionID:        "sess-1",
		WorkingDirectory: cwd,
	})
}

func bashEnv(command string) *hook.Envelope {
	return hook.New(hook.PreAction, hook.Fields{
		ActionName: "Bash",
		Input:      map[string]any{"command": command},
		SessionID:  "sess-1",
	})
}
