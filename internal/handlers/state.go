package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
	"github.com/harunnryd/tollgate/internal/logger"
	"github.com/harunnryd/tollgate/internal/pathutil"
)

// StateStore persists one record per (session, handler).
type StateStore interface {
	Load(sessionID, handler string, v any) error
	Save(sessionID, handler string, v any) error
}

// Clock returns the current time.
type Clock func() time.Time

// loadState returns the persisted state, or the zero value when it is missing or unreadable.
func loadState[T any](ctx context.Context, st StateStore, sessionID, handler string) T {
	var v T
	if st == nil {
		return v
	}
	if err := st.Load(sessionID, handler, &v); err != nil {
		if !errors.Is(err, tgErrors.ErrNotFound) {
			logger.From(ctx).Warn("State unreadable, starting empty", "handler", handler, "error", err)
		}
		var zero T
		return zero
	}
	return v
}

// saveState is best effort: a lost write only degrades the handler's memory.
func saveState(ctx context.Context, st StateStore, sessionID, handler string, v any) {
	if st == nil {
		return
	}
	if err := st.Save(sessionID, handler, v); err != nil {
		logger.From(ctx).Warn("Failed to persist state", "handler", handler, "error", err)
	}
}

// editTarget is the file an edit action writes to.
func editTarget(input func(keys ...string) string) string {
	return input("file_path", "notebook_path", "path")
}

// existingDir walks up from path to the first directory that exists.
func existingDir(path string) string {
	cur := filepath.Clean(path)
	for {
		if info, err := os.Stat(cur); err == nil && info.IsDir() {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return cur
		}
		cur = parent
	}
}

// resolveTarget makes target absolute against the working directory.
func resolveTarget(target, workDir string) string {
	return pathutil.Normalize(strings.TrimSpace(target), workDir)
}
