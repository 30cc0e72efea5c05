package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"

	"github.com/hashicorp/go-multierror"
)

const sweepLockName = ".sweep.lock"

type SweepResult struct {
	Scanned int
	Removed int
}

// Sweep deletes records and orphaned temp files not modified within maxAge. Concurrent
// sweeps serialize on a lock file in the state directory; dispatch never takes it.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration, lockCfg *FileLockConfig) (SweepResult, error) {
	var result SweepResult

	lock, err := NewFileLock(ctx, filepath.Join(s.dir, sweepLockName), lockCfg)
	if err != nil {
		return result, tgErrors.WrapWithCategory(err, "acquire sweep lock", tgErrors.ErrStateIO)
	}
	defer lock.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return result, tgErrors.WrapWithCategory(err, "read state dir", tgErrors.ErrStateIO)
	}

	cutoff := s.now().Add(-maxAge)
	var errs *multierror.Error
	for _, entry := range entries {
		// Only records and their temp files; the audit log and lock share the directory.
		if entry.IsDir() || !strings.Contains(entry.Name(), keySeparator) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = multierror.Append(errs, err)
			}
			continue
		}
		result.Scanned++
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierror.Append(errs, err)
			continue
		}
		result.Removed++
		slog.Debug("Swept stale state file", "file", entry.Name(), "age", s.now().Sub(info.ModTime()))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return result, tgErrors.WrapWithCategory(err, "sweep state dir", tgErrors.ErrStateIO)
	}
	return result, nil
}
