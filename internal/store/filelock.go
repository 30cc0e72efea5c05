package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/tollgate/internal/config"

	"github.com/gofrs/flock"
)

// FileLock is an exclusive advisory lock on a file, acquired with bounded retries.
type FileLock struct {
	fileLock   *flock.Flock
	lockPath   string
	acquiredAt time.Time
	mu         sync.Mutex
}

type FileLockConfig struct {
	LockTimeout  time.Duration
	LockRetry    time.Duration
	LockMaxRetry int
}

func DefaultFileLockConfig() *FileLockConfig {
	lockTimeout, _ := config.DurationOrDefault(config.DefaultLockTimeout, config.DefaultLockTimeout)
	lockRetry, _ := config.DurationOrDefault(config.DefaultLockRetry, config.DefaultLockRetry)

	return &FileLockConfig{
		LockTimeout:  lockTimeout,
		LockRetry:    lockRetry,
		LockMaxRetry: config.DefaultLockMaxRetry,
	}
}

// FileLockConfigFrom builds lock settings from the store section, falling back to defaults.
func FileLockConfigFrom(cfg config.StoreConfig) *FileLockConfig {
	lockCfg := DefaultFileLockConfig()
	if d, err := config.DurationOrDefault(cfg.LockTimeout, config.DefaultLockTimeout); err == nil {
		lockCfg.LockTimeout = d
	}
	if d, err := config.DurationOrDefault(cfg.LockRetry, config.DefaultLockRetry); err == nil {
		lockCfg.LockRetry = d
	}
	if cfg.LockMaxRetry > 0 {
		lockCfg.LockMaxRetry = cfg.LockMaxRetry
	}
	return lockCfg
}

func NewFileLock(ctx context.Context, lockPath string, cfg *FileLockConfig) (*FileLock, error) {
	if cfg == nil {
		cfg = DefaultFileLockConfig()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.LockTimeout)
	defer cancel()

	fl := &FileLock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
	}

	if err := fl.acquireWithRetry(ctx, cfg); err != nil {
		return nil, err
	}

	fl.acquiredAt = time.Now()
	slog.Debug("File lock acquired", "path", lockPath)
	return fl, nil
}

func (fl *FileLock) acquireWithRetry(ctx context.Context, cfg *FileLockConfig) error {
	for i := 0; i < cfg.LockMaxRetry; i++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock acquisition cancelled: %w", ctx.Err())
		default:
			locked, err := fl.fileLock.TryLock()
			if err != nil {
				return fmt.Errorf("failed to attempt lock: %w", err)
			}
			if locked {
				return nil
			}

			if i < cfg.LockMaxRetry-1 {
				time.Sleep(cfg.LockRetry)
			}
		}
	}

	return fmt.Errorf("%s is locked by another process (gave up after %d attempts)", fl.lockPath, cfg.LockMaxRetry)
}

func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.fileLock == nil {
		return
	}

	if err := fl.fileLock.Unlock(); err != nil {
		slog.Error("Failed to release file lock", "path", fl.lockPath, "error", err)
	} else {
		slog.Debug("File lock released", "path", fl.lockPath, "held_duration_ms", time.Since(fl.acquiredAt).Milliseconds())
	}

	fl.fileLock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.fileLock != nil
}
