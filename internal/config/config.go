package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/harunnryd/tollgate/internal/pathutil"

	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Store     StoreConfig     `koanf:"store" yaml:"store"`
	Audit     AuditConfig     `koanf:"audit" yaml:"audit"`
	Handlers  HandlersConfig  `koanf:"handlers" yaml:"handlers"`
	Worktree  WorktreeConfig  `koanf:"worktree" yaml:"worktree"`
	Branch    BranchConfig    `koanf:"branch" yaml:"branch"`
	Commit    CommitConfig    `koanf:"commit" yaml:"commit"`
	Batch     BatchConfig     `koanf:"batch" yaml:"batch"`
	Mistakes  MistakesConfig  `koanf:"mistakes" yaml:"mistakes"`
	StopGuard StopGuardConfig `koanf:"stop_guard" yaml:"stop_guard"`
	Context   ContextConfig   `koanf:"context" yaml:"context"`
}

type LogConfig struct {
	Level string `koanf:"level" yaml:"level"`
}

type StoreConfig struct {
	Dir          string `koanf:"dir" yaml:"dir"`
	SweepMaxAge  string `koanf:"sweep_max_age" yaml:"sweep_max_age"`
	LockTimeout  string `koanf:"lock_timeout" yaml:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry" yaml:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry" yaml:"lock_max_retry"`
}

type AuditConfig struct {
	Enabled        bool     `koanf:"enabled" yaml:"enabled"`
	Path           string   `koanf:"path" yaml:"path"`
	RedactPatterns []string `koanf:"redact_patterns" yaml:"redact_patterns"`
}

type HandlersConfig struct {
	Disabled []string `koanf:"disabled" yaml:"disabled"`
}

type WorktreeConfig struct {
	EditActions []string `koanf:"edit_actions" yaml:"edit_actions"`
}

type BranchConfig struct {
	Protected      []string `koanf:"protected" yaml:"protected"`
	ProtectedPaths []string `koanf:"protected_paths" yaml:"protected_paths"`
}

type CommitConfig struct {
	AllowedTypes []string `koanf:"allowed_types" yaml:"allowed_types"`
	ShellActions []string `koanf:"shell_actions" yaml:"shell_actions"`
}

type BatchConfig struct {
	Actions   []string `koanf:"actions" yaml:"actions"`
	Window    string   `koanf:"window" yaml:"window"`
	Threshold int      `koanf:"threshold" yaml:"threshold"`
	Cooldown  string   `koanf:"cooldown" yaml:"cooldown"`
}

type MistakesConfig struct {
	Threshold int `koanf:"threshold" yaml:"threshold"`
}

type StopGuardConfig struct {
	Command string   `koanf:"command" yaml:"command"`
	Markers []string `koanf:"markers" yaml:"markers"`
	Window  int      `koanf:"window" yaml:"window"`
}

type ContextConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

const (
	EnvPrefix             = "TOLLGATE_"
	EnvDisabled           = "TOLLGATE_DISABLED"
	DefaultLogLevel       = "warn"
	DefaultStoreDirName   = "tollgate-state"
	DefaultSweepMaxAge    = "24h"
	DefaultLockTimeout    = "5s"
	DefaultLockRetry      = "50ms"
	DefaultLockMaxRetry   = 100
	DefaultAuditEnabled   = true
	DefaultAuditFileName  = "audit.jsonl"
	DefaultBatchWindow    = "30s"
	DefaultBatchThreshold = 3
	DefaultBatchCooldown  = "60s"
	DefaultMistakesThresh = 2
	DefaultStopCommand    = "/status"
	DefaultStopWindow     = 10
	DefaultContextEnabled = true
)

var (
	DefaultEditActions      = []string{"Edit", "Write", "MultiEdit", "NotebookEdit"}
	DefaultProtectedBranch  = []string{"main", "master"}
	DefaultAllowedTypes     = []string{"feature", "bugfix", "docs", "style", "refactor", "performance", "test", "config", "planning", "revert"}
	DefaultShellActions     = []string{"Bash"}
	DefaultBatchActions     = []string{"Read", "Grep", "Glob", "LS"}
	DefaultStopGuardMarkers = []string{"╭", "╰"}
)

// DefaultStoreDir is where state records live unless store.dir overrides it.
func DefaultStoreDir() string {
	return filepath.Join(os.TempDir(), DefaultStoreDirName)
}

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"log.level":              DefaultLogLevel,
		"store.dir":              DefaultStoreDir(),
		"store.sweep_max_age":    DefaultSweepMaxAge,
		"store.lock_timeout":     DefaultLockTimeout,
		"store.lock_retry":       DefaultLockRetry,
		"store.lock_max_retry":   DefaultLockMaxRetry,
		"audit.enabled":          DefaultAuditEnabled,
		"audit.path":             "",
		"audit.redact_patterns":  []string{},
		"handlers.disabled":      []string{},
		"worktree.edit_actions":  DefaultEditActions,
		"branch.protected":       DefaultProtectedBranch,
		"branch.protected_paths": []string{},
		"commit.allowed_types":   DefaultAllowedTypes,
		"commit.shell_actions":   DefaultShellActions,
		"batch.actions":          DefaultBatchActions,
		"batch.window":           DefaultBatchWindow,
		"batch.threshold":        DefaultBatchThreshold,
		"batch.cooldown":         DefaultBatchCooldown,
		"mistakes.threshold":     DefaultMistakesThresh,
		"stop_guard.command":     DefaultStopCommand,
		"stop_guard.markers":     DefaultStopGuardMarkers,
		"stop_guard.window":      DefaultStopWindow,
		"context.enabled":        DefaultContextEnabled,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".tollgate", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// TOLLGATE_BATCH__THRESHOLD=5 -> batch.threshold; comma separated values become lists.
	k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if !strings.Contains(name, "__") {
			return "", nil
		}
		name = strings.ReplaceAll(name, "__", ".")
		if strings.Contains(value, ",") {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return name, parts
		}
		return name, value
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	durations := map[string]string{
		"store.sweep_max_age": c.Store.SweepMaxAge,
		"store.lock_timeout":  c.Store.LockTimeout,
		"store.lock_retry":    c.Store.LockRetry,
		"batch.window":        c.Batch.Window,
		"batch.cooldown":      c.Batch.Cooldown,
	}
	for key, value := range durations {
		d, err := DurationOrDefault(value, "")
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if d <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be positive, got %s", key, value))
		}
	}

	if c.Batch.Threshold <= 0 {
		result = multierror.Append(result, fmt.Errorf("batch.threshold must be positive, got %d", c.Batch.Threshold))
	}
	if c.Mistakes.Threshold <= 0 {
		result = multierror.Append(result, fmt.Errorf("mistakes.threshold must be positive, got %d", c.Mistakes.Threshold))
	}
	if c.StopGuard.Window <= 0 {
		result = multierror.Append(result, fmt.Errorf("stop_guard.window must be positive, got %d", c.StopGuard.Window))
	}
	if len(c.Commit.AllowedTypes) == 0 {
		result = multierror.Append(result, fmt.Errorf("commit.allowed_types cannot be empty"))
	}
	for _, pattern := range c.Audit.RedactPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			result = multierror.Append(result, fmt.Errorf("audit.redact_patterns: %w", err))
		}
	}
	if strings.TrimSpace(c.Store.Dir) == "" {
		result = multierror.Append(result, fmt.Errorf("store.dir cannot be empty"))
	}

	return result.ErrorOrNil()
}

// AuditPath resolves the audit log location, defaulting into the state directory.
func (c *Config) AuditPath() string {
	if strings.TrimSpace(c.Audit.Path) != "" {
		return c.Audit.Path
	}
	return filepath.Join(c.Store.Dir, DefaultAuditFileName)
}

// IsHandlerDisabled reports whether name is switched off via handlers.disabled.
func (c *Config) IsHandlerDisabled(name string) bool {
	for _, disabled := range c.Handlers.Disabled {
		if strings.EqualFold(strings.TrimSpace(disabled), name) {
			return true
		}
	}
	return false
}

// Disabled reports the global kill switch.
func Disabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvDisabled))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// DurationOrDefault parses a duration string and falls back to defaultValue when empty.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	return d, nil
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	storeDir, err := expandConfiguredPath(cfg.Store.Dir)
	if err != nil {
		return err
	}
	if storeDir != "" {
		cfg.Store.Dir = storeDir
	}

	auditPath, err := expandConfiguredPath(cfg.Audit.Path)
	if err != nil {
		return err
	}
	cfg.Audit.Path = auditPath

	return nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	expanded, err := pathutil.Expand(trimmed)
	if err != nil {
		return "", err
	}
	return expanded, nil
}
