package runtime

import (
	"fmt"
	"log/slog"

	"github.com/harunnryd/tollgate/internal/config"
	"github.com/harunnryd/tollgate/internal/handlers"
	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/store"
)

// RuntimeComponents is everything one invocation needs, built once per process.
type RuntimeComponents struct {
	Config     *config.Config
	Store      *store.Store
	Audit      *policy.FileAuditLogger
	Registry   *policy.Registry
	Dispatcher *policy.Dispatcher
}

func NewRuntimeComponents(cfg *config.Config, deps handlers.Deps) (*RuntimeComponents, error) {
	components := &RuntimeComponents{Config: cfg}

	st, err := store.New(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	components.Store = st
	if deps.Store == nil {
		deps.Store = st
	}

	audit, err := policy.NewFileAuditLogger(cfg.AuditPath(), cfg.Audit.Enabled, cfg.Audit.RedactPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	components.Audit = audit

	registry, err := handlers.InitializeRegistry(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}
	components.Registry = registry
	components.Dispatcher = policy.NewDispatcher(registry, audit)

	slog.Debug("Runtime initialized", "handlers", registry.Len(), "state_dir", st.Dir(), "audit", audit.Path())
	return components, nil
}
