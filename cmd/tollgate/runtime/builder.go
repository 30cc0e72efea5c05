package runtime

import (
	"fmt"

	"github.com/harunnryd/tollgate/internal/config"
	"github.com/harunnryd/tollgate/internal/handlers"
)

type RuntimeBuilder interface {
	WithConfig(cfg *config.Config) RuntimeBuilder
	WithDeps(deps handlers.Deps) RuntimeBuilder
	Build() (*RuntimeComponents, error)
}

type DefaultRuntimeBuilder struct {
	cfg  *config.Config
	deps handlers.Deps
}

func NewRuntimeBuilder() RuntimeBuilder {
	return &DefaultRuntimeBuilder{}
}

func (b *DefaultRuntimeBuilder) WithConfig(cfg *config.Config) RuntimeBuilder {
	b.cfg = cfg
	return b
}

// WithDeps overrides collaborators; zero fields keep their production defaults.
func (b *DefaultRuntimeBuilder) WithDeps(deps handlers.Deps) RuntimeBuilder {
	b.deps = deps
	return b
}

func (b *DefaultRuntimeBuilder) Build() (*RuntimeComponents, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewRuntimeComponents(b.cfg, b.deps)
}
