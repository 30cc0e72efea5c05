package policy

import (
	"fmt"
	"strings"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
	"github.com/harunnryd/tollgate/internal/hook"
)

// Registry keeps handlers per event kind in registration order, which is also invocation
// order. Blocking handlers go before advisory ones so a block short-circuits early.
type Registry struct {
	byKind map[hook.Kind][]Handler
	names  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[hook.Kind][]Handler),
		names:  make(map[string]struct{}),
	}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return tgErrors.InvalidInput("handler is nil")
	}
	name := strings.TrimSpace(h.Name())
	if name == "" {
		return tgErrors.InvalidInput("handler name is empty")
	}
	if _, exists := r.names[name]; exists {
		return tgErrors.InvalidInput(fmt.Sprintf("handler %q already registered", name))
	}

	sel := h.AppliesTo()
	if len(sel.Kinds) == 0 {
		return tgErrors.InvalidInput(fmt.Sprintf("handler %q applies to no event kind", name))
	}

	r.names[name] = struct{}{}
	for _, kind := range sel.Kinds {
		r.byKind[kind] = append(r.byKind[kind], h)
	}
	return nil
}

// Resolve returns the handlers to invoke for kind and action. Unknown kinds resolve to nothing.
func (r *Registry) Resolve(kind hook.Kind, action string) []Handler {
	var out []Handler
	for _, h := range r.byKind[kind] {
		if h.AppliesTo().Matches(kind, action) {
			out = append(out, h)
		}
	}
	return out
}

// Handlers lists everything registered for kind, regardless of action.
func (r *Registry) Handlers(kind hook.Kind) []Handler {
	return append([]Handler(nil), r.byKind[kind]...)
}

func (r *Registry) Len() int {
	return len(r.names)
}
