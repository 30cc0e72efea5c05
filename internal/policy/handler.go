package policy

import (
	"context"
	"slices"

	"github.com/harunnryd/tollgate/internal/hook"
)

// Handler is one independent policy check. Check returns the zero Outcome for no opinion.
// Handlers are built once per process and must not mutate the envelope.
type Handler interface {
	Name() string
	AppliesTo() Selector
	Check(ctx context.Context, env *hook.Envelope) (Outcome, error)
}

// Selector says which events a handler is registered for. An empty Actions list matches
// every action of the selected kinds.
type Selector struct {
	Kinds   []hook.Kind
	Actions []string
}

func (s Selector) Matches(kind hook.Kind, action string) bool {
	if !slices.Contains(s.Kinds, kind) {
		return false
	}
	if len(s.Actions) == 0 {
		return true
	}
	return slices.Contains(s.Actions, action)
}

// Describer is implemented by handlers that can explain themselves in listings.
type Describer interface {
	Description() string
}

// Describe returns h's description, or "" when it has none.
func Describe(h Handler) string {
	if d, ok := h.(Describer); ok {
		return d.Description()
	}
	return ""
}
