package handlers

import (
	"context"
	"fmt"
	"strings"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/vcs"
)

const SessionContextName = "session-context"

type sessionContextState struct {
	Injected bool `json:"injected"`
}

// SessionContext tells the agent which branch and tree it is working in, once per session.
type SessionContext struct {
	store StateStore
	repo  vcs.Repository
}

func NewSessionContext(store StateStore, repo vcs.Repository) *SessionContext {
	return &SessionContext{store: store, repo: repo}
}

func (h *SessionContext) Name() string { return SessionContextName }

func (h *SessionContext) Description() string {
	return "Injects branch and worktree facts on the first prompt"
}

func (h *SessionContext) AppliesTo() policy.Selector {
	return policy.Selector{Kinds: []hook.Kind{hook.PromptSubmitted}}
}

func (h *SessionContext) Check(ctx context.Context, env *hook.Envelope) (policy.Outcome, error) {
	st := loadState[sessionContextState](ctx, h.store, env.SessionID(), h.Name())
	if st.Injected {
		return policy.Allow(), nil
	}

	dir := env.WorkingDirectory()
	layout, err := h.repo.Layout(ctx, dir)
	if tgErrors.IsCategory(err, tgErrors.ErrNotRepository) {
		st.Injected = true
		saveState(ctx, h.store, env.SessionID(), h.Name(), st)
		return policy.Allow(), nil
	}
	if err != nil {
		return policy.Allow(), err
	}

	branch, err := h.repo.CurrentBranch(ctx, dir)
	if err != nil {
		return policy.Allow(), err
	}
	if branch == "" {
		branch = "(detached HEAD)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\nBranch: %s", layout.TopLevel, branch)
	if layout.InWorktree() {
		fmt.Fprintf(&b, "\nWorktree: %s (main tree at %s). Keep every edit inside the worktree.", layout.TopLevel, layout.SharedRoot())
	}

	st.Injected = true
	saveState(ctx, h.store, env.SessionID(), h.Name(), st)
	return policy.InjectContext(b.String()), nil
}
