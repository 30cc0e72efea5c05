package handlers

import (
	"context"
	"fmt"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/pathutil"
	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/vcs"
)

const WorktreeIsolationName = "worktree-isolation"

// WorktreeIsolation stops a session running in a linked worktree from editing files that
// belong to the main working tree.
type WorktreeIsolation struct {
	repo    vcs.Repository
	actions []string
}

func NewWorktreeIsolation(repo vcs.Repository, actions []string) *WorktreeIsolation {
	return &WorktreeIsolation{repo: repo, actions: actions}
}

func (h *WorktreeIsolation) Name() string { return WorktreeIsolationName }

func (h *WorktreeIsolation) Description() string {
	return "Blocks edits to the main tree from inside a linked worktree"
}

func (h *WorktreeIsolation) AppliesTo() policy.Selector {
	return policy.Selector{Kinds: []hook.Kind{hook.PreAction}, Actions: h.actions}
}

func (h *WorktreeIsolation) Check(ctx context.Context, env *hook.Envelope) (policy.Outcome, error) {
	raw := editTarget(env.InputString)
	if raw == "" {
		return policy.Allow(), nil
	}

	workDir := env.WorkingDirectory()
	target := resolveTarget(raw, workDir)
	if workDir == "" {
		workDir = existingDir(target)
	}

	layout, err := h.repo.Layout(ctx, workDir)
	if tgErrors.IsCategory(err, tgErrors.ErrNotRepository) {
		return policy.Allow(), nil
	}
	if err != nil {
		return policy.Block(
			fmt.Sprintf("Cannot verify worktree isolation for %s: %v. Refusing the edit until git can be queried.", raw, err),
			"",
		), nil
	}
	if !layout.InWorktree() {
		return policy.Allow(), nil
	}

	sharedRoot := pathutil.Normalize(layout.SharedRoot(), "")
	worktreeRoot := pathutil.Normalize(layout.TopLevel, "")
	if !pathutil.IsWithin(target, sharedRoot) || pathutil.IsWithin(target, worktreeRoot) {
		return policy.Allow(), nil
	}

	corrected, err := pathutil.Rebase(target, sharedRoot, worktreeRoot)
	if err != nil {
		return rebaseFailed(raw, err), nil
	}

	reason := fmt.Sprintf(
		"%s is in the main working tree (%s), but this session is isolated in the worktree %s. Edit %s instead.",
		target, sharedRoot, worktreeRoot, corrected,
	)
	return policy.Block(reason, "corrected_path: "+corrected), nil
}

func rebaseFailed(target string, err error) policy.Outcome {
	return policy.Block(
		fmt.Sprintf("%s is in the main working tree but its worktree path could not be computed (%v). Refusing the edit.", target, err),
		"",
	)
}
