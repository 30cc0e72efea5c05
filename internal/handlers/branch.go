package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/pathutil"
	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/vcs"
)

const BranchProtectionName = "branch-protection"

// BranchProtection refuses edits inside protected subtrees while a protected branch is
// checked out. It fails closed: if the branch cannot be determined, the edit is blocked.
type BranchProtection struct {
	repo           vcs.Repository
	actions        []string
	protected      []string
	protectedPaths []string
}

func NewBranchProtection(repo vcs.Repository, actions, protected, protectedPaths []string) *BranchProtection {
	return &BranchProtection{
		repo:           repo,
		actions:        actions,
		protected:      protected,
		protectedPaths: protectedPaths,
	}
}

func (h *BranchProtection) Name() string { return BranchProtectionName }

func (h *BranchProtection) Description() string {
	return "Blocks edits while a protected branch is checked out"
}

func (h *BranchProtection) AppliesTo() policy.Selector {
	return policy.Selector{Kinds: []hook.Kind{hook.PreAction}, Actions: h.actions}
}

func (h *BranchProtection) Check(ctx context.Context, env *hook.Envelope) (policy.Outcome, error) {
	raw := editTarget(env.InputString)
	if raw == "" {
		return policy.Allow(), nil
	}

	target := resolveTarget(raw, env.WorkingDirectory())
	dir := existingDir(filepath.Dir(target))

	layout, err := h.repo.Layout(ctx, dir)
	if tgErrors.IsCategory(err, tgErrors.ErrNotRepository) {
		return policy.Allow(), nil
	}
	if err != nil {
		return h.failClosed(raw, err), nil
	}
	if !h.inProtectedSubtree(target, pathutil.Normalize(layout.TopLevel, "")) {
		return policy.Allow(), nil
	}

	branch, err := h.repo.CurrentBranch(ctx, dir)
	if tgErrors.IsCategory(err, tgErrors.ErrNotRepository) {
		return policy.Allow(), nil
	}
	if err != nil {
		return h.failClosed(raw, err), nil
	}
	if !h.IsProtected(branch) {
		return policy.Allow(), nil
	}

	reason := fmt.Sprintf(
		"Branch %q is protected; edits to %s are not allowed on it. Create a working branch first "+
			"(git switch -c feature/<topic>) or a worktree (git worktree add ../<topic> -b feature/<topic>) and retry there.",
		branch, raw,
	)
	return policy.Block(reason, ""), nil
}

// IsProtected matches the configured names exactly, plus release branches such as v1.2.
func (h *BranchProtection) IsProtected(branch string) bool {
	if branch == "" {
		return false
	}
	if slices.Contains(h.protected, branch) {
		return true
	}
	return strings.HasPrefix(branch, "v") && strings.Contains(branch, ".")
}

func (h *BranchProtection) inProtectedSubtree(target, topLevel string) bool {
	if !pathutil.IsWithin(target, topLevel) {
		return false
	}
	if len(h.protectedPaths) == 0 {
		return true
	}
	for _, p := range h.protectedPaths {
		if pathutil.IsWithin(target, pathutil.Normalize(p, topLevel)) {
			return true
		}
	}
	return false
}

func (h *BranchProtection) failClosed(target string, err error) policy.Outcome {
	return policy.Block(
		fmt.Sprintf("Could not determine the current branch for %s (%v). Edits are refused until the branch can be verified.", target, err),
		"",
	)
}
