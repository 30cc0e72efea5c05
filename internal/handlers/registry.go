package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/tollgate/internal/config"
	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/transcript"
	"github.com/harunnryd/tollgate/internal/vcs"
)

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Store       StateStore
	Repo        vcs.Repository
	Transcripts transcript.Reader
	Now         Clock
}

// InitializeRegistry builds every handler once and registers it in invocation order:
// gates that may block come before advisory handlers for the same kind.
func InitializeRegistry(cfg *config.Config, deps Deps) (*policy.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if deps.Repo == nil {
		deps.Repo = vcs.NewGit()
	}
	if deps.Transcripts == nil {
		deps.Transcripts = transcript.NewFileReader()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	window, err := config.DurationOrDefault(cfg.Batch.Window, config.DefaultBatchWindow)
	if err != nil {
		return nil, fmt.Errorf("batch.window: %w", err)
	}
	cooldown, err := config.DurationOrDefault(cfg.Batch.Cooldown, config.DefaultBatchCooldown)
	if err != nil {
		return nil, fmt.Errorf("batch.cooldown: %w", err)
	}

	candidates := []policy.Handler{
		// PreAction gates
		NewWorktreeIsolation(deps.Repo, cfg.Worktree.EditActions),
		NewBranchProtection(deps.Repo, cfg.Worktree.EditActions, cfg.Branch.Protected, cfg.Branch.ProtectedPaths),
		NewCommitMessage(cfg.Commit.ShellActions, cfg.Commit.AllowedTypes),
		// PreAction advisory
		NewBatchOpportunity(deps.Store, deps.Now, BatchOptions{
			Actions:   cfg.Batch.Actions,
			Window:    window,
			Threshold: cfg.Batch.Threshold,
			Cooldown:  cooldown,
		}),
		// PostAction
		NewMistakePatterns(deps.Store, cfg.Mistakes.Threshold),
		// PromptSubmitted
		NewSessionContext(deps.Store, deps.Repo),
		NewStatusReminder(cfg.StopGuard.Command, cfg.StopGuard.Markers),
		// TurnEnd
		NewStopLoopGuard(deps.Transcripts, cfg.StopGuard.Command, cfg.StopGuard.Markers, cfg.StopGuard.Window),
	}

	registry := policy.NewRegistry()
	for _, h := range candidates {
		if cfg.IsHandlerDisabled(h.Name()) {
			slog.Debug("Handler disabled by config", "handler", h.Name())
			continue
		}
		if h.Name() == SessionContextName && !cfg.Context.Enabled {
			continue
		}
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Names lists every handler InitializeRegistry knows, in registration order.
func Names() []string {
	return []string{
		WorktreeIsolationName,
		BranchProtectionName,
		CommitMessageName,
		BatchOpportunityName,
		MistakePatternsName,
		SessionContextName,
		StatusReminderName,
		StopLoopGuardName,
	}
}
