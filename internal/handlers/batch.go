package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/policy"
)

const BatchOpportunityName = "batch-opportunity"

// BatchOptions tunes the sliding window.
type BatchOptions struct {
	Actions   []string
	Window    time.Duration
	Threshold int
	Cooldown  time.Duration
}

type batchOp struct {
	At     time.Time `json:"ts"`
	Action string    `json:"action"`
	Target string    `json:"target"`
}

type batchState struct {
	Ops         []batchOp `json:"ops"`
	LastWarning time.Time `json:"last_warning"`
}

// BatchOpportunity notices runs of sequential read-only lookups and suggests issuing them
// together. It is advisory and never blocks.
type BatchOpportunity struct {
	store StateStore
	now   Clock
	opts  BatchOptions
}

func NewBatchOpportunity(store StateStore, now Clock, opts BatchOptions) *BatchOpportunity {
	if now == nil {
		now = time.Now
	}
	return &BatchOpportunity{store: store, now: now, opts: opts}
}

func (h *BatchOpportunity) Name() string { return BatchOpportunityName }

func (h *BatchOpportunity) Description() string {
	return "Suggests batching runs of sequential read-only lookups"
}

func (h *BatchOpportunity) AppliesTo() policy.Selector {
	return policy.Selector{Kinds: []hook.Kind{hook.PreAction}, Actions: h.opts.Actions}
}

func (h *BatchOpportunity) Check(ctx context.Context, env *hook.Envelope) (policy.Outcome, error) {
	now := h.now()
	st := loadState[batchState](ctx, h.store, env.SessionID(), h.Name())

	st.Ops = append(st.Ops, batchOp{At: now, Action: env.ActionName(), Target: batchTarget(env)})

	cutoff := now.Add(-h.opts.Window)
	kept := st.Ops[:0]
	for _, op := range st.Ops {
		if !op.At.Before(cutoff) {
			kept = append(kept, op)
		}
	}
	st.Ops = kept

	outcome := policy.Allow()
	cooledDown := st.LastWarning.IsZero() || now.Sub(st.LastWarning) > h.opts.Cooldown
	if len(st.Ops) >= h.opts.Threshold && cooledDown {
		outcome = policy.Warn(h.message(st.Ops))
		st.LastWarning = now
	}

	saveState(ctx, h.store, env.SessionID(), h.Name(), st)
	return outcome, nil
}

func (h *BatchOpportunity) message(ops []batchOp) string {
	targets := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Target == "" {
			targets = append(targets, op.Action)
			continue
		}
		targets = append(targets, fmt.Sprintf("%s %s", op.Action, op.Target))
	}
	return fmt.Sprintf(
		"%d read-only lookups in the last %s (%s). Issue independent reads, searches and listings in one batch of parallel calls instead of one at a time.",
		len(ops), h.opts.Window, strings.Join(targets, "; "),
	)
}

func batchTarget(env *hook.Envelope) string {
	return env.InputString("file_path", "pattern", "path", "notebook_path")
}
