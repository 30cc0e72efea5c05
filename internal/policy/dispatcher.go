package policy

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/logger"
)

const contextSeparator = "\n\n"

// Dispatcher runs the registered handlers for an envelope and folds their outcomes into
// one Decision.
type Dispatcher struct {
	registry *Registry
	audit    AuditLogger
}

func NewDispatcher(registry *Registry, audit AuditLogger) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{registry: registry, audit: audit}
}

// Dispatch never fails: handler errors and panics count as no opinion, and the first
// Block ends evaluation.
func (d *Dispatcher) Dispatch(ctx context.Context, env *hook.Envelope) Decision {
	decision := AllowDecision()
	if env == nil {
		return decision
	}

	log := logger.From(ctx).With("kind", env.Kind(), "action", env.ActionName())
	handlers := d.registry.Resolve(env.Kind(), env.ActionName())
	if len(handlers) == 0 {
		log.Debug("No handlers for event")
		return decision
	}

	var injected []string
	for _, h := range handlers {
		decision.Evaluated = append(decision.Evaluated, h.Name())

		outcome, err := invoke(ctx, h, env)
		if err != nil {
			log.Error("Handler failed, treating as no opinion",
				"handler", h.Name(), "category", tgErrors.Category(err), "error", err)
			continue
		}

		switch outcome.Verdict() {
		case VerdictBlock:
			decision.Proceed = false
			decision.Reason = outcome.Reason()
			decision.BlockContext = outcome.BlockContext()
			decision.BlockedBy = h.Name()
			decision.InjectedContext = strings.Join(injected, contextSeparator)
			log.Info("Action blocked", "handler", h.Name(), "reason", outcome.Reason())
			d.record(ctx, env, decision)
			return decision
		case VerdictWarn:
			decision.Warnings = append(decision.Warnings, outcome.Message())
		case VerdictInject:
			if env.Kind() != hook.PromptSubmitted && env.Kind() != hook.TurnEnd {
				log.Debug("Dropping injected context for action event", "handler", h.Name())
				continue
			}
			if text := strings.TrimSpace(outcome.Injected()); text != "" {
				injected = append(injected, text)
			}
		}
	}

	decision.InjectedContext = strings.Join(injected, contextSeparator)
	d.record(ctx, env, decision)
	return decision
}

func invoke(ctx context.Context, h Handler, env *hook.Envelope) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.From(ctx).Error("Panic recovered in handler", "handler", h.Name(), "panic", r, "stack", string(debug.Stack()))
			outcome = Allow()
			err = tgErrors.WrapWithCategory(fmt.Errorf("panic: %v", r), "handler "+h.Name(), tgErrors.ErrHandlerFault)
		}
	}()

	outcome, err = h.Check(ctx, env)
	if err != nil {
		return Allow(), tgErrors.WrapWithCategory(err, "handler "+h.Name(), tgErrors.ErrHandlerFault)
	}
	return outcome, nil
}

func (d *Dispatcher) record(ctx context.Context, env *hook.Envelope, decision Decision) {
	if d.audit == nil || decision.Verdict() == VerdictAllow {
		return
	}
	entry := &AuditEntry{
		SessionID: env.SessionID(),
		Kind:      string(env.Kind()),
		Action:    env.ActionName(),
		Verdict:   string(decision.Verdict()),
		Reason:    decision.Reason,
		BlockedBy: decision.BlockedBy,
		Warnings:  decision.Warnings,
		Injected:  decision.InjectedContext != "",
	}
	if err := d.audit.Log(ctx, entry); err != nil {
		logger.From(ctx).Warn("Failed to write audit entry", "error", err)
	}
}

// Response converts a Decision into the wire record.
func Response(d Decision) hook.Response {
	if d.Proceed {
		return hook.Response{AdditionalContext: d.InjectedContext}
	}

	var extra []string
	for _, s := range []string{d.InjectedContext, d.BlockContext} {
		if strings.TrimSpace(s) != "" {
			extra = append(extra, s)
		}
	}
	return hook.Response{
		Decision:          hook.DecisionBlock,
		Reason:            d.Reason,
		AdditionalContext: strings.Join(extra, contextSeparator),
	}
}

// WriteWarnings prints each warning on its own line to the diagnostic stream.
func WriteWarnings(w io.Writer, d Decision) error {
	for _, warning := range d.Warnings {
		if _, err := fmt.Fprintln(w, warning); err != nil {
			return err
		}
	}
	return nil
}
