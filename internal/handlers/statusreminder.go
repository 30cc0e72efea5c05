package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/policy"
)

const StatusReminderName = "status-reminder"

// StatusReminder primes the agent to answer the status command with the full box.
type StatusReminder struct {
	command string
	markers []string
}

func NewStatusReminder(command string, markers []string) *StatusReminder {
	return &StatusReminder{command: command, markers: markers}
}

func (h *StatusReminder) Name() string { return StatusReminderName }

func (h *StatusReminder) Description() string {
	return "Reminds the agent to reproduce the status box"
}

func (h *StatusReminder) AppliesTo() policy.Selector {
	return policy.Selector{Kinds: []hook.Kind{hook.PromptSubmitted}}
}

func (h *StatusReminder) Check(ctx context.Context, env *hook.Envelope) (policy.Outcome, error) {
	if !invokesCommand(env.Prompt(), h.command) {
		return policy.Allow(), nil
	}
	return policy.InjectContext(fmt.Sprintf(
		"%s was invoked. Reply with the status box verbatim, border lines included (%s).",
		h.command, strings.Join(h.markers, " "),
	)), nil
}
