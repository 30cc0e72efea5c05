package handlers

import (
	"context"
	"fmt"
	"strings"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/transcript"
)

const StopLoopGuardName = "stop-loop-guard"

// StopLoopGuard holds the turn open when the status command ran but the reply is missing
// the status box. A continuation event always passes so the retry can end.
type StopLoopGuard struct {
	transcripts transcript.Reader
	command     string
	markers     []string
	window      int
}

func NewStopLoopGuard(transcripts transcript.Reader, command string, markers []string, window int) *StopLoopGuard {
	return &StopLoopGuard{transcripts: transcripts, command: command, markers: markers, window: window}
}

func (h *StopLoopGuard) Name() string { return StopLoopGuardName }

func (h *StopLoopGuard) Description() string {
	return "Holds the turn open until the status box is produced"
}

func (h *StopLoopGuard) AppliesTo() policy.Selector {
	return policy.Selector{Kinds: []hook.Kind{hook.TurnEnd}}
}

func (h *StopLoopGuard) Check(ctx context.Context, env *hook.Envelope) (policy.Outcome, error) {
	if env.Continuation() {
		return policy.Allow(), nil
	}

	entries, err := h.transcripts.Tail(env.TranscriptRef(), h.window)
	if tgErrors.IsCategory(err, tgErrors.ErrNotFound) {
		return policy.Allow(), nil
	}
	if err != nil {
		return policy.Allow(), err
	}

	// the turn starts at the last message the user typed
	turnStart := -1
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == transcript.RoleUser && !entries[i].ToolResult {
			turnStart = i
			break
		}
	}
	if turnStart < 0 || !invokesCommand(entries[turnStart].Text, h.command) {
		return policy.Allow(), nil
	}

	var reply strings.Builder
	for _, e := range entries[turnStart+1:] {
		if e.Role == transcript.RoleAssistant {
			reply.WriteString(e.Text)
			reply.WriteByte('\n')
		}
	}
	if containsAll(reply.String(), h.markers) {
		return policy.Allow(), nil
	}

	return policy.Block(fmt.Sprintf(
		"%s was run but the reply does not contain the status box. Reproduce the status output verbatim, including its border lines (%s), then stop.",
		h.command, strings.Join(h.markers, " "),
	), ""), nil
}
