package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/policy"
)

const MistakePatternsName = "mistake-patterns"

type mistakeSignature struct {
	id      string
	pattern *regexp.Regexp
	hint    string
}

var mistakeSignatures = []mistakeSignature{
	{
		id:      "string-not-found",
		pattern: regexp.MustCompile(`(?i)string to replace not found|old_string .*not found|no match(es)? found for`),
		hint:    "Re-read the file and copy the text to replace exactly, whitespace included, before editing again.",
	},
	{
		id:      "file-not-read",
		pattern: regexp.MustCompile(`(?i)file has not been read yet|must read .* before|read it first`),
		hint:    "Read a file before editing or overwriting it.",
	},
	{
		id:      "command-not-found",
		pattern: regexp.MustCompile(`(?i)command not found|executable file not found|is not recognized as an internal or external command`),
		hint:    "Check the tool is installed and on PATH (command -v <tool>) instead of retrying the same invocation.",
	},
	{
		id:      "permission-denied",
		pattern: regexp.MustCompile(`(?i)permission denied|operation not permitted|\bEACCES\b`),
		hint:    "Check ownership and mode of the target; do not retry the same write blindly.",
	},
	{
		id:      "no-such-file",
		pattern: regexp.MustCompile(`(?i)no such file or directory|\bENOENT\b`),
		hint:    "Verify the path exists (list the directory or glob for it) before using it.",
	},
}

type mistakeState struct {
	Counts map[string]int `json:"counts"`
}

// MistakePatterns counts recurring failure signatures in action results and nudges the
// agent once a signature repeats.
type MistakePatterns struct {
	store     StateStore
	threshold int
}

func NewMistakePatterns(store StateStore, threshold int) *MistakePatterns {
	return &MistakePatterns{store: store, threshold: threshold}
}

func (h *MistakePatterns) Name() string { return MistakePatternsName }

func (h *MistakePatterns) Description() string {
	return "Warns when the same failure signature keeps recurring"
}

func (h *MistakePatterns) AppliesTo() policy.Selector {
	return policy.Selector{Kinds: []hook.Kind{hook.PostAction}}
}

func (h *MistakePatterns) Check(ctx context.Context, env *hook.Envelope) (policy.Outcome, error) {
	text := env.ResultText()
	if text == "" {
		return policy.Allow(), nil
	}

	var matched []mistakeSignature
	for _, sig := range mistakeSignatures {
		if sig.pattern.MatchString(text) {
			matched = append(matched, sig)
		}
	}
	if len(matched) == 0 {
		return policy.Allow(), nil
	}

	st := loadState[mistakeState](ctx, h.store, env.SessionID(), h.Name())
	if st.Counts == nil {
		st.Counts = make(map[string]int)
	}

	var warnings []string
	for _, sig := range matched {
		st.Counts[sig.id]++
		if st.Counts[sig.id] >= h.threshold {
			warnings = append(warnings, fmt.Sprintf("Repeated %s after %s (%d times): %s", sig.id, env.ActionName(), st.Counts[sig.id], sig.hint))
			st.Counts[sig.id] = 0
		}
	}

	saveState(ctx, h.store, env.SessionID(), h.Name(), st)
	if len(warnings) == 0 {
		return policy.Allow(), nil
	}
	return policy.Warn(strings.Join(warnings, " ")), nil
}
