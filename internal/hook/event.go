package hook

import (
	"encoding/json"
	"maps"
	"strings"
)

// Kind is the lifecycle point that produced an event.
type Kind string

const (
	PreAction       Kind = "PreAction"
	PostAction      Kind = "PostAction"
	PromptSubmitted Kind = "PromptSubmitted"
	TurnEnd         Kind = "TurnEnd"
)

// Kinds lists every kind in lifecycle order.
func Kinds() []Kind {
	return []Kind{PreAction, PostAction, PromptSubmitted, TurnEnd}
}

var kindAliases = map[string]Kind{
	"preaction":        PreAction,
	"pretooluse":       PreAction,
	"postaction":       PostAction,
	"posttooluse":      PostAction,
	"promptsubmitted":  PromptSubmitted,
	"userpromptsubmit": PromptSubmitted,
	"turnend":          TurnEnd,
	"stop":             TurnEnd,
	"subagentstop":     TurnEnd,
}

// ParseKind accepts canonical names, host event names (PreToolUse, Stop, ...) and
// kebab/snake variants (pre-tool-use, turn_end).
func ParseKind(name string) (Kind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	kind, ok := kindAliases[normalized]
	return kind, ok
}

// Fields carries the values an Envelope is built from.
type Fields struct {
	ActionName       string
	Input            map[string]any
	Result           any
	Prompt           string
	SessionID        string
	WorkingDirectory string
	TranscriptRef    string
	// Continuation is set when the host re-fires a turn-end event after a previous block.
	Continuation bool
}

// Envelope is one normalized lifecycle notification. It is immutable: accessors return
// copies, so handlers can only read it.
type Envelope struct {
	kind   Kind
	fields Fields
}

func New(kind Kind, f Fields) *Envelope {
	f.Input = maps.Clone(f.Input)
	return &Envelope{kind: kind, fields: f}
}

func (e *Envelope) Kind() Kind               { return e.kind }
func (e *Envelope) ActionName() string       { return e.fields.ActionName }
func (e *Envelope) Prompt() string           { return e.fields.Prompt }
func (e *Envelope) SessionID() string        { return e.fields.SessionID }
func (e *Envelope) WorkingDirectory() string { return e.fields.WorkingDirectory }
func (e *Envelope) TranscriptRef() string    { return e.fields.TranscriptRef }
func (e *Envelope) Continuation() bool       { return e.fields.Continuation }

// Input returns a shallow copy of the action arguments.
func (e *Envelope) Input() map[string]any {
	return maps.Clone(e.fields.Input)
}

// InputString returns the first non-empty string argument among keys.
func (e *Envelope) InputString(keys ...string) string {
	for _, key := range keys {
		if v, ok := e.fields.Input[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ResultText flattens the action result into text for pattern matching.
func (e *Envelope) ResultText() string {
	return flattenText(e.fields.Result)
}

func flattenText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := flattenText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		for _, key := range []string{"error", "stderr", "output", "stdout", "content", "text"} {
			if s := flattenText(val[key]); s != "" {
				return s
			}
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
