package hook

import (
	"bytes"
	"strings"
	"testing"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"PreToolUse", PreAction, true},
		{"pre-tool-use", PreAction, true},
		{"PostToolUse", PostAction, true},
		{"UserPromptSubmit", PromptSubmitted, true},
		{"Stop", TurnEnd, true},
		{"SubagentStop", TurnEnd, true},
		{"turn_end", TurnEnd, true},
		{"SessionStart", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseKind(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_PreToolUse(t *testing.T) {
	input := `{"hook_event_name":"PreToolUse","tool_name":"Edit","tool_input":{"file_path":"/repo/a.go"},"session_id":"s1","cwd":"/repo","transcript_path":"/tmp/t.jsonl"}`

	env, err := Decode(strings.NewReader(input), "")
	require.NoError(t, err)

	assert.Equal(t, PreAction, env.Kind())
	assert.Equal(t, "Edit", env.ActionName())
	assert.Equal(t, "/repo/a.go", env.InputString("file_path"))
	assert.Equal(t, "s1", env.SessionID())
	assert.Equal(t, "/repo", env.WorkingDirectory())
	assert.Equal(t, "/tmp/t.jsonl", env.TranscriptRef())
	assert.False(t, env.Continuation())
}

func TestDecode_OverrideKindAndResult(t *testing.T) {
	input := `{"tool_name":"Bash","tool_input":{"command":"ls"},"tool_result":{"stderr":"bash: foo: command not found"}}`

	env, err := Decode(strings.NewReader(input), PostAction)
	require.NoError(t, err)
	assert.Equal(t, PostAction, env.Kind())
	assert.Equal(t, "bash: foo: command not found", env.ResultText())
}

func TestDecode_StopHookActive(t *testing.T) {
	env, err := Decode(strings.NewReader(`{"hook_event_name":"Stop","stop_hook_active":true}`), "")
	require.NoError(t, err)
	assert.Equal(t, TurnEnd, env.Kind())
	assert.True(t, env.Continuation())
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(strings.NewReader(`{not json`), "")
	assert.ErrorIs(t, err, tgErrors.ErrMalformedInput)

	_, err = Decode(strings.NewReader(`{"hook_event_name":"Nope"}`), "")
	assert.ErrorIs(t, err, tgErrors.ErrMalformedInput)
}

func TestEnvelope_InputIsCopied(t *testing.T) {
	input := map[string]any{"file_path": "/a"}
	env := New(PreAction, Fields{Input: input})

	input["file_path"] = "/b"
	got := env.Input()
	got["file_path"] = "/c"

	assert.Equal(t, "/a", env.InputString("file_path"))
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Response{}))
	assert.Equal(t, "{}\n", buf.String())

	buf.Reset()
	require.NoError(t, Encode(&buf, Response{Decision: DecisionBlock, Reason: "no"}))
	assert.JSONEq(t, `{"decision":"block","reason":"no"}`, buf.String())
}

func TestResultText_Variants(t *testing.T) {
	assert.Equal(t, "plain", New(PostAction, Fields{Result: "plain"}).ResultText())
	assert.Equal(t, "a\nb", New(PostAction, Fields{Result: []any{"a", map[string]any{"text": "b"}}}).ResultText())
	assert.Equal(t, `{"ok":true}`, New(PostAction, Fields{Result: map[string]any{"ok": true}}).ResultText())
	assert.Equal(t, "", New(PostAction, Fields{}).ResultText())
}
