package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
)

// Request is the record the host writes to stdin for each event.
type Request struct {
	HookEventName  string          `json:"hook_event_name"`
	ToolName       string          `json:"tool_name"`
	ToolInput      map[string]any  `json:"tool_input"`
	ToolResponse   json.RawMessage `json:"tool_response"`
	ToolResult     json.RawMessage `json:"tool_result"`
	Prompt         string          `json:"prompt"`
	SessionID      string          `json:"session_id"`
	Cwd            string          `json:"cwd"`
	TranscriptPath string          `json:"transcript_path"`
	StopHookActive bool            `json:"stop_hook_active"`
}

// Response is the record written to stdout. The zero value encodes as {}.
type Response struct {
	Decision          string `json:"decision,omitempty"`
	Reason            string `json:"reason,omitempty"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

const DecisionBlock = "block"

// Decode reads one request record. override, when non-empty, wins over hook_event_name.
func Decode(r io.Reader, override Kind) (*Envelope, error) {
	var req Request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return nil, tgErrors.WrapWithCategory(err, "decode request", tgErrors.ErrMalformedInput)
	}
	return req.Envelope(override)
}

// Envelope converts the wire record into an Envelope.
func (req Request) Envelope(override Kind) (*Envelope, error) {
	kind := override
	if kind == "" {
		parsed, ok := ParseKind(req.HookEventName)
		if !ok {
			return nil, tgErrors.MalformedInput(fmt.Sprintf("unknown event kind %q", req.HookEventName))
		}
		kind = parsed
	}

	raw := req.ToolResponse
	if len(raw) == 0 || string(raw) == "null" {
		raw = req.ToolResult
	}
	var result any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, tgErrors.WrapWithCategory(err, "decode tool result", tgErrors.ErrMalformedInput)
		}
	}

	return New(kind, Fields{
		ActionName:       strings.TrimSpace(req.ToolName),
		Input:            req.ToolInput,
		Result:           result,
		Prompt:           req.Prompt,
		SessionID:        strings.TrimSpace(req.SessionID),
		WorkingDirectory: req.Cwd,
		TranscriptRef:    req.TranscriptPath,
		Continuation:     req.StopHookActive,
	}), nil
}

// Encode writes resp as a single JSON line.
func Encode(w io.Writer, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
