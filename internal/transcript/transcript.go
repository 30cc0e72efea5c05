// Package transcript reads the tail of a conversation transcript stored as JSONL.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const maxLineSize = 1024 * 1024

// Entry is one user or assistant message, flattened to its visible text.
type Entry struct {
	Role string
	Text string
	// ToolResult marks user entries that only carry tool output back to the agent.
	ToolResult bool
}

// Reader returns the last n message entries of the transcript at ref, oldest first.
type Reader interface {
	Tail(ref string, n int) ([]Entry, error)
}

type rawLine struct {
	Type    string `json:"type"`
	Message *struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"message,omitempty"`
}

// FileReader reads transcripts from the local filesystem.
type FileReader struct{}

func NewFileReader() *FileReader {
	return &FileReader{}
}

func (r *FileReader) Tail(ref string, n int) ([]Entry, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, tgErrors.NotFound("transcript reference is empty")
	}

	f, err := os.Open(ref)
	if errors.Is(err, os.ErrNotExist) {
		return nil, tgErrors.NotFound(fmt.Sprintf("transcript %s", ref))
	}
	if err != nil {
		return nil, tgErrors.WrapWithCategory(err, "open transcript", tgErrors.ErrCollaborator)
	}
	defer f.Close()

	return Parse(f, n)
}

// Parse scans a JSONL stream and keeps the last n message entries. Malformed lines,
// non-message lines (summaries, system records) and lines over maxLineSize are skipped.
func Parse(r io.Reader, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	ring := make([]Entry, 0, n)
	reader := bufio.NewReaderSize(r, 64*1024)

	lineNum := 0
	for {
		line, oversized, err := readLine(reader, maxLineSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ring, tgErrors.WrapWithCategory(err, "read transcript", tgErrors.ErrCollaborator)
		}
		lineNum++
		if oversized {
			slog.Debug("Skipping oversized transcript line", "line", lineNum)
			continue
		}
		if len(line) == 0 {
			continue
		}

		entry, ok := parseLine(line)
		if !ok {
			slog.Debug("Skipping transcript line", "line", lineNum)
			continue
		}

		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, entry)
	}
	return ring, nil
}

// readLine returns the next line without its terminator. A line longer than limit is
// consumed to its end and reported as oversized, without its content.
func readLine(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var line []byte
	oversized := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, false, err
		}
		if !oversized {
			if len(line)+len(chunk) > limit {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			return line, oversized, nil
		}
	}
}

func parseLine(line []byte) (Entry, bool) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{}, false
	}

	role := raw.Type
	if raw.Message != nil && raw.Message.Role != "" {
		role = raw.Message.Role
	}
	if role != RoleUser && role != RoleAssistant {
		return Entry{}, false
	}
	if raw.Message == nil {
		return Entry{Role: role}, true
	}

	text, toolOnly := flatten(raw.Message.Content)
	return Entry{Role: role, Text: text, ToolResult: role == RoleUser && toolOnly}, true
}

// flatten joins the text blocks of a message. toolOnly is true when the content is an
// array made up solely of tool_result blocks.
func flatten(content any) (text string, toolOnly bool) {
	switch c := content.(type) {
	case string:
		return c, false
	case []any:
		var parts []string
		toolOnly = len(c) > 0
		for _, item := range c {
			block, ok := item.(map[string]any)
			if !ok {
				toolOnly = false
				continue
			}
			blockType, _ := block["type"].(string)
			switch blockType {
			case "text":
				toolOnly = false
				if s, ok := block["text"].(string); ok {
					parts = append(parts, s)
				}
			case "tool_result":
				if s, _ := flatten(block["content"]); s != "" {
					parts = append(parts, s)
				}
			default:
				toolOnly = false
			}
		}
		return strings.Join(parts, "\n"), toolOnly
	}
	return "", false
}
