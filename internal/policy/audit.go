package policy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/tollgate/internal/logger"

	"github.com/oklog/ulid/v2"
)

type AuditLogger interface {
	Log(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error)
}

// AuditEntry is one non-allow decision.
type AuditEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"ts" yaml:"ts"`
	TraceID   string    `json:"trace_id,omitempty" yaml:"trace_id,omitempty"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Kind      string    `json:"kind" yaml:"kind"`
	Action    string    `json:"action,omitempty" yaml:"action,omitempty"`
	Verdict   string    `json:"verdict" yaml:"verdict"`
	Reason    string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	BlockedBy string    `json:"blocked_by,omitempty" yaml:"blocked_by,omitempty"`
	Warnings  []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Injected  bool      `json:"injected,omitempty" yaml:"injected,omitempty"`
}

type AuditFilter struct {
	SessionID string
	Verdict   string
	Kind      string
	Since     time.Time
	// Limit keeps only the most recent entries when positive.
	Limit int
}

type FileAuditLogger struct {
	mu             sync.RWMutex
	logPath        string
	enabled        bool
	redactPatterns []*regexp.Regexp
	now            func() time.Time
}

func NewFileAuditLogger(logPath string, enabled bool, redactPatterns []string) (*FileAuditLogger, error) {
	if !enabled {
		return &FileAuditLogger{enabled: false, logPath: logPath}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, err
	}

	al := &FileAuditLogger{
		logPath: logPath,
		enabled: true,
		now:     time.Now,
	}
	for _, pattern := range redactPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("audit redact pattern %q: %w", pattern, err)
		}
		al.redactPatterns = append(al.redactPatterns, re)
	}
	return al, nil
}

func (al *FileAuditLogger) Path() string {
	return al.logPath
}

func (al *FileAuditLogger) Log(ctx context.Context, entry *AuditEntry) error {
	if !al.enabled {
		return nil
	}
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = al.now().UTC()
	}
	if entry.TraceID == "" {
		entry.TraceID = logger.GetTraceID(ctx)
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	entryJSON, err := json.Marshal(al.redact(entry))
	if err != nil {
		return err
	}

	f, err := os.OpenFile(al.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	// O_APPEND keeps single-line writes from concurrent processes whole.
	if _, err := f.Write(append(entryJSON, '\n')); err != nil {
		return err
	}

	slog.Debug("Audit entry logged", "id", entry.ID, "verdict", entry.Verdict)
	return nil
}

func (al *FileAuditLogger) Query(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error) {
	al.mu.RLock()
	defer al.mu.RUnlock()

	file, err := os.Open(al.logPath)
	if os.IsNotExist(err) {
		return []*AuditEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []*AuditEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			slog.Warn("Failed to parse audit entry", "error", err)
			continue
		}
		if filter == nil || matchesFilter(&entry, filter) {
			entries = append(entries, &entry)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if filter != nil && filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[len(entries)-filter.Limit:]
	}
	return entries, nil
}

func (al *FileAuditLogger) redact(entry *AuditEntry) *AuditEntry {
	if len(al.redactPatterns) == 0 {
		return entry
	}
	redacted := *entry
	redacted.Reason = al.redactString(redacted.Reason)
	redacted.Warnings = make([]string, len(entry.Warnings))
	for i, w := range entry.Warnings {
		redacted.Warnings[i] = al.redactString(w)
	}
	return &redacted
}

func (al *FileAuditLogger) redactString(s string) string {
	for _, re := range al.redactPatterns {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func matchesFilter(entry *AuditEntry, filter *AuditFilter) bool {
	if filter.SessionID != "" && entry.SessionID != filter.SessionID {
		return false
	}
	if filter.Verdict != "" && !strings.EqualFold(entry.Verdict, filter.Verdict) {
		return false
	}
	if filter.Kind != "" && !strings.EqualFold(entry.Kind, filter.Kind) {
		return false
	}
	if !filter.Since.IsZero() && entry.Timestamp.Before(filter.Since) {
		return false
	}
	return true
}
