package formatter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/store"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// HandlerInfo is one registry entry as shown by `tollgate handlers`.
type HandlerInfo struct {
	Order       int      `json:"order" yaml:"order"`
	Kind        string   `json:"kind" yaml:"kind"`
	Name        string   `json:"name" yaml:"name"`
	Actions     []string `json:"actions,omitempty" yaml:"actions,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// RecordView is a state record with its payload decoded for display.
type RecordView struct {
	SessionID string    `json:"session_id" yaml:"session_id"`
	Handler   string    `json:"handler" yaml:"handler"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	Data      any       `json:"data" yaml:"data"`
}

type Formatter interface {
	FormatHandlers([]HandlerInfo) (string, error)
	FormatAudit([]*policy.AuditEntry) (string, error)
	FormatRecords([]store.Record) (string, error)
}

type FormatterFactory struct{}

func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

func (f *FormatterFactory) Create(format OutputFormat) (Formatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}

func recordViews(records []store.Record) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, r := range records {
		var data any
		if len(r.Data) > 0 {
			if err := json.Unmarshal(r.Data, &data); err != nil {
				data = string(r.Data)
			}
		}
		views = append(views, RecordView{SessionID: r.SessionID, Handler: r.Handler, UpdatedAt: r.UpdatedAt, Data: data})
	}
	return views
}
