package formatter

import (
	"encoding/json"

	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/store"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatHandlers(handlers []HandlerInfo) (string, error) {
	return marshalJSON(handlers)
}

func (f *JSONFormatter) FormatAudit(entries []*policy.AuditEntry) (string, error) {
	return marshalJSON(entries)
}

func (f *JSONFormatter) FormatRecords(records []store.Record) (string, error) {
	return marshalJSON(recordViews(records))
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
