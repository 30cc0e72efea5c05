package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/store"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatHandlers(handlers []HandlerInfo) (string, error) {
	return marshalYAML(handlers)
}

func (f *YAMLFormatter) FormatAudit(entries []*policy.AuditEntry) (string, error) {
	return marshalYAML(entries)
}

func (f *YAMLFormatter) FormatRecords(records []store.Record) (string, error) {
	return marshalYAML(recordViews(records))
}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
