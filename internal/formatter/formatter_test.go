package formatter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/store"
)

func sampleHandlers() []HandlerInfo {
	return []HandlerInfo{
		{Order: 1, Kind: "PreAction", Name: "worktree-isolation", Actions: []string{"Edit", "Write"}, Description: "Blocks edits to the main tree"},
		{Order: 1, Kind: "TurnEnd", Name: "stop-loop-guard"},
	}
}

func sampleAudit() []*policy.AuditEntry {
	return []*policy.AuditEntry{
		{ID: "01J0", Timestamp: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), SessionID: "sess-1", Kind: "PreAction", Action: "Edit", Verdict: "block", Reason: "protected branch", BlockedBy: "branch-protection"},
		{ID: "01J1", Timestamp: time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC), SessionID: "sess-1", Kind: "PreAction", Action: "Read", Verdict: "warn", Warnings: []string{"batch these"}},
	}
}

func sampleRecords() []store.Record {
	return []store.Record{
		{SessionID: "sess-1", Handler: "batch-opportunity", UpdatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), Data: json.RawMessage(`{"ops":[],"last_warning":"0001-01-01T00:00:00Z"}`)},
	}
}

func TestFormatterFactory_Create(t *testing.T) {
	factory := NewFormatterFactory()

	tests := []struct {
		name    string
		format  OutputFormat
		wantErr bool
	}{
		{name: "table format", format: OutputFormatTable},
		{name: "json format", format: OutputFormatJSON},
		{name: "yaml format", format: OutputFormatYAML},
		{name: "invalid format", format: OutputFormat("invalid"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter, err := factory.Create(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && formatter == nil {
				t.Error("Create() returned nil formatter for valid format")
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{input: "TABLE", want: OutputFormatTable},
		{input: "json", want: OutputFormatJSON},
		{input: " Yaml ", want: OutputFormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseOutputFormat() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTableFormatter(t *testing.T) {
	f := NewTableFormatter()

	out, err := f.FormatHandlers(sampleHandlers())
	if err != nil {
		t.Fatalf("FormatHandlers() error = %v", err)
	}
	for _, want := range []string{"worktree-isolation", "stop-loop-guard", "Edit, Write", "*"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatHandlers() output missing %q", want)
		}
	}

	out, err = f.FormatAudit(sampleAudit())
	if err != nil {
		t.Fatalf("FormatAudit() error = %v", err)
	}
	if !strings.Contains(out, "branch-protection: protected branch") || !strings.Contains(out, "batch these") {
		t.Errorf("FormatAudit() output missing details:\n%s", out)
	}

	out, err = f.FormatRecords(sampleRecords())
	if err != nil {
		t.Fatalf("FormatRecords() error = %v", err)
	}
	if !strings.Contains(out, "batch-opportunity") {
		t.Errorf("FormatRecords() output missing handler")
	}
}

func TestTableFormatter_Empty(t *testing.T) {
	f := NewTableFormatter()

	if out, _ := f.FormatHandlers(nil); out != "No handlers registered" {
		t.Errorf("FormatHandlers() = %q", out)
	}
	if out, _ := f.FormatAudit(nil); out != "No audit entries found" {
		t.Errorf("FormatAudit() = %q", out)
	}
	if out, _ := f.FormatRecords(nil); out != "No state records found" {
		t.Errorf("FormatRecords() = %q", out)
	}
}

func TestJSONFormatter_RecordsDecodeData(t *testing.T) {
	out, err := NewJSONFormatter().FormatRecords(sampleRecords())
	if err != nil {
		t.Fatalf("FormatRecords() error = %v", err)
	}

	var views []map[string]any
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	data, ok := views[0]["data"].(map[string]any)
	if !ok {
		t.Fatalf("data not decoded: %#v", views[0]["data"])
	}
	if _, ok := data["ops"]; !ok {
		t.Errorf("data missing ops: %#v", data)
	}
}

func TestYAMLFormatter(t *testing.T) {
	f := NewYAMLFormatter()

	out, err := f.FormatAudit(sampleAudit())
	if err != nil {
		t.Fatalf("FormatAudit() error = %v", err)
	}
	if !strings.Contains(out, "verdict: block") || !strings.Contains(out, "blocked_by: branch-protection") {
		t.Errorf("FormatAudit() yaml missing fields:\n%s", out)
	}

	out, err = f.FormatHandlers(sampleHandlers())
	if err != nil {
		t.Fatalf("FormatHandlers() error = %v", err)
	}
	if !strings.Contains(out, "name: stop-loop-guard") {
		t.Errorf("FormatHandlers() yaml missing name:\n%s", out)
	}
}
