package formatter

import (
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/store"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers(headers...)
}

func (f *TableFormatter) FormatHandlers(handlers []HandlerInfo) (string, error) {
	if len(handlers) == 0 {
		return "No handlers registered", nil
	}

	t := f.newTable("#", "Kind", "Name", "Actions", "Description")
	for _, h := range handlers {
		actions := strings.Join(h.Actions, ", ")
		if actions == "" {
			actions = "*"
		}
		t.Row(
			strconv.Itoa(h.Order),
			h.Kind,
			h.Name,
			truncateString(actions, 30),
			truncateString(h.Description, 60),
		)
	}
	return t.String(), nil
}

func (f *TableFormatter) FormatAudit(entries []*policy.AuditEntry) (string, error) {
	if len(entries) == 0 {
		return "No audit entries found", nil
	}

	t := f.newTable("Time", "Session", "Kind", "Action", "Verdict", "Detail")
	for _, e := range entries {
		detail := e.Reason
		if e.BlockedBy != "" {
			detail = e.BlockedBy + ": " + detail
		}
		if detail == "" {
			detail = strings.Join(e.Warnings, " | ")
		}
		t.Row(
			e.Timestamp.Local().Format(time.DateTime),
			truncateString(e.SessionID, 14),
			e.Kind,
			e.Action,
			e.Verdict,
			truncateString(detail, 70),
		)
	}
	return t.String(), nil
}

func (f *TableFormatter) FormatRecords(records []store.Record) (string, error) {
	if len(records) == 0 {
		return "No state records found", nil
	}

	t := f.newTable("Handler", "Updated", "Data")
	for _, r := range records {
		t.Row(
			r.Handler,
			r.UpdatedAt.Local().Format(time.DateTime),
			truncateString(string(r.Data), 80),
		)
	}
	return t.String(), nil
}

func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
