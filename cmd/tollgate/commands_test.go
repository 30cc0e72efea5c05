package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/tollgate/internal/handlers"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/policy"
	"github.com/harunnryd/tollgate/internal/store"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestHandlerInfos_RegistrationOrder(t *testing.T) {
	c := loadTestConfig(t)
	registry, err := handlers.InitializeRegistry(c, handlers.Deps{})
	require.NoError(t, err)

	infos := handlerInfos(registry, []hook.Kind{hook.PreAction, hook.PromptSubmitted})

	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{
		handlers.WorktreeIsolationName,
		handlers.BranchProtectionName,
		handlers.CommitMessageName,
		handlers.BatchOpportunityName,
		handlers.SessionContextName,
		handlers.StatusReminderName,
	}, names)
	assert.Equal(t, 1, infos[0].Order)
	assert.Equal(t, 4, infos[3].Order)
	assert.Equal(t, 1, infos[4].Order, "order restarts per kind")
	assert.NotEmpty(t, infos[0].Description)
}

func TestHandlersCmd_JSON(t *testing.T) {
	useConfig(t, loadTestConfig(t))

	var out bytes.Buffer
	cmd := newTestCommand(&out, func(cmd *cobra.Command) {
		cmd.Flags().String("kind", "", "")
		cmd.Flags().StringP("output", "o", "", "")
		_ = cmd.Flags().Set("kind", "stop")
		_ = cmd.Flags().Set("output", "json")
	})

	require.NoError(t, handlersCmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), handlers.StopLoopGuardName)
	assert.NotContains(t, out.String(), handlers.CommitMessageName)
}

func TestHandlersCmd_RejectsUnknownKind(t *testing.T) {
	useConfig(t, loadTestConfig(t))

	var out bytes.Buffer
	cmd := newTestCommand(&out, func(cmd *cobra.Command) {
		cmd.Flags().String("kind", "", "")
		_ = cmd.Flags().Set("kind", "Whenever")
	})
	assert.Error(t, handlersCmd.RunE(cmd, nil))
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-2*time.Hour), got)

	got, err = parseSince("2026-02-28T10:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC), got)

	_, err = parseSince("yesterday", now)
	assert.Error(t, err)
}

func auditFlags(cmd *cobra.Command) {
	cmd.Flags().String("session", "", "")
	cmd.Flags().String("verdict", "", "")
	cmd.Flags().String("kind", "", "")
	cmd.Flags().String("since", "", "")
	cmd.Flags().Int("limit", 0, "")
	cmd.Flags().StringP("output", "o", "", "")
}

func TestAuditFilterFromFlags(t *testing.T) {
	var out bytes.Buffer
	cmd := newTestCommand(&out, func(cmd *cobra.Command) {
		auditFlags(cmd)
		_ = cmd.Flags().Set("session", "s1")
		_ = cmd.Flags().Set("verdict", "BLOCK")
		_ = cmd.Flags().Set("kind", "PreToolUse")
		_ = cmd.Flags().Set("limit", "5")
	})

	filter, err := auditFilterFromFlags(cmd, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "s1", filter.SessionID)
	assert.Equal(t, "block", filter.Verdict)
	assert.Equal(t, string(hook.PreAction), filter.Kind)
	assert.Equal(t, 5, filter.Limit)

	_ = cmd.Flags().Set("verdict", "allow")
	_, err = auditFilterFromFlags(cmd, time.Now())
	assert.Error(t, err, "allow decisions are never audited")
}

func TestAuditCmd_ListsEntries(t *testing.T) {
	c := loadTestConfig(t)
	useConfig(t, c)

	audit, err := policy.NewFileAuditLogger(c.AuditPath(), true, nil)
	require.NoError(t, err)
	require.NoError(t, audit.Log(context.Background(), &policy.AuditEntry{
		SessionID: "s1", Kind: string(hook.PreAction), Action: "Bash",
		Verdict: string(policy.VerdictBlock), Reason: "nope", BlockedBy: handlers.CommitMessageName,
	}))
	require.NoError(t, audit.Log(context.Background(), &policy.AuditEntry{
		SessionID: "s2", Kind: string(hook.PreAction), Action: "Read",
		Verdict: string(policy.VerdictWarn), Warnings: []string{"batch"},
	}))

	var out bytes.Buffer
	cmd := newTestCommand(&out, func(cmd *cobra.Command) {
		auditFlags(cmd)
		_ = cmd.Flags().Set("session", "s1")
		_ = cmd.Flags().Set("output", "yaml")
	})
	require.NoError(t, auditCmd.RunE(cmd, nil))

	var entries []policy.AuditEntry
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, handlers.CommitMessageName, entries[0].BlockedBy)
}

func TestStateShowCmd(t *testing.T) {
	c := loadTestConfig(t)
	useConfig(t, c)

	st, err := store.New(c.Store.Dir)
	require.NoError(t, err)
	require.NoError(t, st.Save("s1", handlers.MistakePatternsName, map[string]int{"no-such-file": 1}))

	var out bytes.Buffer
	cmd := newTestCommand(&out, func(cmd *cobra.Command) {
		cmd.Flags().StringP("output", "o", "", "")
		_ = cmd.Flags().Set("output", "json")
	})
	require.NoError(t, stateShowCmd.RunE(cmd, []string{"s1"}))
	assert.Contains(t, out.String(), handlers.MistakePatternsName)
	assert.Contains(t, out.String(), "no-such-file")
}

func TestStateSweepCmd(t *testing.T) {
	c := loadTestConfig(t)
	useConfig(t, c)

	st, err := store.New(c.Store.Dir)
	require.NoError(t, err)
	require.NoError(t, st.Save("old", handlers.BatchOpportunityName, map[string]any{}))
	require.NoError(t, st.Save("new", handlers.BatchOpportunityName, map[string]any{}))
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(st.RecordPath("old", handlers.BatchOpportunityName), stale, stale))

	var out bytes.Buffer
	cmd := newTestCommand(&out, func(cmd *cobra.Command) {
		cmd.Flags().String("max-age", "", "")
		_ = cmd.Flags().Set("max-age", "1h")
	})
	cmd.SetContext(context.Background())
	require.NoError(t, stateSweepCmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "Removed 1 of 2")

	_, err = os.Stat(st.RecordPath("old", handlers.BatchOpportunityName))
	assert.True(t, os.IsNotExist(err))
}

func TestStateSweepCmd_InvalidMaxAge(t *testing.T) {
	useConfig(t, loadTestConfig(t))

	var out bytes.Buffer
	cmd := newTestCommand(&out, func(cmd *cobra.Command) {
		cmd.Flags().String("max-age", "", "")
		_ = cmd.Flags().Set("max-age", "soon")
	})
	assert.Error(t, stateSweepCmd.RunE(cmd, nil))
}

func TestConfigViewCmd(t *testing.T) {
	c := loadTestConfig(t)
	useConfig(t, c)

	var out bytes.Buffer
	require.NoError(t, configViewCmd.RunE(newTestCommand(&out, nil), nil))

	text := out.String()
	assert.True(t, strings.Contains(text, "store:"), text)
	assert.Contains(t, text, c.Store.Dir)
	assert.Contains(t, text, "allowed_types:")
}

func TestConfigViewCmd_NotLoaded(t *testing.T) {
	useConfig(t, nil)

	var out bytes.Buffer
	assert.Error(t, configViewCmd.RunE(newTestCommand(&out, nil), nil))
}
