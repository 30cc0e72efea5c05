package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/policy"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the decision audit log",
	Long:  `Show blocked, warned and context-injecting decisions recorded by dispatch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := outputFormatter(cmd)
		if err != nil {
			return err
		}

		filter, err := auditFilterFromFlags(cmd, time.Now())
		if err != nil {
			return err
		}

		audit, err := policy.NewFileAuditLogger(cfg.AuditPath(), true, nil)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		entries, err := audit.Query(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to read audit log: %w", err)
		}

		output, err := f.FormatAudit(entries)
		if err != nil {
			return fmt.Errorf("failed to format audit entries: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

func auditFilterFromFlags(cmd *cobra.Command, now time.Time) (*policy.AuditFilter, error) {
	filter := &policy.AuditFilter{}
	filter.SessionID, _ = cmd.Flags().GetString("session")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	if verdict, _ := cmd.Flags().GetString("verdict"); verdict != "" {
		switch v := policy.Verdict(strings.ToLower(verdict)); v {
		case policy.VerdictBlock, policy.VerdictWarn, policy.VerdictInject:
			filter.Verdict = string(v)
		default:
			return nil, fmt.Errorf("invalid verdict: %s (supported: block, warn, inject)", verdict)
		}
	}

	if kindFlag, _ := cmd.Flags().GetString("kind"); kindFlag != "" {
		kind, ok := hook.ParseKind(kindFlag)
		if !ok {
			return nil, fmt.Errorf("unknown event kind: %s", kindFlag)
		}
		filter.Kind = string(kind)
	}

	if since, _ := cmd.Flags().GetString("since"); since != "" {
		t, err := parseSince(since, now)
		if err != nil {
			return nil, err
		}
		filter.Since = t
	}
	return filter, nil
}

// parseSince accepts a lookback duration ("2h") or an RFC 3339 timestamp.
func parseSince(value string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want a duration or RFC 3339 time", value)
	}
	return t, nil
}

func init() {
	auditCmd.Flags().String("session", "", "only entries for this session")
	auditCmd.Flags().String("verdict", "", "only entries with this verdict (block, warn, inject)")
	auditCmd.Flags().String("kind", "", "only entries for this event kind")
	auditCmd.Flags().String("since", "", "only entries newer than a duration ago or an RFC 3339 time")
	auditCmd.Flags().Int("limit", 0, "keep only the most recent N entries")
	auditCmd.Flags().StringP("output", "o", "table", "output format (table, json, yaml)")
	rootCmd.AddCommand(auditCmd)
}
