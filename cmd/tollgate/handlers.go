package main

import (
	"fmt"

	"github.com/harunnryd/tollgate/cmd/tollgate/runtime"
	"github.com/harunnryd/tollgate/internal/formatter"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/policy"

	"github.com/spf13/cobra"
)

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List registered handlers",
	Long:  `List the handlers registered for each event kind, in invocation order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := outputFormatter(cmd)
		if err != nil {
			return err
		}

		kinds := hook.Kinds()
		if kindFlag, _ := cmd.Flags().GetString("kind"); kindFlag != "" {
			kind, ok := hook.ParseKind(kindFlag)
			if !ok {
				return fmt.Errorf("unknown event kind: %s", kindFlag)
			}
			kinds = []hook.Kind{kind}
		}

		components, err := runtime.NewRuntimeBuilder().WithConfig(cfg).Build()
		if err != nil {
			return err
		}

		output, err := f.FormatHandlers(handlerInfos(components.Registry, kinds))
		if err != nil {
			return fmt.Errorf("failed to format handlers: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

func handlerInfos(registry *policy.Registry, kinds []hook.Kind) []formatter.HandlerInfo {
	var infos []formatter.HandlerInfo
	for _, kind := range kinds {
		for i, h := range registry.Handlers(kind) {
			infos = append(infos, formatter.HandlerInfo{
				Order:       i + 1,
				Kind:        string(kind),
				Name:        h.Name(),
				Actions:     h.AppliesTo().Actions,
				Description: policy.Describe(h),
			})
		}
	}
	return infos
}

func outputFormatter(cmd *cobra.Command) (formatter.Formatter, error) {
	outputFlag, _ := cmd.Flags().GetString("output")
	if outputFlag == "" {
		outputFlag = string(formatter.OutputFormatTable)
	}
	format, err := formatter.ParseOutputFormat(outputFlag)
	if err != nil {
		return nil, err
	}
	return formatter.NewFormatterFactory().Create(format)
}

func init() {
	handlersCmd.Flags().String("kind", "", "only list handlers for this event kind")
	handlersCmd.Flags().StringP("output", "o", "table", "output format (table, json, yaml)")
	rootCmd.AddCommand(handlersCmd)
}
