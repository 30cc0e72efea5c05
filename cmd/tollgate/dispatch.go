package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/harunnryd/tollgate/cmd/tollgate/runtime"
	"github.com/harunnryd/tollgate/internal/config"
	"github.com/harunnryd/tollgate/internal/handlers"
	"github.com/harunnryd/tollgate/internal/hook"
	"github.com/harunnryd/tollgate/internal/logger"
	"github.com/harunnryd/tollgate/internal/policy"

	"github.com/spf13/cobra"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [kind]",
	Short: "Evaluate one lifecycle event read from stdin",
	Long: `Read one event record from stdin, run every handler registered for its kind and
write the decision to stdout. Warnings go to stderr. The exit status is always 0; any
failure before a decision is reached is reported as {} (allow).`,
	Args: cobra.MaximumNArgs(1),
	// Config errors must not turn into a non-zero exit here.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd)
		if err != nil {
			logger.Setup(config.DefaultLogLevel)
			slog.Error("Failed to load config, allowing", "error", err)
			cfg = nil
			return nil
		}
		cfg = loaded
		logger.Setup(cfg.Log.Level)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		sig := NewSignalHandler(ctx)
		sig.Start()
		defer sig.Stop()

		runDispatch(sig.Context(), cfg, handlers.Deps{}, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		return nil
	},
}

// runDispatch never fails: whatever goes wrong, stdout receives a well-formed response.
func runDispatch(ctx context.Context, cfg *config.Config, deps handlers.Deps, args []string, in io.Reader, out, errOut io.Writer) {
	resp := evaluate(ctx, cfg, deps, args, in, errOut)
	if err := hook.Encode(out, resp); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func evaluate(ctx context.Context, cfg *config.Config, deps handlers.Deps, args []string, in io.Reader, errOut io.Writer) hook.Response {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil || config.Disabled() {
		return hook.Response{}
	}

	var override hook.Kind
	if len(args) > 0 {
		kind, ok := hook.ParseKind(args[0])
		if !ok {
			slog.Warn("Unknown event kind argument, allowing", "kind", args[0])
			return hook.Response{}
		}
		override = kind
	}

	env, err := hook.Decode(in, override)
	if err != nil {
		slog.Warn("Malformed event, allowing", "error", err)
		return hook.Response{}
	}

	ctx = logger.WithTraceID(ctx, logger.NewTraceID())
	ctx = logger.WithSessionID(ctx, env.SessionID())

	components, err := runtime.NewRuntimeBuilder().WithConfig(cfg).WithDeps(deps).Build()
	if err != nil {
		logger.From(ctx).Error("Failed to initialize runtime, allowing", "error", err)
		return hook.Response{}
	}

	decision := components.Dispatcher.Dispatch(ctx, env)
	if err := policy.WriteWarnings(errOut, decision); err != nil {
		logger.From(ctx).Warn("Failed to write warnings", "error", err)
	}
	logger.From(ctx).Debug("Event dispatched",
		"kind", env.Kind(),
		"action", env.ActionName(),
		"verdict", decision.Verdict(),
		"evaluated", decision.Evaluated,
	)
	return policy.Response(decision)
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}
