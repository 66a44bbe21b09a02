package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"itassist/internal/agent"
	"itassist/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chat, MCP and metrics HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := setup(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	reg := app.NewRegistry()

	deps, startupErr := app.Bootstrap(ctx, cfg, app.BootstrapOptions{})
	if startupErr != nil {
		slog.ErrorContext(ctx, "startup failed, serving health only", "error", startupErr)
	}

	var engine agent.Engine
	if startupErr == nil {
		r, err := app.NewEngine(ctx, cfg)
		if err != nil {
			startupErr = err
			slog.ErrorContext(ctx, "reasoning engine unavailable", "error", err)
		} else {
			defer r.Close()
			engine = r
		}
	}

	producer, err := app.NewPublisher(ctx, cfg)
	if err != nil {
		slog.WarnContext(ctx, "ticket events disabled", "error", err)
	}

	var services *app.Services
	if startupErr == nil {
		services, startupErr = app.Wire(cfg, deps, engine, producer, reg)
	}
	if services == nil && producer != nil {
		producer.Stop()
	}

	a := app.New(cfg, deps, services, startupErr, reg)
	defer a.Close()

	return a.Run(ctx)
}
