package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"itassist/internal/app"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one conversation turn and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			deps, err := app.Bootstrap(ctx, cfg, app.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer deps.Close()

			engine, err := app.NewEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			services, err := app.Wire(cfg, deps, engine, nil, nil)
			if err != nil {
				return err
			}
			defer services.Close()

			res := services.Agent.Run(ctx, joinArgs(args), nil)
			if res.Err != nil {
				slog.WarnContext(ctx, "conversation failed", "outcome", res.Outcome, "error", res.Err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			if len(res.ToolsUsed) > 0 {
				fmt.Fprintf(out, "\ntools: %s\n", strings.Join(res.ToolsUsed, ", "))
			}
			return nil
		},
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
