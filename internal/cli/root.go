// Package cli wires the itassist command line: the HTTP server plus
// maintenance commands for the semantic index and one-shot questions.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"itassist/internal/config"
	"itassist/internal/logger"
)

// NewRootCmd builds the command tree. Running the root command without a
// subcommand starts the server.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "itassist",
		Short:             "Agentic IT support assistant",
		Long:              "itassist answers laptop troubleshooting questions using a semantic knowledge base and support tools.",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE:              runServe,
	}

	root.AddCommand(newServeCmd(), newIndexCmd(), newAskCmd())
	return root
}

// setup loads configuration and installs the default logger writing to w.
func setup(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.New(cfg.LogLevel, cfg.LogFormat, w))
	return cfg, nil
}
