package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"forest/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the forest server and read tool calls from stdin",
	Long: `serve builds the full component graph (C1-C15) and drives it from the
stdio transport (C16): one JSON object per line on stdin is dispatched as a
tool call, and one JSON object per line is written back to stdout.

serve runs until stdin is closed or it receives SIGINT/SIGTERM, then drains
the background supervisor within its configured shutdown grace period.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("starting forestd", zap.String("data_dir", cfg.DataDir))

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	defer srv.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("forestd ready", zap.Strings("tools", srv.Names()))

	return runStdioTransport(ctx, srv, cmd.InOrStdin(), cmd.OutOrStdout())
}
