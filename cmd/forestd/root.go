package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"forest/internal/config"
	"forest/internal/logging"
)

var (
	verbose    bool
	dataDir    string
	configPath string

	// logger is the operator-facing console logger. It is distinct from
	// internal/logging, which writes per-category diagnostic files under
	// <data-dir>/logs/ and serves a different audience.
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "forestd",
	Short: "forestd - hierarchical-task-analysis learning journey server",
	Long: `forestd wires the HTA Store, Strategy Evolver, Background Supervisor,
Intelligence Bridge, and Tool Router into a single process and exposes every
learning-journey tool over stdio for a connected client.

Run "forestd serve" to start the server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("build console logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level console logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override FOREST_DATA_DIR for this invocation")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a forestd YAML config file")

	rootCmd.AddCommand(serveCmd, migrateCmd, resetCmd)
}

// loadConfig builds the effective Config from --config (if given), then
// layers environment variables, then --data-dir, matching the Config
// Loader's documented precedence (file, then env, then explicit override).
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("resolve --data-dir: %w", err)
		}
		cfg.DataDir = abs
	}
	if cfg.DataDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.DataDir = filepath.Join(wd, ".forest")
	}
	return cfg, nil
}
