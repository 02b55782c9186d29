package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"forest/internal/kvstore"
	"forest/internal/project"
)

var (
	resetProjectID string
	resetConfirm   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete one project, or every project, from the configured data dir",
	Long: `reset is the operator-console mirror of factory_reset_forest: it requires
--yes as an explicit confirmation flag (the stdio tool's confirm_deletion and
confirmation_message gate serves the same purpose for API callers). With no
--project-id it deletes every project.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetProjectID, "project-id", "", "project to delete (default: all projects)")
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm the deletion")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirm {
		return fmt.Errorf("refusing to reset without --yes")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	kv, err := kvstore.Open(cfg.DataDir)
	if err != nil {
		return err
	}

	svc := project.New(kv)
	if err := svc.FactoryReset(cmd.Context(), resetProjectID); err != nil {
		return err
	}

	if resetProjectID == "" {
		logger.Info("deleted all projects", zap.String("data_dir", cfg.DataDir))
	} else {
		logger.Info("deleted project", zap.String("project_id", resetProjectID))
	}
	return nil
}
