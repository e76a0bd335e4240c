package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/scriptcheck/internal/artifact"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "History database management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		_, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", cfg.History.DBPath)
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all recorded runs and their artifacts (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to reset without --yes")
		}

		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		d, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := d.Reset(); err != nil {
			return err
		}

		store := artifact.NewStore(cfg.History.ArtifactsDir)
		ids, err := store.List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := store.Remove(id); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database reset; removed artifacts for %d run(s)\n", len(ids))
		return nil
	},
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "Confirm the reset")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
