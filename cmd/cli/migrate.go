package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/acortador/cmd"
	"github.com/axellelanca/acortador/internal/repository"
)

// MigrateCmd represents the 'migrate' command.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Executes database migrations to create or update tables.",
	Long: `This command connects to the configured SQLite database and runs GORM
automatic migrations for the 'url_mappings' and 'rate_limit_records' tables.`,
	RunE: func(c *cobra.Command, args []string) error {
		db, err := repository.Open(cmd.Cfg.Database.Name)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer repository.Close(db)

		if err := repository.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		fmt.Fprintln(c.OutOrStdout(), "Database migrations executed successfully.")
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(MigrateCmd)
}
