package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/acortador/cmd"
	"github.com/axellelanca/acortador/internal/repository"
	"github.com/axellelanca/acortador/internal/services"
)

// PurgeCmd deletes rate-limit records older than the configured window.
var PurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Elimina los registros de límite de uso fuera de la ventana",
	RunE: func(c *cobra.Command, args []string) error {
		if cmd.Cfg.RateLimit.Window == 0 {
			fmt.Fprintln(c.OutOrStdout(), "ratelimit.window is 0: records never expire, nothing to purge.")
			return nil
		}

		db, err := cmd.OpenDatabase()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer repository.Close(db)

		limiter := services.NewRateLimitService(repository.NewRateLimitRepository(db), services.NewRateLimitOptions(cmd.Cfg))

		n, err := limiter.Purge(c.Context())
		if err != nil {
			return fmt.Errorf("failed to purge rate limit records: %w", err)
		}

		fmt.Fprintf(c.OutOrStdout(), "%d registro(s) eliminado(s).\n", n)
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(PurgeCmd)
}
