package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/acortador/cmd"
	customerrors "github.com/axellelanca/acortador/internal/errors"
	"github.com/axellelanca/acortador/internal/repository"
	"github.com/axellelanca/acortador/internal/services"
)

// ResolveCmd prints the mapping stored for a short code.
var ResolveCmd = &cobra.Command{
	Use:   "resolve [short-code]",
	Short: "Muestra la URL larga asociada a un código corto",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	cmd.RootCmd.AddCommand(ResolveCmd)
}

func runResolve(c *cobra.Command, args []string) error {
	shortCode := args[0]

	db, err := cmd.OpenDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repository.Close(db)

	urlService := services.NewURLService(repository.NewURLRepository(db), services.NewShortenerOptions(cmd.Cfg))

	mapping, err := urlService.GetMapping(c.Context(), shortCode)
	if err != nil {
		if errors.Is(err, customerrors.ErrShortCodeNotFound) {
			return fmt.Errorf("short code '%s' not found", shortCode)
		}
		return fmt.Errorf("error resolving short code: %w", err)
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "Código: %s\n", mapping.ShortCode)
	fmt.Fprintf(out, "URL larga: %s\n", mapping.LongURL)
	fmt.Fprintf(out, "URL corta: %s\n", mapping.ShortURL)
	fmt.Fprintf(out, "Creada: %s\n", mapping.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
