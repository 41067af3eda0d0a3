package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/acortador/cmd"
	customerrors "github.com/axellelanca/acortador/internal/errors"
	"github.com/axellelanca/acortador/internal/repository"
	"github.com/axellelanca/acortador/internal/services"
	"github.com/axellelanca/acortador/internal/validator"
)

var longURLFlag string

// CreateCmd représente la commande 'create'.
// Elle ne passe pas par le limiteur de débit : c'est un outil d'administration.
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Crea una URL corta a partir de una URL larga.",
	Long: `Valida la URL indicada, la acorta y muestra el código generado.

Ejemplo:
  acortador create --url="https://www.example.com/search?q=go+lang"`,
	RunE: func(c *cobra.Command, args []string) error {
		if err := validator.ValidateURL(longURLFlag); err != nil {
			var verr *customerrors.ValidationError
			if errors.As(err, &verr) {
				return errors.New(verr.Message)
			}
			return err
		}

		db, err := cmd.OpenDatabase()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer repository.Close(db)

		urlService := services.NewURLService(repository.NewURLRepository(db), services.NewShortenerOptions(cmd.Cfg))

		mapping, err := urlService.Shorten(c.Context(), longURLFlag)
		if err != nil {
			return fmt.Errorf("failed to create short link: %w", err)
		}

		fmt.Fprintf(c.OutOrStdout(), "Código: %s\n", mapping.ShortCode)
		fmt.Fprintf(c.OutOrStdout(), "URL corta: %s\n", mapping.ShortURL)
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVar(&longURLFlag, "url", "", "The long URL to shorten")
	_ = CreateCmd.MarkFlagRequired("url")

	cmd.RootCmd.AddCommand(CreateCmd)
}
