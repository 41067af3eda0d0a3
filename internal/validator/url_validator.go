// Package validator contains the purely syntactic checks applied to URLs before they are shortened.
package validator

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	customerrors "github.com/axellelanca/acortador/internal/errors"
)

// MaxURLLength is the longest URL accepted for shortening.
const MaxURLLength = 2048

// urlPattern is the allow-list of characters for scheme, host, port, path, query and fragment.
var urlPattern = regexp.MustCompile(`^https?://[-a-zA-Z0-9+&@#/%?=~_|!:,.;]*[-a-zA-Z0-9+&@#/%=~_|]$`)

// ValidateURL checks raw in order and stops at the first failing rule.
// It never touches the network and is safe for concurrent use.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return customerrors.NewValidationError(customerrors.ErrEmptyURL,
			"La URL no puede estar vacía")
	}

	if len(raw) > MaxURLLength {
		return customerrors.NewValidationError(customerrors.ErrURLTooLong,
			fmt.Sprintf("La URL excede la longitud máxima permitida de %d caracteres", MaxURLLength))
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return customerrors.NewValidationError(customerrors.ErrMalformedURL,
			"El formato de la URL no es válido")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return customerrors.NewValidationError(customerrors.ErrUnsupportedProtocol,
			"La URL debe usar protocolo HTTP o HTTPS")
	}

	if !urlPattern.MatchString(raw) {
		return customerrors.NewValidationError(customerrors.ErrDisallowedCharacters,
			"La URL contiene caracteres no permitidos")
	}

	if u.Hostname() == "" {
		return customerrors.NewValidationError(customerrors.ErrMissingHost,
			"La URL debe contener un host válido")
	}

	return nil
}
