// Package services contains the business logic layer for the URL shortener application
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/axellelanca/acortador/internal/config"
	customerrors "github.com/axellelanca/acortador/internal/errors"
	"github.com/axellelanca/acortador/internal/logger"
	"github.com/axellelanca/acortador/internal/models"
	"github.com/axellelanca/acortador/internal/repository"
)

// hexAlphabet is the alphabet of generated short codes: 16^6 ≈ 16.7M codes at the default length.
const hexAlphabet = "0123456789abcdef"

// ShortenerOptions configures URLService.
type ShortenerOptions struct {
	BaseURL       string
	CodeLength    int
	MaxCodeLength int
	MaxAttempts   int // attempts per code length before growing the code
	Dedup         bool
}

// DefaultShortenerOptions mirrors the configuration defaults.
func DefaultShortenerOptions(baseURL string) ShortenerOptions {
	return ShortenerOptions{
		BaseURL:       baseURL,
		CodeLength:    6,
		MaxCodeLength: 10,
		MaxAttempts:   5,
		Dedup:         true,
	}
}

// URLService provides business logic methods for creating short codes and resolving them.
// It acts as an intermediary between the HTTP handlers and the mapping repository.
type URLService struct {
	urlRepo  repository.URLRepository
	opts     ShortenerOptions
	generate func(length int) (string, error)
	now      func() time.Time
}

// NewURLService creates and returns a new instance of URLService.
func NewURLService(urlRepo repository.URLRepository, opts ShortenerOptions) *URLService {
	return &URLService{
		urlRepo:  urlRepo,
		opts:     opts,
		generate: GenerateShortCode,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateShortCode generates a random short code drawn from the lowercase hex alphabet.
// Parameters:
//   - length: the desired length of the generated code
//
// Returns:
//   - string: the generated random code
//   - error: any error from the random source
func GenerateShortCode(length int) (string, error) {
	return gonanoid.Generate(hexAlphabet, length)
}

// Shorten returns the mapping for longURL, creating it if needed.
//
// With de-duplication enabled an existing mapping for the exact same URL is returned
// unchanged. Otherwise candidate codes are drawn until one is free: a code already in the
// store, or rejected by the unique index at write time, counts as a collision. After
// MaxAttempts collisions the code grows by one character, up to MaxCodeLength.
// Parameters:
//   - longURL: the already validated URL to shorten
//
// Returns:
//   - *models.URLMapping: the new or reused mapping
//   - error: customerrors.ErrShortCodeGenerationFailed when every length is exhausted,
//     or a wrapped persistence error
func (s *URLService) Shorten(ctx context.Context, longURL string) (*models.URLMapping, error) {
	// Reuse the oldest mapping of the exact same URL
	if s.opts.Dedup {
		existing, err := s.urlRepo.FindByLongURL(ctx, longURL)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up long url: %w", err)
		}
	}

	for length := s.opts.CodeLength; length <= s.opts.MaxCodeLength; length++ {
		for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
			code, err := s.generate(length)
			if err != nil {
				return nil, fmt.Errorf("failed to generate short code: %w", err)
			}

			// A code already stored is a collision: draw another one
			_, err = s.urlRepo.FindByShortCode(ctx, code)
			if err == nil {
				logger.Log.Debug("short code collision", zap.String("code", code), zap.Int("attempt", attempt))
				continue
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("database error checking short code uniqueness: %w", err)
			}

			mapping := &models.URLMapping{
				ShortCode: code,
				LongURL:   longURL,
				ShortURL:  s.opts.BaseURL + "/" + code,
				CreatedAt: s.now(),
			}
			// The unique index still catches a code inserted since the lookup
			err = s.urlRepo.CreateMapping(ctx, mapping)
			if errors.Is(err, repository.ErrShortCodeExists) {
				logger.Log.Debug("short code taken at write time", zap.String("code", code), zap.Int("attempt", attempt))
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to create mapping: %w", err)
			}
			return mapping, nil
		}
		logger.Log.Warn("short code space crowded, growing code length",
			zap.Int("length", length), zap.Int("attempts", s.opts.MaxAttempts))
	}

	return nil, customerrors.ErrShortCodeGenerationFailed
}

// Resolve returns the long URL mapped to shortCode. An unknown code is reported with
// ok == false and a nil error.
func (s *URLService) Resolve(ctx context.Context, shortCode string) (longURL string, ok bool, err error) {
	mapping, err := s.urlRepo.FindByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to resolve short code: %w", err)
	}
	return mapping.LongURL, true, nil
}

// GetMapping returns the full mapping for shortCode or customerrors.ErrShortCodeNotFound.
func (s *URLService) GetMapping(ctx context.Context, shortCode string) (*models.URLMapping, error) {
	mapping, err := s.urlRepo.FindByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, customerrors.ErrShortCodeNotFound
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return mapping, nil
}

// NewShortenerOptions reads the shortener section of the configuration.
func NewShortenerOptions(cfg *config.Config) ShortenerOptions {
	return ShortenerOptions{
		BaseURL:       cfg.Server.BaseURL,
		CodeLength:    cfg.Shortener.CodeLength,
		MaxCodeLength: cfg.Shortener.MaxCodeLength,
		MaxAttempts:   cfg.Shortener.MaxAttempts,
		Dedup:         cfg.Shortener.Dedup,
	}
}
