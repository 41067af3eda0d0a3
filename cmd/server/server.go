package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/axellelanca/acortador/cmd"
	"github.com/axellelanca/acortador/internal/api"
	"github.com/axellelanca/acortador/internal/cleanup"
	"github.com/axellelanca/acortador/internal/logger"
	"github.com/axellelanca/acortador/internal/repository"
	"github.com/axellelanca/acortador/internal/services"
)

const shutdownTimeout = 10 * time.Second

// RunServerCmd représente la commande 'run-server' de Cobra.
// C'est le point d'entrée pour lancer le serveur de l'application.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Lanza el servidor HTTP del acortador y la limpieza periódica.",
	Long: `Abre la base de datos, aplica las migraciones, arranca la limpieza de
registros de límite de uso y sirve el formulario, las redirecciones y la API JSON.`,
	RunE: runServer,
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}

func runServer(c *cobra.Command, args []string) error {
	cfg := cmd.Cfg

	db, err := cmd.OpenDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repository.Close(db)

	urlService := services.NewURLService(repository.NewURLRepository(db), services.NewShortenerOptions(cfg))
	limiter := services.NewRateLimitService(repository.NewRateLimitRepository(db), services.NewRateLimitOptions(cfg))
	logger.Log.Info("services initialised",
		zap.String("database", cfg.Database.Name),
		zap.Int("rate_limit", cfg.RateLimit.Limit),
		zap.Duration("rate_window", cfg.RateLimit.Window),
		zap.String("anonymous_policy", cfg.RateLimit.AnonymousPolicy))

	gin.SetMode(gin.ReleaseMode)
	router, err := api.NewRouter(urlService, limiter, cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid server.trusted_proxies: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.RateLimit.Window > 0 {
		janitor := cleanup.NewJanitor(limiter, cfg.RateLimit.CleanupInterval)
		g.Go(func() error {
			janitor.Start(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Log.Info("starting server", zap.String("addr", srv.Addr), zap.String("base_url", cfg.Server.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Log.Info("server stopped")
	return nil
}
