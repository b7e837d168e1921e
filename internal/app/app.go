package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tv-order-relay/internal/config"
	"tv-order-relay/internal/exchange"
	"tv-order-relay/internal/ratelimit"
	"tv-order-relay/internal/server"
	"tv-order-relay/internal/service"
	"tv-order-relay/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newGateway() *exchange.Gateway {
	return exchange.NewGateway(exchange.Options{
		BaseURL:    a.Config.Exchange.BaseURL,
		APIKey:     a.Config.Exchange.APIKey,
		APISecret:  a.Config.Exchange.APISecret,
		Passphrase: a.Config.Exchange.Passphrase,
		Timeout:    a.Config.Exchange.RequestTimeout,
		UserAgent:  a.Config.Exchange.UserAgent,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is required")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Serve runs the webhook listener until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	limiter, err := ratelimit.New(ctx, a.Config.Webhook.MinOrderInterval, store, a.Logger)
	if err != nil {
		return err
	}

	svc := service.New(a.Config, store, limiter, a.newGateway(), a.Logger)
	srv := server.New(svc, a.Logger)

	httpSrv := &http.Server{
		Addr:              a.Config.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: a.Config.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.Config.Server.ListenAddr).Msg("webhook listener started")
		if serveErr := httpSrv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case serveErr := <-errCh:
		return serveErr
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}

	a.Logger.Info().Msg("webhook listener stopped")
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Config.Server.ShutdownTimeout > 0 {
		return a.Config.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

// ExportOptions hold parameters for exporting the audit trail.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
