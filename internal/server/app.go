// Package server initializes and runs the TaskKeeper server: it connects to
// the database, applies migrations, wires the auth service and session store,
// and serves the HTTP API until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sethvargo/go-retry"

	"github.com/taskkeeper/taskkeeper/internal/logging"
	"github.com/taskkeeper/taskkeeper/internal/server/auth"
	"github.com/taskkeeper/taskkeeper/internal/server/config"
	"github.com/taskkeeper/taskkeeper/internal/server/httpapi"
	"github.com/taskkeeper/taskkeeper/internal/server/repositories/repomanager"
	"github.com/taskkeeper/taskkeeper/internal/server/services"
	"github.com/taskkeeper/taskkeeper/internal/server/sessions"
	"github.com/taskkeeper/taskkeeper/internal/server/sweeper"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	return &App{config: cfg, logger: logger}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// openDB connects to Postgres and pings it with exponential backoff, so the
// server survives the database coming up slightly later (e.g. in compose).
func (app *App) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			app.logger.Warn(ctx, "database not reachable yet", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return db, nil
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	db, err := app.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	usersRepo := rm.Users(db)
	sessionStore := sessions.NewStore(rm.Sessions(db), app.config)

	codec := auth.NewTokenCodec([]byte(app.config.SecretKey), app.config.AccessTokenValidityDuration)
	authService := services.NewAuthService(usersRepo, sessionStore, auth.NewArgon2Hasher(), codec, auth.NewGate(0))

	httpServer := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: httpapi.NewServer(authService, app.config, app.logger).Handler(),
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.New(sessionStore, app.config.SweepInterval, app.logger).Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server error", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "error shutting down http server", "error", err)
	}

	wg.Wait()

	app.logger.Info(ctx, "server stopped")
	return nil
}
