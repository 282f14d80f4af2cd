// Package server initializes and runs the sync server: it opens the
// database, applies migrations, wires the sync and media services to the
// HTTP surface and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/antonkovalev/storysync/internal/logging"
	"github.com/antonkovalev/storysync/internal/server/config"
	"github.com/antonkovalev/storysync/internal/server/httpapi"
	"github.com/antonkovalev/storysync/internal/server/media"
	"github.com/antonkovalev/storysync/internal/server/notify"
	"github.com/antonkovalev/storysync/internal/server/repositories/repomanager"
	"github.com/antonkovalev/storysync/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sethvargo/go-retry"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	hub          *notify.Hub
	syncService  *services.SyncService
	mediaService *media.Service
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	// The database may still be coming up alongside us; ping with backoff
	// before touching the schema.
	backoff := retry.WithMaxDuration(time.Minute, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "waiting for database", "error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	hub := notify.NewHub(logger)
	ss := services.NewSyncService(db, rm, cfg, hub, logger)
	ms := media.NewService(cfg)

	return &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		hub:          hub,
		syncService:  ss,
		mediaService: ms,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := httpapi.NewServer(app.config.EndpointAddr, app.logger,
		app.syncService, app.mediaService, app.hub, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.hub.Close()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
