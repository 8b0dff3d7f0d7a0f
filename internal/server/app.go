package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/sqlstore"
	"github.com/dmitrijs2005/cardkeeper/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// App owns the server's lifecycle: it connects the store, migrates the
// schema, selects the storage backend, and runs the HTTP server until a
// termination signal arrives.
type App struct {
	cfg    *config.Config
	log    logging.Logger
	store  *sqlstore.Store
	server *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewJSONLogger(os.Stdout)

	if cfg.ClientMode() {
		return nil, fmt.Errorf("tracking URI %q points at a remote server; the server needs a SQL backend", cfg.TrackingURI)
	}

	store, err := sqlstore.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("store init: %w", err)
	}
	if err := store.RunMigrations(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	fs, err := storage.NewFileSystem(ctx, cfg, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("storage init: %w", err)
	}
	log.Info(ctx, "storage backend ready", "backend", fs.Name())

	srv, err := NewServer(cfg, store, fs, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{cfg: cfg, log: log, store: store, server: srv}, nil
}

func (a *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}

// Run serves until the context is cancelled or a signal arrives, then
// drains in-flight requests and closes the store.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.initSignalHandler(cancel)

	httpServer := &http.Server{
		Addr:    a.cfg.ServerAddr,
		Handler: a.server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "starting server", "addr", a.cfg.ServerAddr, "app_env", a.cfg.AppEnv)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.store.Close()
		return err
	case <-ctx.Done():
	}

	a.log.Info(ctx, "shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if closeErr := a.store.Close(); err == nil {
		err = closeErr
	}
	return err
}
