package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/potguess/internal/config"
	"github.com/robalobadob/potguess/internal/database"
	"github.com/robalobadob/potguess/internal/game"
	"github.com/robalobadob/potguess/internal/httpserver"
	"github.com/robalobadob/potguess/internal/ledger"
	"github.com/robalobadob/potguess/internal/logging"
	"github.com/robalobadob/potguess/internal/payout"
	"github.com/robalobadob/potguess/internal/store"
)

// ServeCmd runs the HTTP API.
type ServeCmd struct {
	Port string `help:"Listen port (overrides PORT)"`
}

func (c *ServeCmd) Run() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Port = c.Port
	}

	ctx := signalContext(logger)
	db, err := database.OpenMigrated(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	srv, err := newServer(cfg, db, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Uint64("fee", cfg.Fee).
			Str("db", cfg.DBPath).
			Msg("starting potguess server")
		if err := srv.Start(":" + cfg.Port); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires the SQLite ledger, journal and game store and the engine
// behind the HTTP server.
func newServer(cfg config.Config, db *sql.DB, logger zerolog.Logger) (*httpserver.Server, error) {
	l := ledger.NewSQLite(db)
	journal := payout.NewSQLiteJournal(db)
	games := store.NewSQLite(db)

	engine, err := game.NewEngine(logger.With().Str("component", "engine").Logger(),
		l, games, journal, game.WithConfig(game.Config{Fee: cfg.Fee}))
	if err != nil {
		return nil, err
	}
	return httpserver.New(httpserver.Deps{
		Config:  cfg,
		Engine:  engine,
		Games:   games,
		Ledger:  l,
		Minter:  l,
		Journal: journal,
		DB:      db,
		Logger:  logger.With().Str("component", "http").Logger(),
	}), nil
}

// setup loads configuration and configures the global logger.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(logger zerolog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down gracefully")
		cancel()
	}()

	return ctx
}
