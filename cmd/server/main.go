package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yangwenmai/force/internal/api"
	"github.com/yangwenmai/force/internal/config"
	"github.com/yangwenmai/force/internal/engine"
	"github.com/yangwenmai/force/internal/instance"
	"github.com/yangwenmai/force/internal/store"
	"github.com/yangwenmai/force/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	lock, err := instance.Acquire(cfg.DBPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Open SQLite.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize store.
	s, err := store.New(db)
	if err != nil {
		return err
	}

	eng := engine.New(s, engine.Options{
		Location:      loc,
		BlockDuration: cfg.BlockDuration,
		CheckpointPct: cfg.CheckpointPct,
		Logger:        logger,
	})

	digest, err := worker.NewDigest(eng, cfg.DigestSchedule, loc, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start background jobs.
	go worker.NewSweeper(eng, cfg.SweepInterval, logger).Start(ctx)
	go digest.Start(ctx)

	// Start API server.
	srv := api.New(eng, api.Options{CORSOrigin: cfg.CORSOrigin, Logger: logger})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("force server listening", "addr", "http://localhost:"+cfg.Port, "db", cfg.DBPath, "lock", lock.Path())
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
