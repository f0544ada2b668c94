package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/slotwise/internal/config"
	"github.com/me/slotwise/internal/engine"
	"github.com/me/slotwise/internal/logging"
	"github.com/me/slotwise/internal/server"
	"github.com/me/slotwise/internal/store"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (SLOTWISE_* env vars override it)")
	addr := flag.String("addr", "", "Listen address")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (text, json)")
	dbPath := flag.String("db", "", "SQLite database path")
	workers := flag.Int("workers", -1, "Concurrent candidate scorers per request (0 = one per CPU)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Flags win over file and environment.
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *workers >= 0 {
		cfg.Engine.Workers = *workers
	}

	logger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configure logging: %v\n", err)
		os.Exit(1)
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", cfg.DBPath)

	var engineOpts []engine.Option
	if cfg.Engine.Workers > 0 {
		engineOpts = append(engineOpts, engine.WithWorkers(cfg.Engine.Workers))
	}
	if cfg.Engine.Seed != 0 {
		engineOpts = append(engineOpts, engine.WithSeed(cfg.Engine.Seed))
		logger.Info("optimizer seed fixed", "seed", cfg.Engine.Seed)
	}
	eng := engine.New(logger, engineOpts...)

	srv := server.New(cfg, st, eng, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr,
			"default_algorithm", cfg.Engine.DefaultAlgorithm)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
