package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/photo-feed-client/internal/browser"
	"github.com/Sternrassler/photo-feed-client/pkg/client"
	"github.com/Sternrassler/photo-feed-client/pkg/config"
	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	"github.com/Sternrassler/photo-feed-client/pkg/metrics"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// The terminal is owned by the browser, so logs only go to a file.
	logOut, closeLog, err := openLogOutput(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	logger := logging.Setup(logOut)

	rdb, err := connectRedis(cfg.Quota)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		logger.Info().Str("addr", cfg.Quota.RedisAddr).Msg("Connected to Redis")
	}

	sink := browser.NewSink(256)
	defer sink.Close()

	feed, err := client.New(client.FromAppConfig(cfg, rdb), sink)
	if err != nil {
		return fmt.Errorf("create feed client: %w", err)
	}
	defer feed.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Feed engine stopped")
		}
	}()

	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, readyChecks(rdb)...)
		go func() {
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	program := tea.NewProgram(
		browser.NewModel(feed, sink, cfg.Grid.Rows),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run browser: %w", err)
	}

	logger.Info().Msg("Photo feed stopped")
	return nil
}

// openLogOutput returns the logging configuration for cfg. Without a log file
// logging is disabled.
func openLogOutput(cfg config.LoggingConfig) (logging.Config, func(), error) {
	if cfg.File == "" {
		return logging.Config{Level: logging.LevelDisabled, Output: io.Discard}, func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return logging.Config{}, nil, fmt.Errorf("open log file: %w", err)
	}

	return logging.Config{
		Level:  logging.LogLevel(cfg.Level),
		Pretty: cfg.Pretty,
		Output: f,
	}, func() { _ = f.Close() }, nil
}

// connectRedis returns nil when quota tracking is disabled or no Redis address
// is configured.
func connectRedis(cfg config.QuotaConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.RedisAddr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to Redis at %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}

func readyChecks(rdb *redis.Client) []metrics.ReadyFunc {
	if rdb == nil {
		return nil
	}
	return []metrics.ReadyFunc{
		func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
}
