package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	_ "time/tzdata" // Subscriber timezones must resolve without system zoneinfo.

	"warframe_bot/internal/bot"
	"warframe_bot/internal/config"
	"warframe_bot/internal/editor"
	"warframe_bot/internal/feed"
	"warframe_bot/internal/scheduler"
	"warframe_bot/internal/server"
	"warframe_bot/internal/storage"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup finishes before exit.
func run() int {
	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("load env file", "error", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		return 1
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			return 1
		}
	}

	store, err := openStore(cfg, log)
	if err != nil {
		log.Error("open storage", "driver", cfg.StorageDriver, "path", cfg.DatabasePath, "error", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	fetcher := feed.NewFetcher(&http.Client{}, cfg.APIURL, log)
	fetcher.SetTimeout(cfg.FetchTimeout)
	cache := feed.NewCache(fetcher, cfg.CacheTTL, log)

	b, err := bot.New(cfg.TelegramBotToken, editor.New(store), cache, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		return 1
	}

	sched := scheduler.New(store, cache, b, log)
	sched.SetSchedule(cfg.NotifySchedule)
	sched.SetSendRate(cfg.SendRate)
	sched.SetDedup(cfg.NotifyDedup)

	srv := server.New(cfg.Port, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot", "storage", cfg.StorageDriver, "schedule", cfg.NotifySchedule)

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			log.Error("http server", "error", err)
			failed.Store(true)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil {
			log.Error("scheduler", "error", err)
			failed.Store(true)
			cancel()
		}
	}()

	b.Run(ctx)
	cancel()
	wg.Wait()

	if failed.Load() {
		log.Error("bot stopped after a component failure")
		return 1
	}
	log.Info("bot stopped")
	return 0
}

func openStore(cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.StorageDriver == config.DriverBolt {
		return storage.NewBolt(cfg.DatabasePath, log)
	}
	return storage.NewSQLite(cfg.DatabasePath, log)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
