package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
	"github.com/entropy-jam/kalitraf-current/internal/hub"
	"github.com/entropy-jam/kalitraf-current/internal/notify"
	"github.com/entropy-jam/kalitraf-current/internal/platform/config"
	"github.com/entropy-jam/kalitraf-current/internal/platform/logging"
	"github.com/entropy-jam/kalitraf-current/internal/platform/version"
	"github.com/entropy-jam/kalitraf-current/internal/poller"
	"github.com/entropy-jam/kalitraf-current/internal/redis"
	"github.com/entropy-jam/kalitraf-current/internal/scrape"
	"github.com/entropy-jam/kalitraf-current/internal/server"
	"github.com/entropy-jam/kalitraf-current/internal/store"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		slog.Info("No REDIS_URL configured, snapshot persistence disabled")
		return nil
	}

	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// seedStore loads archived snapshots so a restart does not report every
// active incident as new on the first cycle.
func seedStore(archive domain.SnapshotArchive, mem *store.Memory, sources []domain.Source) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	states, err := archive.LoadAll(ctx)
	if err != nil {
		slog.Warn("Snapshot seed failed, starting cold", "error", err)
		return
	}

	seeded := 0
	for _, src := range sources {
		state, ok := states[src.Code]
		if !ok {
			continue
		}
		mem.Put(src.Code, state.Incidents)
		seeded++
	}
	slog.Info("Snapshot store seeded", "sources", seeded)
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, cancelPoller context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		cancelPoller()

		// Stopping the hub closes every subscriber channel, which lets the
		// long-lived stream handlers return so Shutdown can drain promptly.
		h.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	info := version.Get()
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", info.Version,
		"commit", info.Commit,
	)

	sources, err := cfg.SourceCatalog()
	if err != nil {
		slog.Error("Invalid source configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Source catalog loaded", "sources", len(sources))

	mem := store.NewMemory()

	var archive domain.SnapshotArchive
	var readiness server.ReadinessChecker
	redisClient := setupRedis(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		snapArchive := redis.NewSnapshotArchive(redisClient)
		seedStore(snapArchive, mem, sources)
		archive = snapArchive
		readiness = redisClient
	}

	var notifier domain.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyWebhookURL)
		slog.Info("Delta webhook enabled", "url", cfg.NotifyWebhookURL)
	}

	fetcher := scrape.NewFetcher(cfg.ScrapeBaseURL, cfg.FetchTimeout, cfg.FetchRatePerSecond)

	h := hub.New(sources, mem, clock, cfg.MaxSubscribers)

	p := poller.New(poller.Options{
		Sources:        sources,
		Fetcher:        fetcher,
		Store:          mem,
		Sinks:          []domain.ReportSink{h},
		Notifier:       notifier,
		Archive:        archive,
		Clock:          clock,
		Interval:       cfg.PollInterval,
		MaxConcurrency: cfg.MaxConcurrentFetches,
	})

	pollerCtx, cancelPoller := context.WithCancel(context.Background())
	go p.Run(pollerCtx)

	srv := server.NewServer(cfg, sources, mem, h, clock, readiness)
	done := runGracefulShutdown(srv, h, cancelPoller)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
