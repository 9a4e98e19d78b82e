// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the crosspost server.
// It loads configuration, connects to services, wires the publish pipeline,
// and starts the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crosspost/internal/cache"
	"crosspost/internal/config"
	"crosspost/internal/credentials"
	"crosspost/internal/database"
	"crosspost/internal/handlers"
	"crosspost/internal/media"
	"crosspost/internal/middleware"
	"crosspost/internal/orchestrator"
	"crosspost/internal/publisher"
	"crosspost/internal/router"
	"crosspost/internal/scheduler"
	"crosspost/internal/storage"
	"crosspost/internal/store"
)

func main() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env", "error", err)
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: text in development, JSON everywhere else.
	var handler slog.Handler
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"queue", cfg.QueueBackend,
		"timezone", cfg.Timezone,
	)

	// Connect to PostgreSQL and run pending migrations.
	db, err := database.Connect(context.Background(), cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Valkey (OAuth state, rate limits, deferred jobs).
	valkeyClient, err := cache.ConnectValkey(context.Background(), cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// Credential store, seeded from long-lived tokens in the environment.
	credStore, err := credentials.New(credentials.OptionsFromConfig(cfg, httpClient))
	if err != nil {
		slog.Error("failed to open credential store", "error", err)
		os.Exit(1)
	}
	for _, seed := range credentials.SeedsFromConfig(cfg) {
		written, err := credStore.SeedIfMissing(seed)
		if err != nil {
			slog.Warn("credential seed rejected", "destination", seed.Destination, "error", err)
			continue
		}
		if written {
			slog.Info("credential seeded from environment", "destination", seed.Destination)
		}
	}

	// Public media host: S3 when configured, otherwise the upload dir's
	// public base URL. Facebook and Instagram fail without either.
	var host storage.Host
	switch {
	case cfg.S3Enabled():
		s3Client, err := storage.New(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3BucketPublic, cfg.S3PublicURL,
		)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		host = s3Client
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3BucketPublic)
	case cfg.PublicBaseURL != "":
		host = storage.NewStaticHost(cfg.PublicBaseURL)
	default:
		slog.Warn("no public media host configured; facebook and instagram media uploads will fail")
	}

	// Publish pipeline.
	registry := publisher.NewRegistry(publisher.Deps{
		Config: cfg,
		Tokens: credStore,
		Host:   host,
		Client: httpClient,
	})
	slog.Info("publishers registered", "destinations", registry.Available())
	postStore := store.NewPostStore(db)
	assembler := media.NewAssembler(cfg.FFmpegPath, cfg.UploadDir, nil)
	orch := orchestrator.New(registry, postStore, assembler, nil, orchestrator.Options{
		Concurrency:        cfg.Concurrency,
		DestinationTimeout: cfg.DestinationTimeout,
		SlidePerImage:      time.Duration(cfg.SlideSeconds * float64(time.Second)),
		SlideAudio:         cfg.SlideAudioPath,
		SlideTimeout:       cfg.SlideTimeout,
		Location:           cfg.Location(),
	})

	// Deferred posts. The Redis queue survives restarts and is shared by
	// every process; the timer queue lives and dies with this one.
	var jobs []*scheduler.Scheduler
	switch cfg.QueueBackend {
	case "redis":
		q := scheduler.NewRedisQueue(valkeyClient, scheduler.DefaultQueueKey, orch.RunJob)
		orch.SetQueue(q)
		poller, err := scheduler.New("queue-poll", cfg.QueuePoll, q.Tick)
		if err != nil {
			slog.Error("failed to create queue poller", "error", err)
			os.Exit(1)
		}
		jobs = append(jobs, poller)
	default:
		q := scheduler.NewTimerQueue(orch.RunJob)
		orch.SetQueue(q)
		defer q.Stop()
	}

	maintain, err := scheduler.New("credential-maintenance", cfg.MaintainInterval, credStore.Maintain)
	if err != nil {
		slog.Error("failed to create credential maintenance job", "error", err)
		os.Exit(1)
	}
	jobs = append(jobs, maintain)
	for _, j := range jobs {
		j.Start()
	}

	// HTTP surface.
	var submitLimit *middleware.RateLimiter
	if cfg.SubmitRatePerMin > 0 {
		submitLimit = middleware.NewRateLimiter(valkeyClient, "submit", cfg.SubmitRatePerMin, time.Minute)
	}
	postHandlers := handlers.NewPosts(postStore, orch, cfg.UploadDir, cfg.Location())
	credHandlers := handlers.NewCredentials(
		credStore,
		cache.NewStateStore(valkeyClient, cache.DefaultStateTTL),
		credentials.AuthorizersFromConfig(cfg, httpClient),
	)
	r := router.New(postHandlers, credHandlers, submitLimit)

	// WriteTimeout must cover a synchronous publish run: the slideshow
	// followed by every destination.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.SlideTimeout + cfg.DestinationTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	for _, j := range jobs {
		j.Stop()
	}

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
