package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"marquee/pkg/api"
	"marquee/pkg/archive"
	"marquee/pkg/auth"
	"marquee/pkg/config"
	"marquee/pkg/env"
	"marquee/pkg/library"
	"marquee/pkg/logger"
	"marquee/pkg/queue"
	"marquee/pkg/refresh"
	"marquee/pkg/server"
	"marquee/pkg/state"
	"marquee/pkg/tmdb"
)

func main() {
	envFile := flag.String("env", config.EnvFilePath(), "Path to the .env file")
	dataDir := flag.String("data", "", "Data directory (overrides MARQUEE_DATA_DIR)")
	port := flag.Int("port", 0, "Port to run the server on (overrides MARQUEE_PORT)")
	ip := flag.String("ip", "", "IP address to bind to (overrides MARQUEE_IP)")
	flag.Parse()

	// Flags win over the .env file, so push them into the environment
	// before the configuration is assembled.
	env.SetEnvVar("MARQUEE_ENV_FILE", *envFile)
	if *dataDir != "" {
		env.SetEnvVar("MARQUEE_DATA_DIR", *dataDir)
	}
	if *port != 0 {
		env.SetEnvVar("MARQUEE_PORT", strconv.Itoa(*port))
	}
	if *ip != "" {
		env.SetEnvVar("MARQUEE_IP", *ip)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Configuration error: %v", err)
	}

	logger.Init()
	defer logger.Close()

	logger.Info("Starting Marquee %s", api.Version)
	logger.Info("Data directory: %s", cfg.DataDir)

	store, err := library.Open(cfg.LibraryDBPath())
	if err != nil {
		logger.Fatal("Failed to open library database: %v", err)
	}
	defer store.Close()

	st, err := state.Open(cfg.StateDBPath())
	if err != nil {
		logger.Fatal("Failed to open state database: %v", err)
	}
	defer st.Close()

	client, err := tmdb.NewClient(tmdb.Options{
		APIKey:   cfg.TMDBAPIKey,
		Language: cfg.TMDBLanguage,
		Region:   cfg.TMDBRegion,
		Offline:  config.OfflineMode,
	})
	if err != nil {
		logger.Fatal("Failed to create metadata client: %v", err)
	}

	q := queue.New(queue.Options{
		MaxConcurrent: cfg.MaxConcurrentActivities,
		QueueSize:     cfg.ActivityQueueSize,
	})

	engine := refresh.NewEngine(cfg, store, st, client)
	manager := archive.NewManager(cfg, store)

	scheduler := refresh.NewScheduler(engine, q, st)
	scheduler.Start()
	config.Subscribe(scheduler.Kick)

	a := api.New(cfg, store, st, q, client, engine, manager)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.New(a, cfg.DataDir).Handler(),
	}

	go func() {
		logger.Info("Server listening on http://%s", cfg.Addr())
		logger.Info("WebDAV share available at http://%s/dav/", cfg.Addr())
		if auth.Enabled() {
			logger.Info("Authentication enabled (username: %s)", auth.GetCredentials().Username)
			logger.Info("To disable authentication, set MARQUEE_AUTH_ENABLED=false in your .env file")
		} else {
			logger.Warn("Authentication is disabled")
		}
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown: %v", err)
	}

	// Stop producing scheduled work, then wait for activities already
	// admitted so nothing is lost mid-flight.
	scheduler.Stop()
	q.Close()

	logger.Info("Shutdown complete")
}
