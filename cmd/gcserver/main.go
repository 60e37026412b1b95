package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/pavkata12/app/internal/api"
	"github.com/pavkata12/app/internal/auth"
	"github.com/pavkata12/app/internal/config"
	"github.com/pavkata12/app/internal/database"
	"github.com/pavkata12/app/internal/events"
	"github.com/pavkata12/app/internal/ledger"
	"github.com/pavkata12/app/internal/metrics"
	"github.com/pavkata12/app/internal/presence"
)

func init() {
	// Configure zerolog for human-friendly console output
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	configFlag := flag.String("config", "", "path to the YAML configuration file")
	envFlag := flag.String("env", "", "path to the .env file")
	flag.Parse()

	configFile := *configFlag
	if configFile == "" {
		configFile = config.FindConfigFile(config.ServiceName)
	}
	envFile := *envFlag
	if envFile == "" {
		envFile = config.FindEnvironmentFile(config.ServiceName)
	}

	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	cfg.Log.ConfigureZerolog()

	log.Info().Msg("Starting gaming center billing server")
	log.Info().Str("config_file", configFile).Msg("Configuration loaded")
	log.Info().Str("env_file", envFile).Msg("Environment loaded")
	log.Info().
		Str("log_level", cfg.Log.Level).
		Bool("debug", cfg.Log.Debug).
		Msg("Log level configured")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

// run owns every resource it opens; returning releases them through the deferred closers.
func run(cfg *config.Config) error {
	db, err := database.New(cfg.Database.DSN,
		database.WithDebug(cfg.Database.Debug),
		database.WithMaxOpenConns(cfg.Database.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func(db *database.BunDB) {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database connection")
		}
	}(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub(64)
	defer hub.Close()

	l := ledger.New(db, ledger.WithPublisher(hub))

	handlerOpts := []api.Option{
		api.WithEvents(hub),
		api.WithMetrics(cfg.Metrics.Enabled),
	}
	if cfg.Auth.Enabled {
		jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecretKey, cfg.Auth.OperatorKey, cfg.Auth.TokenTTL)
		handlerOpts = append(handlerOpts, api.WithAuth(jwtManager))
	}
	handler := api.NewHandler(l, handlerOpts...)

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(db, cfg.Metrics.CollectInterval, cfg.Metrics.MaxSessionDuration)
		go collector.Start(ctx)
		defer collector.Stop()
	}

	if cfg.Presence.Enabled {
		sweeper, err := presence.NewSweeper(l, cfg.Presence.Schedule, cfg.Presence.HeartbeatTimeout)
		if err != nil {
			return fmt.Errorf("failed to create presence sweeper: %w", err)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Create server with HTTP/2 support
	server := &http.Server{
		Addr:           cfg.GetListenAddress(),
		Handler:        h2c.NewHandler(handler.Router(), &http2.Server{}),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	log.Info().
		Str("address", cfg.GetListenAddress()).
		Str("database", cfg.Database.DSN).
		Bool("auth", cfg.Auth.Enabled).
		Bool("presence", cfg.Presence.Enabled).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("Starting billing server")
	log.Info().Msgf("Health check: http://%s/health", cfg.GetListenAddress())

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		if serveErr != nil {
			serveErr = fmt.Errorf("server failed: %w", serveErr)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	// Close event streams first; hijacked websocket connections are not drained by Shutdown
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	return serveErr
}
