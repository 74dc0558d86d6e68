package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airemover/internal/adapters/file"
	"airemover/internal/adapters/handler"
	"airemover/internal/adapters/imagehost"
	"airemover/internal/adapters/metrics"
	"airemover/internal/adapters/provider"
	"airemover/internal/config"
	"airemover/internal/core/domain"
	"airemover/internal/core/port"
	"airemover/internal/core/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Info().Msg("starting airemover...")

	log.Info().Msg("reading config...")
	cfg, err := config.Load(os.Getenv("AIREMOVER_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}

	var logLevel zerolog.Level

	switch cfg.Log.Level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	logger := log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Server.MetricsNamespace)

	downloader := file.NewDownloader(cfg.Storage.MaxDownloadBytes, logger)
	store, err := file.NewStore(cfg.Storage.ResultsPath(), cfg.Storage.ResultsURL(), logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed initializing artifact store")
	}

	materializer := service.NewResultMaterializer(downloader, store, cfg.Storage.DownloadTimeout,
		cfg.Storage.Extension, logger)

	var host port.ImageHost
	if cfg.ImageHost.Enabled {
		host = imagehost.NewImgur(cfg.ImageHost.Endpoint, cfg.ImageHost.ClientID, logger)
	}

	rb := cfg.RemoveBackground
	removeBackground := provider.NewRemoveBackground(provider.Config{
		Name:     rb.Label,
		Endpoint: rb.Endpoint,
		APIKey:   rb.Credential(),
		Timeouts: provider.RemoveBackgroundTier(rb.Generation).Override(rb.ConnectTimeout, rb.ReadTimeout, rb.Timeout),
	}, logger)

	dw := cfg.Dewatermark
	dewatermark := provider.NewDewatermark(provider.Config{
		Name:     dw.Label,
		Endpoint: dw.Endpoint,
		APIKey:   dw.Credential(),
		Timeouts: provider.TierDewatermark.Override(dw.ConnectTimeout, dw.ReadTimeout, dw.Timeout),
	}, logger)

	imageHandler := handler.NewImage(
		newOrchestrator(removeBackground, rb, host, cfg.ImageHost.Timeout, materializer, collector, logger),
		newOrchestrator(dewatermark, dw, host, cfg.ImageHost.Timeout, materializer, collector, logger),
		cfg.Server.Version,
		logger,
	)

	router := handler.NewRouter(ctx, imageHandler, handler.RouterOptions{
		APIPrefix:      cfg.Server.APIPrefix,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticRoot:     cfg.Storage.StaticRoot,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Metrics:        collector.Handler(),
		Debug:          cfg.Log.Level == "debug",
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("prefix", cfg.Server.APIPrefix).
		Bool(rb.CredentialName, rb.Credential() != "").
		Bool(dw.CredentialName, dw.Credential() != "").
		Bool("imageHost", cfg.ImageHost.Enabled).
		Str("removeBackgroundOutput", rb.OutputMode).
		Str("dewatermarkOutput", dw.OutputMode).
		Msg("server listening")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newOrchestrator(p port.Provider, cfg config.Provider, host port.ImageHost, uploadTimeout time.Duration,
	materializer *service.ResultMaterializer, recorder port.Recorder, logger zerolog.Logger,
) *service.RequestOrchestrator {
	if !cfg.UseImageHost {
		host = nil
	}

	return service.NewRequestOrchestrator(
		p,
		service.NewTransportStrategy(host, uploadTimeout, p.Name(), recorder, logger),
		service.NewRetryPolicy(cfg.MaxAttempts, cfg.RetryDelay, nil, logger),
		materializer,
		recorder,
		service.EndpointConfig{
			MaxBytes:           cfg.MaxBytes,
			DefaultContentType: cfg.DefaultContentType,
			CredentialName:     cfg.CredentialName,
			Credential:         cfg.Credential(),
			Mode:               domain.MaterializeMode(cfg.OutputMode),
			Cost:               cfg.Cost,
		},
		logger,
	)
}
