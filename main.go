package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"drinkMenuAPI/handlers"
	"drinkMenuAPI/internal/config"
	"drinkMenuAPI/internal/storage"
	"drinkMenuAPI/middleware"
	"drinkMenuAPI/services"
)

func main() {
	configPath := flag.String("config-path", "", "path to an optional TOML config file")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid config")
	}
	configureLogger(logger, cfg.Log)
	if !cfg.DotEnvLoaded {
		logger.Info("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to open drinks store")
	}
	defer func() {
		logger.Info("closing drinks store")
		store.Close()
	}()
	logger.Info("connected to drinks store")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	keys := middleware.NewKeySet(cfg.Auth.JWKSURL, &http.Client{Timeout: 5 * time.Second}, logger)
	// A failed warm-up is not fatal; lookups refetch on demand.
	if err := keys.Refresh(ctx); err != nil {
		logger.WithError(err).Warn("could not prefetch signing keys")
	}

	verifier := middleware.NewVerifier(keys, middleware.VerifierConfig{
		Audience:         cfg.Auth.Audience,
		Issuer:           cfg.Auth.Issuer,
		Algorithm:        cfg.Auth.Algorithm,
		PermissionsClaim: cfg.Auth.PermissionsClaim,
	}, logger, metrics)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Cleanup(ctx, time.Minute)

	router := handlers.NewRouter(&handlers.App{
		Config: handlers.RouterConfig{
			AllowedOrigins:  cfg.CORS.AllowedOrigins,
			MetricsUser:     cfg.Metrics.User,
			MetricsPassword: cfg.Metrics.Password,
			RequestTimeout:  cfg.RequestTimeout,
			TrustProxy:      cfg.TrustProxyHeaders,
		},
		Logger:   logger,
		Drinks:   services.NewDrinkService(store, logger),
		Verifier: verifier,
		Metrics:  metrics,
		Limiter:  limiter,
		Gatherer: reg,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("error starting server")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}
	logger.Info("server shutdown complete")
}

func configureLogger(logger *logrus.Logger, cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
