package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-presign/pkg/simplepresign/api"
	"github.com/tendant/simple-presign/pkg/simplepresign/config"
	s3storage "github.com/tendant/simple-presign/pkg/simplepresign/storage/s3"
)

// presign requests are small JSON documents
const maxRequestBytes = 64 << 10

func main() {
	// Load configuration
	cfg, err := config.Load(config.WithDotEnv(), config.WithEnv())
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.Default().With("service", "presign-server", "environment", cfg.Environment)

	backend, err := cfg.BuildBackend(s3storage.WithLogger(logger))
	if err != nil {
		slog.Error("Failed to initialize S3 backend", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	keys, err := cfg.KeyGenerator()
	if err != nil {
		slog.Error("Failed to initialize object key generator", "err", err)
		os.Exit(1)
	}
	presignHandler := api.NewHandler(backend, logger, api.WithKeyGenerator(keys))

	var apiKey func(next http.Handler) http.Handler
	if cfg.ApiKeySHA256 != "" {
		apiKey, err = middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{
				"key1": cfg.ApiKeySHA256,
			},
		})
		if err != nil {
			slog.Error("Failed initialize API Key middleware", "err", err)
			os.Exit(1)
		}
	} else if cfg.Environment == "production" {
		slog.Error("API_KEY_SHA256 is required in production")
		os.Exit(1)
	} else {
		logger.Warn("API key check disabled")
	}

	server.R.Route("/api/v1", func(r chi.Router) {
		// request ids, panic recovery and access logs come from app.DefaultApp
		r.Use(chimiddleware.RequestSize(maxRequestBytes))
		r.Group(func(r chi.Router) {
			if apiKey != nil {
				r.Use(apiKey)
			}
			r.Mount("/presign", presignHandler.Routes())
		})
	})

	logger.Info("Starting presign server", "bucket", backend.Bucket(), "expires", backend.PresignDuration())

	// Start server
	server.Run()
}
