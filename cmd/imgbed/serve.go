package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"imgbed/internal/auth"
	"imgbed/internal/blobstore"
	"imgbed/internal/images"
	"imgbed/internal/index"
	"imgbed/internal/proxy"
	"imgbed/pkg/config"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the imgbed API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv()
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			setupLogging(cfg.Logging)
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "listen host")
	cmd.Flags().IntVar(&port, "port", 8080, "listen port")

	return cmd
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func run(cfg *config.Config) error {
	log.Info().Str("version", version).Msg("starting imgbed")

	client := blobstore.New(cfg.Registry.PackageBaseURL(), cfg.Registry.Token, cfg.Registry.Timeout)

	var backend index.Backend
	switch cfg.Index.Backend {
	case "local":
		local, err := index.NewLocalBackend(cfg.Index.LocalPath)
		if err != nil {
			return err
		}
		backend = local
	default:
		backend = index.NewRemoteBackend(client, cfg.Index.ObjectName)
	}

	var cache index.Cache
	if cfg.Cache.Type == "redis" {
		redisCache, err := index.NewRedisCache(&cfg.Cache, "imgbed:index")
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisCache.Close()
		cache = redisCache
	} else {
		cache = index.NewMemoryCache(cfg.Cache.TTL)
	}

	store := index.NewStore(backend, cache, cfg.Index.Cap, cfg.Index.Durability)
	service := images.NewService(client, store, cfg.Registry.PublicBaseURL)
	streamer := proxy.NewStreamer(client)
	gate := auth.NewGate(&cfg.Auth)

	router := setupRouter(gate, service, streamer)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return err
	}

	log.Info().Msg("shutdown complete")
	return nil
}
