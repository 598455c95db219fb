package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/user/recipe-crawler/internal/config"
	"github.com/user/recipe-crawler/internal/extractor"
	"github.com/user/recipe-crawler/internal/monitoring"
	"github.com/user/recipe-crawler/internal/pipeline"
	"github.com/user/recipe-crawler/internal/source"
	"github.com/user/recipe-crawler/internal/storage"
	"github.com/user/recipe-crawler/internal/transcript"
)

// cacheTTL bounds how long the Redis dedup fast path is trusted before
// falling back to the database check.
const cacheTTL = 30 * 24 * time.Hour

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Storage Layer
	store, err := storage.NewRecipeStore(cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer store.Close()

	cache := storage.NewIngestCache(cfg.RedisAddr)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	// Verify the target chef before doing any video work.
	chef, err := store.GetChef(ctx, cfg.ChefID)
	if err != nil {
		logger.Fatal("target chef lookup failed", zap.String("chef_id", cfg.ChefID), zap.Error(err))
	}
	logger.Info("crawling channel for chef",
		zap.String("chef", chef.Name), zap.String("channel", cfg.ChannelURL))

	// AI client
	genAI, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logger.Fatal("failed to create genai client", zap.Error(err))
	}

	// Monitoring
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	monServer := monitoring.NewServer(cfg.MetricsPort, store, cache, logger)
	go func() {
		if err := monServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitoring server stopped", zap.Error(err))
		}
	}()

	// Core pipeline
	ytClient := source.NewClient(cfg.TempDir, logger)
	p := pipeline.New(pipeline.Config{
		Source:      ytClient,
		Transcripts: transcript.NewFetcher(logger),
		Audio:       pipelineAudio{ytClient},
		Extractor:   extractor.New(genAI, cfg.GeminiModel, logger),
		Store:       store,
		Cache:       cache,
		ChannelURL:  cfg.ChannelURL,
		ChefID:      cfg.ChefID,
		VideoLimit:  cfg.VideoLimit,
		VideoDelay:  time.Duration(cfg.VideoDelayMS) * time.Millisecond,
		CacheTTL:    cacheTTL,
	}, metrics, logger)

	summary, runErr := p.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := monServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("monitoring server shutdown failed", zap.Error(err))
	}

	if runErr != nil {
		logger.Fatal("crawl run failed", zap.Error(runErr))
	}
	logger.Info("crawl finished",
		zap.Int("saved", summary.Saved),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
}

// pipelineAudio adapts the concrete audio download to the pipeline's
// artifact interface.
type pipelineAudio struct {
	client *source.Client
}

func (a pipelineAudio) DownloadAudio(ctx context.Context, videoID string) (pipeline.AudioArtifact, error) {
	audio, err := a.client.DownloadAudio(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return audio, nil
}
