package main

import (
	"fmt"
	"log"

	"github.com/shopagent/backend/config"
	httpDelivery "github.com/shopagent/backend/internal/delivery/http"
	"github.com/shopagent/backend/internal/domain"
	"github.com/shopagent/backend/internal/infrastructure/cache"
	"github.com/shopagent/backend/internal/infrastructure/llm"
	"github.com/shopagent/backend/internal/infrastructure/serp"
	"github.com/shopagent/backend/internal/infrastructure/userstore"
	"github.com/shopagent/backend/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting shopagent backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type))

	// Infrastructure
	store, err := newCache(cfg)
	if err != nil {
		logger.Fatal("failed to initialize cache", zap.Error(err))
	}

	serpClient := serp.NewClient(cfg.Serp.APIKey, cfg.Serp.BaseURL, cfg.Serp.Timeout, logger)

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		DefaultModel:   cfg.OpenAI.ChatModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
	}, logger)

	users := userstore.NewMemoryStore()

	// Usecase layer
	enricher := usecase.NewEnricherService(llmClient, usecase.EnricherConfig{
		SufficiencyThreshold: cfg.Search.SufficiencyThreshold,
		MaxExtractionChars:   cfg.Search.MaxExtractionChars,
		FetchTimeout:         cfg.Search.FetchTimeout,
		ExtractionModel:      cfg.OpenAI.ExtractionModel,
	}, logger)

	ranker := usecase.NewRankerService(llmClient, usecase.RankerConfig{
		Model: cfg.OpenAI.ChatModel,
	}, logger)

	searchService := usecase.NewSearchService(serpClient, enricher, ranker, store, usecase.SearchServiceConfig{
		InitialFetchCount: cfg.Search.InitialFetchCount,
		EnrichCount:       cfg.Search.EnrichCount,
		RankLimit:         cfg.Search.RankLimit,
		TopN:              cfg.Search.TopN,
		EnrichedTTL:       cfg.Cache.EnrichedTTL,
		RankingTTL:        cfg.Cache.RankingTTL,
	}, logger)

	authService := usecase.NewAuthService(users, store, usecase.AuthServiceConfig{
		JWTSecret:        cfg.Auth.JWTSecret,
		AccessTokenTTL:   cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:  cfg.Auth.RefreshTokenTTL,
		MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
		LockDuration:     cfg.Auth.LockDuration,
	}, logger)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(searchService, authService, store, cfg.Cache.SearchTTL, logger)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, authService)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// newLogger builds a production JSON logger outside of development.
func newLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newCache selects the cache backend from configuration.
func newCache(cfg *config.Config) (domain.Cache, error) {
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		return redisCache, nil
	}
	return cache.NewMemoryCache(), nil
}
