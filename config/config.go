package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Serp      SerpConfig
	OpenAI    OpenAIConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Search    SearchConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SerpConfig holds search-results provider configuration
type SerpConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig holds language-model provider configuration
type OpenAIConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	ChatModel       string `mapstructure:"chat_model"`
	ExtractionModel string `mapstructure:"extraction_model"`
	EmbeddingModel  string `mapstructure:"embedding_model"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type        string        `mapstructure:"type"` // "memory" or "redis"
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisDB     int           `mapstructure:"redis_db"`
	SearchTTL   time.Duration `mapstructure:"search_ttl"`
	EnrichedTTL time.Duration `mapstructure:"enriched_ttl"`
	RankingTTL  time.Duration `mapstructure:"ranking_ttl"`
}

// AuthConfig holds JWT and login-throttling configuration
type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	AccessTokenTTL   time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL  time.Duration `mapstructure:"refresh_token_ttl"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LockDuration     time.Duration `mapstructure:"lock_duration"`
}

// SearchConfig holds the search pipeline tunables
type SearchConfig struct {
	InitialFetchCount    int           `mapstructure:"initial_fetch_count"`
	EnrichCount          int           `mapstructure:"enrich_count"`
	RankLimit            int           `mapstructure:"rank_limit"`
	TopN                 int           `mapstructure:"top_n"`
	SufficiencyThreshold int           `mapstructure:"sufficiency_threshold"`
	MaxExtractionChars   int           `mapstructure:"max_extraction_chars"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	VectorDimension      int           `mapstructure:"vector_dimension"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	SearchPerMinute int `mapstructure:"search_per_minute"`
	Burst           int `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shopagent/")

	// Environment variable settings
	v.SetEnvPrefix("SHOPAGENT")
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// SERP provider defaults
	v.SetDefault("serp.base_url", "https://google.serper.dev/shopping")
	v.SetDefault("serp.timeout", "20s")

	// OpenAI defaults
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.extraction_model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.search_ttl", "1h")
	v.SetDefault("cache.enriched_ttl", "24h")
	v.SetDefault("cache.ranking_ttl", "3h")

	// Auth defaults
	v.SetDefault("auth.access_token_ttl", "30m")
	v.SetDefault("auth.refresh_token_ttl", "168h") // 7 days
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.lock_duration", "30m")

	// Search pipeline defaults
	v.SetDefault("search.initial_fetch_count", 30)
	v.SetDefault("search.enrich_count", 15)
	v.SetDefault("search.rank_limit", 30)
	v.SetDefault("search.top_n", 10)
	v.SetDefault("search.sufficiency_threshold", 3)
	v.SetDefault("search.max_extraction_chars", 8000)
	v.SetDefault("search.fetch_timeout", "10s")
	v.SetDefault("search.vector_dimension", 1536)

	// Rate limit defaults
	v.SetDefault("ratelimit.search_per_minute", 5)
	v.SetDefault("ratelimit.burst", 5)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Serp.APIKey == "" {
		return fmt.Errorf("SERP API key is required (set SHOPAGENT_SERP_API_KEY)")
	}

	if config.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required (set SHOPAGENT_OPENAI_API_KEY)")
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (set SHOPAGENT_AUTH_JWT_SECRET)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisAddr == "" {
		return fmt.Errorf("Redis address is required when cache type is 'redis'")
	}

	if config.Search.TopN <= 0 {
		return fmt.Errorf("search.top_n must be positive, got: %d", config.Search.TopN)
	}

	if config.Search.EnrichCount < 0 {
		return fmt.Errorf("search.enrich_count must not be negative, got: %d", config.Search.EnrichCount)
	}

	return nil
}
