package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopagent/backend/internal/domain"
	"github.com/shopagent/backend/internal/infrastructure/serp"
	"go.uber.org/zap"
)

const (
	cachePrefixEnriched = "enriched"
	cachePrefixRanking  = "ranking"
)

// SearchServiceConfig holds the pipeline bounds and cache TTLs.
type SearchServiceConfig struct {
	// InitialFetchCount is how many raw records to request from the provider.
	InitialFetchCount int
	// EnrichCount caps how many leading products are enriched per query.
	EnrichCount int
	// RankLimit caps how many products are sent to the ranker.
	RankLimit int
	// TopN is the maximum size of the returned list.
	TopN int
	// EnrichedTTL is the cache lifetime of one enriched product.
	EnrichedTTL time.Duration
	// RankingTTL is the cache lifetime of one query's ranking scores.
	RankingTTL time.Duration
}

// SearchService orchestrates one query's lifecycle: provider fetch,
// normalization, bounded concurrent enrichment, ranking, truncation.
// It never returns an error to its caller; every failure degrades to an
// empty or partial result list.
type SearchService struct {
	provider domain.SearchProvider
	enricher domain.Enricher
	ranker   domain.Ranker
	cache    domain.Cache
	config   SearchServiceConfig
	logger   *zap.Logger
}

// NewSearchService creates a new search orchestrator
func NewSearchService(
	provider domain.SearchProvider,
	enricher domain.Enricher,
	ranker domain.Ranker,
	cache domain.Cache,
	config SearchServiceConfig,
	logger *zap.Logger,
) *SearchService {
	if config.InitialFetchCount <= 0 {
		config.InitialFetchCount = 30
	}
	if config.EnrichCount <= 0 {
		config.EnrichCount = 15
	}
	if config.RankLimit <= 0 {
		config.RankLimit = 30
	}
	if config.TopN <= 0 {
		config.TopN = 10
	}
	if config.EnrichedTTL <= 0 {
		config.EnrichedTTL = 24 * time.Hour
	}
	if config.RankingTTL <= 0 {
		config.RankingTTL = 3 * time.Hour
	}

	return &SearchService{
		provider: provider,
		enricher: enricher,
		ranker:   ranker,
		cache:    cache,
		config:   config,
		logger:   logger,
	}
}

// Search runs the full pipeline for one query. An empty query, provider
// failure, or empty provider result all return an empty list, never an
// error.
func (s *SearchService) Search(ctx context.Context, query string) []domain.Product {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Product{}
	}

	records, err := s.provider.Search(ctx, query, s.config.InitialFetchCount)
	if err != nil {
		s.logger.Warn("provider search failed",
			zap.String("query", query),
			zap.Error(err))
		return []domain.Product{}
	}

	products := serp.NormalizeAll(records)
	if len(products) == 0 {
		s.logger.Info("no usable results for query", zap.String("query", query))
		return []domain.Product{}
	}

	s.enrichLeading(ctx, products)

	rankCount := min(len(products), s.config.RankLimit)
	ranked := s.rankWithCache(ctx, query, products[:rankCount])

	if len(ranked) > s.config.TopN {
		ranked = ranked[:s.config.TopN]
	}

	s.logger.Info("search completed",
		zap.String("query", query),
		zap.Int("results", len(ranked)))
	return ranked
}

// enrichLeading enriches the first EnrichCount products concurrently.
// Every enrichment task writes back to its own slot, so output order
// matches input order and one failed task never affects the others.
func (s *SearchService) enrichLeading(ctx context.Context, products []domain.Product) {
	count := min(len(products), s.config.EnrichCount)

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			products[slot] = s.enrichWithCache(ctx, products[slot])
		}(i)
	}
	wg.Wait()
}

// enrichWithCache checks for a previously enriched copy of the product
// before doing the fetch-and-extract work.
func (s *SearchService) enrichWithCache(ctx context.Context, product domain.Product) domain.Product {
	key := stableProductKey(product)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		var enriched domain.Product
		if err := json.Unmarshal([]byte(cached), &enriched); err == nil {
			s.logger.Debug("enrichment cache hit", zap.String("key", key))
			return enriched
		}
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("enrichment cache read failed", zap.Error(err))
	}

	enriched := s.enricher.EnrichProduct(ctx, product)

	if payload, err := json.Marshal(enriched); err == nil {
		if err := s.cache.Set(ctx, key, string(payload), s.config.EnrichedTTL); err != nil {
			s.logger.Warn("enrichment cache write failed", zap.Error(err))
		}
	}

	return enriched
}

// cachedRankEntry is one product's cached ranking result.
type cachedRankEntry struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// rankWithCache applies cached ranking scores when the same query has been
// ranked against the same product set recently, and ranks fresh otherwise.
func (s *SearchService) rankWithCache(ctx context.Context, query string, products []domain.Product) []domain.Product {
	key := rankingCacheKey(query, products)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		if ranked, ok := s.applyCachedRanking(cached, products); ok {
			s.logger.Debug("ranking cache hit", zap.String("key", key))
			return ranked
		}
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("ranking cache read failed", zap.Error(err))
	}

	ranked := s.ranker.Rank(ctx, query, products)

	entries := make(map[string]cachedRankEntry, len(ranked))
	for _, p := range ranked {
		if p.RelevanceScore != nil {
			entries[stableProductKey(p)] = cachedRankEntry{
				Score:       *p.RelevanceScore,
				Explanation: p.RelevanceExplanation,
			}
		}
	}
	if len(entries) > 0 {
		if payload, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), s.config.RankingTTL); err != nil {
				s.logger.Warn("ranking cache write failed", zap.Error(err))
			}
		}
	}

	return ranked
}

func (s *SearchService) applyCachedRanking(cached string, products []domain.Product) ([]domain.Product, bool) {
	var entries map[string]cachedRankEntry
	if err := json.Unmarshal([]byte(cached), &entries); err != nil {
		return nil, false
	}

	ranked := make([]domain.Product, len(products))
	copy(ranked, products)

	applied := 0
	for i := range ranked {
		if entry, ok := entries[stableProductKey(ranked[i])]; ok {
			score := entry.Score
			ranked[i].RelevanceScore = &score
			ranked[i].RelevanceExplanation = entry.Explanation
			applied++
		}
	}
	if applied == 0 {
		return nil, false
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return scoreOf(ranked[a]) > scoreOf(ranked[b])
	})
	return ranked, true
}

// stableProductKey derives a cache key that survives position changes
// between searches: a provider identifier when available, else a hash of
// the URL without query string or fragment.
func stableProductKey(product domain.Product) string {
	specs := product.Specifications
	for _, field := range []string{"productId", "product_id", "sku", "mpn"} {
		if id := specs[field]; id != "" {
			return cachePrefixEnriched + "_id:" + id
		}
	}

	if product.URL != "" {
		base := product.URL
		if i := strings.IndexAny(base, "?#"); i >= 0 {
			base = base[:i]
		}
		sum := sha256.Sum256([]byte(base))
		return cachePrefixEnriched + "_urlhash:" + hex.EncodeToString(sum[:])
	}

	return cachePrefixEnriched + "_unstable:" + product.ID
}

// rankingCacheKey combines the query with a digest of the product set so a
// different result set never reuses stale scores.
func rankingCacheKey(query string, products []domain.Product) string {
	keys := make([]string, len(products))
	for i, p := range products {
		keys[i] = stableProductKey(p)
	}
	sort.Strings(keys)

	sum := sha256.Sum256([]byte(strings.Join(keys, "|")))
	return cachePrefixRanking + ":" + strings.ToLower(query) + ":" + hex.EncodeToString(sum[:8])
}
