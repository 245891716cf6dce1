package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Values are stored as
// strings (JSON-encoded payloads) to keep memory and Redis backends identical.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments a counter key, setting ttl on first use.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// SearchProvider fetches raw shopping records for a query from an external
// results API. An empty result list is not an error.
type SearchProvider interface {
	Search(ctx context.Context, query string, numResults int) ([]RawRecord, error)
}

// GenerateOptions controls a single language-model completion call.
type GenerateOptions struct {
	Model     string
	MaxTokens int
	// JSONMode requests a JSON-object response from the model. The prompt
	// must still instruct the model to produce JSON.
	JSONMode bool
}

// LLMClient is the contract the pipeline needs from the language-model
// provider. Output is always treated as untrusted text.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Enricher fills gaps in a product with page-level specifications.
// EnrichProduct never fails: on any error it returns the product unchanged.
type Enricher interface {
	EnrichProduct(ctx context.Context, product Product) Product
	GetSpecs(ctx context.Context, productID, productURL, name string) map[string]string
}

// Ranker reorders products by relevance to the query. The returned list
// always has the same length as the input.
type Ranker interface {
	Rank(ctx context.Context, query string, products []Product) []Product
}

// UserRepository persists registered users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}
