package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shopagent/backend/internal/domain"
)

// stubLLM returns canned responses for completion and embedding calls.
type stubLLM struct {
	generateFunc func(prompt string, opts domain.GenerateOptions) (string, error)
	embedFunc    func(texts []string) ([][]float32, error)

	mu       sync.Mutex
	prompts  []string
	embedded [][]string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.generateFunc == nil {
		return "", domain.ErrLLMFailure
	}
	return s.generateFunc(prompt, opts)
}

func (s *stubLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.embedded = append(s.embedded, texts)
	s.mu.Unlock()
	if s.embedFunc == nil {
		return nil, domain.ErrLLMFailure
	}
	return s.embedFunc(texts)
}

// stubProvider returns a fixed record list or error.
type stubProvider struct {
	records []domain.RawRecord
	err     error
	queries []string
}

func (s *stubProvider) Search(ctx context.Context, query string, numResults int) ([]domain.RawRecord, error) {
	s.queries = append(s.queries, query)
	return s.records, s.err
}

// stubEnricher applies a configurable transform to each product.
type stubEnricher struct {
	mu       sync.Mutex
	enriched []string
	apply    func(domain.Product) domain.Product
}

func (s *stubEnricher) EnrichProduct(ctx context.Context, product domain.Product) domain.Product {
	s.mu.Lock()
	s.enriched = append(s.enriched, product.ID)
	s.mu.Unlock()
	if s.apply == nil {
		return product
	}
	return s.apply(product)
}

func (s *stubEnricher) GetSpecs(ctx context.Context, productID, productURL, name string) map[string]string {
	return map[string]string{}
}

// stubRanker reverses the input so reordering is observable.
type stubRanker struct {
	calls int
}

func (s *stubRanker) Rank(ctx context.Context, query string, products []domain.Product) []domain.Product {
	s.calls++
	ranked := make([]domain.Product, len(products))
	for i, p := range products {
		score := float64(i+1) / float64(len(products))
		p.RelevanceScore = &score
		ranked[len(products)-1-i] = p
	}
	return ranked
}

// stubCache is a minimal in-memory cache without TTL handling.
type stubCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string]string)}
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return value, nil
}

func (s *stubCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *stubCache) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *stubCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, _ := strconv.ParseInt(s.data[key], 10, 64)
	count++
	s.data[key] = strconv.FormatInt(count, 10)
	return count, nil
}

// stubUserRepo is an in-memory user repository for auth tests.
type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func (s *stubUserRepo) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return domain.ErrUserExists
	}
	stored := *user
	s.users[user.Email] = &stored
	return nil
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}
