package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopagent/backend/internal/domain"
	"github.com/shopagent/backend/internal/infrastructure/vectorindex"
	"go.uber.org/zap"
)

// VectorRankerService is the geometric alternative to the LLM ranker: it
// orders products by embedding distance to the query. Built for batch use
// with precomputed embeddings; unlike the LLM path, malformed input fails
// loudly with a validation error.
type VectorRankerService struct {
	index  *vectorindex.FlatIndex
	llm    domain.LLMClient
	logger *zap.Logger
}

// NewVectorRankerService creates a vector ranker with a flat index of the
// given dimension.
func NewVectorRankerService(dimension int, llm domain.LLMClient, logger *zap.Logger) (*VectorRankerService, error) {
	index, err := vectorindex.NewFlatIndex(dimension)
	if err != nil {
		return nil, err
	}
	return &VectorRankerService{
		index:  index,
		llm:    llm,
		logger: logger,
	}, nil
}

// RankByVectors returns the topK products nearest to queryVector, each
// annotated with a normalized similarity score. productVectors and products
// must be parallel arrays. The index is repopulated on every call, so
// callers must not interleave concurrent batches.
//
// All inputs are validated before the index is touched; a validation
// failure leaves the previous index contents intact.
func (s *VectorRankerService) RankByVectors(queryVector []float32, productVectors [][]float32, products []domain.Product, topK int) ([]domain.VectorMatch, error) {
	if len(productVectors) != len(products) {
		return nil, &domain.ValidationError{
			Field:   "productVectors",
			Message: fmt.Sprintf("got %d vectors for %d products", len(productVectors), len(products)),
		}
	}
	if len(queryVector) != s.index.Dimension() {
		return nil, &domain.ValidationError{
			Field:   "queryVector",
			Message: fmt.Sprintf("dimension %d, index expects %d", len(queryVector), s.index.Dimension()),
		}
	}
	for i, vec := range productVectors {
		if len(vec) != s.index.Dimension() {
			return nil, &domain.ValidationError{
				Field:   "productVectors",
				Message: fmt.Sprintf("vector %d has dimension %d, index expects %d", i, len(vec), s.index.Dimension()),
			}
		}
	}
	if topK <= 0 {
		return nil, &domain.ValidationError{
			Field:   "topK",
			Message: fmt.Sprintf("must be positive, got %d", topK),
		}
	}
	if len(products) == 0 {
		return []domain.VectorMatch{}, nil
	}

	s.index.Reset()
	if err := s.index.Add(productVectors); err != nil {
		return nil, err
	}

	matches, err := s.index.Search(queryVector, topK)
	if err != nil {
		return nil, err
	}

	total := len(products)
	results := make([]domain.VectorMatch, len(matches))
	for rank, match := range matches {
		results[rank] = domain.VectorMatch{
			Product: products[match.Index],
			Score:   1.0 - float64(rank)/float64(total),
		}
	}
	return results, nil
}

// EmbedAndRank embeds the query and product texts with the language-model
// provider and ranks by vector distance. A convenience wrapper over
// RankByVectors for callers without precomputed embeddings.
func (s *VectorRankerService) EmbedAndRank(ctx context.Context, query string, products []domain.Product, topK int) ([]domain.VectorMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &domain.ValidationError{Field: "query", Message: "must not be empty"}
	}
	if len(products) == 0 {
		return []domain.VectorMatch{}, nil
	}

	texts := make([]string, 0, len(products)+1)
	texts = append(texts, query)
	for _, p := range products {
		texts = append(texts, embeddingText(p))
	}

	vectors, err := s.llm.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("embedded ranking batch",
		zap.String("query", query),
		zap.Int("products", len(products)))

	return s.RankByVectors(vectors[0], vectors[1:], products, topK)
}

// embeddingText builds the text representation of a product for embedding.
func embeddingText(p domain.Product) string {
	parts := []string{p.Title}
	if p.Brand != "" {
		parts = append(parts, p.Brand)
	}
	if p.Category != "" {
		parts = append(parts, p.Category)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	return strings.Join(parts, " | ")
}
