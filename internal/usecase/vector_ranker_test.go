package usecase

import (
	"context"
	"testing"

	"github.com/shopagent/backend/internal/domain"
	"go.uber.org/zap"
)

func newTestVectorRanker(t *testing.T, dim int, llm domain.LLMClient) *VectorRankerService {
	t.Helper()
	if llm == nil {
		llm = &stubLLM{}
	}
	svc, err := NewVectorRankerService(dim, llm, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVectorRankerService() error = %v", err)
	}
	return svc
}

func TestRankByVectors_OrdersByDistance(t *testing.T) {
	svc := newTestVectorRanker(t, 2, nil)
	products := testProducts("near", "far", "nearest")

	matches, err := svc.RankByVectors(
		[]float32{0, 0},
		[][]float32{{1, 0}, {5, 5}, {0.1, 0}},
		products,
		3,
	)
	if err != nil {
		t.Fatalf("RankByVectors() error = %v", err)
	}

	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Product.Title != "nearest" || matches[1].Product.Title != "near" || matches[2].Product.Title != "far" {
		t.Errorf("order = %q, %q, %q", matches[0].Product.Title, matches[1].Product.Title, matches[2].Product.Title)
	}

	// Scores descend linearly with rank: 1 - rank/total
	wantScores := []float64{1.0, 1.0 - 1.0/3.0, 1.0 - 2.0/3.0}
	for i, want := range wantScores {
		if matches[i].Score != want {
			t.Errorf("match %d score = %v, want %v", i, matches[i].Score, want)
		}
	}
}

func TestRankByVectors_TopKTruncates(t *testing.T) {
	svc := newTestVectorRanker(t, 1, nil)
	products := testProducts("a", "b", "c", "d")

	matches, err := svc.RankByVectors(
		[]float32{0},
		[][]float32{{1}, {2}, {3}, {4}},
		products,
		2,
	)
	if err != nil {
		t.Fatalf("RankByVectors() error = %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(matches))
	}
}

func TestRankByVectors_ValidationErrors(t *testing.T) {
	svc := newTestVectorRanker(t, 2, nil)
	products := testProducts("a", "b")

	tests := []struct {
		name    string
		query   []float32
		vectors [][]float32
		topK    int
	}{
		{"length mismatch", []float32{0, 0}, [][]float32{{1, 1}}, 2},
		{"query dimension mismatch", []float32{0, 0, 0}, [][]float32{{1, 1}, {2, 2}}, 2},
		{"product dimension mismatch", []float32{0, 0}, [][]float32{{1, 1}, {2}}, 2},
		{"non-positive topK", []float32{0, 0}, [][]float32{{1, 1}, {2, 2}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RankByVectors(tt.query, tt.vectors, products, tt.topK)
			if !domain.IsValidationError(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRankByVectors_FailedValidationLeavesIndexIntact(t *testing.T) {
	svc := newTestVectorRanker(t, 2, nil)
	products := testProducts("a", "b")

	_, err := svc.RankByVectors([]float32{0, 0}, [][]float32{{1, 1}, {2, 2}}, products, 2)
	if err != nil {
		t.Fatalf("seed ranking failed: %v", err)
	}
	if svc.index.Len() != 2 {
		t.Fatalf("expected 2 stored vectors, got %d", svc.index.Len())
	}

	// A malformed batch must not touch the populated index
	_, err = svc.RankByVectors([]float32{0, 0, 0}, [][]float32{{1, 1}, {2, 2}}, products, 2)
	if !domain.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if svc.index.Len() != 2 {
		t.Errorf("failed validation mutated the index: len = %d", svc.index.Len())
	}
}

func TestRankByVectors_EmptyProducts(t *testing.T) {
	svc := newTestVectorRanker(t, 2, nil)

	matches, err := svc.RankByVectors([]float32{0, 0}, nil, nil, 5)
	if err != nil {
		t.Fatalf("RankByVectors() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestEmbedAndRank(t *testing.T) {
	llm := &stubLLM{
		embedFunc: func(texts []string) ([][]float32, error) {
			// Query plus one vector per product; the second product sits
			// closest to the query.
			vectors := make([][]float32, len(texts))
			vectors[0] = []float32{0, 0}
			for i := 1; i < len(texts); i++ {
				vectors[i] = []float32{float32(len(texts) - i), 0}
			}
			return vectors, nil
		},
	}
	svc := newTestVectorRanker(t, 2, llm)
	products := testProducts("a", "b")

	matches, err := svc.EmbedAndRank(context.Background(), "query", products, 2)
	if err != nil {
		t.Fatalf("EmbedAndRank() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Product.Title != "b" {
		t.Errorf("expected closest product first, got %q", matches[0].Product.Title)
	}
}

func TestEmbedAndRank_EmptyQuery(t *testing.T) {
	svc := newTestVectorRanker(t, 2, nil)

	_, err := svc.EmbedAndRank(context.Background(), "   ", testProducts("a"), 1)
	if !domain.IsValidationError(err) {
		t.Errorf("expected validation error for blank query, got %v", err)
	}
}

func TestEmbedAndRank_EmbedFailure(t *testing.T) {
	svc := newTestVectorRanker(t, 2, &stubLLM{})

	_, err := svc.EmbedAndRank(context.Background(), "query", testProducts("a"), 1)
	if err == nil {
		t.Error("expected error when embedding fails")
	}
}
