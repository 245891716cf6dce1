// Package vectorindex provides a small in-memory flat vector index with
// exact L2 nearest-neighbor search. It is the similarity backend for the
// vector-based ranking path.
package vectorindex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopagent/backend/internal/domain"
)

// Match is one nearest-neighbor result: the position of the stored vector
// and its squared L2 distance to the query.
type Match struct {
	Index    int
	Distance float64
}

// FlatIndex stores raw vectors and scans all of them on every search.
// Exact results, no approximation. Suited to the small per-query batches
// the ranking path produces.
type FlatIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimension int) (*FlatIndex, error) {
	if dimension <= 0 {
		return nil, &domain.ValidationError{
			Field:   "dimension",
			Message: fmt.Sprintf("must be positive, got %d", dimension),
		}
	}
	return &FlatIndex{dimension: dimension}, nil
}

// Dimension returns the vector dimension the index accepts.
func (idx *FlatIndex) Dimension() int {
	return idx.dimension
}

// Len returns the number of stored vectors.
func (idx *FlatIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Reset removes all stored vectors.
func (idx *FlatIndex) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors = nil
}

// Add appends vectors to the index. All vectors are validated before any
// of them is stored, so a failed call leaves the index unchanged.
func (idx *FlatIndex) Add(vectors [][]float32) error {
	for i, vec := range vectors {
		if len(vec) != idx.dimension {
			return &domain.ValidationError{
				Field:   "vectors",
				Message: fmt.Sprintf("vector %d has dimension %d, index expects %d", i, len(vec), idx.dimension),
			}
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors = append(idx.vectors, vectors...)
	return nil
}

// Search returns the k stored vectors nearest to query by squared L2
// distance, closest first. Ties keep insertion order. k larger than the
// index size returns everything.
func (idx *FlatIndex) Search(query []float32, k int) ([]Match, error) {
	if len(query) != idx.dimension {
		return nil, &domain.ValidationError{
			Field:   "query",
			Message: fmt.Sprintf("query has dimension %d, index expects %d", len(query), idx.dimension),
		}
	}
	if k <= 0 {
		return nil, &domain.ValidationError{
			Field:   "k",
			Message: fmt.Sprintf("must be positive, got %d", k),
		}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]Match, len(idx.vectors))
	for i, vec := range idx.vectors {
		matches[i] = Match{Index: i, Distance: squaredL2(query, vec)}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Distance < matches[b].Distance
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
