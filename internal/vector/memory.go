package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// MemoryIndex is an in-memory index using brute-force cosine search per named vector.
// Suitable for corpora of a few thousand records.
type MemoryIndex[T any] struct {
	dimensions int
	ids        []string
	records    []T
	vectors    []map[string][]float32
	pos        map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex[T any](dimensions int) (*MemoryIndex[T], error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex[T]{
		dimensions: dimensions,
		pos:        make(map[string]int),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex[T]) Type() string {
	return string(IndexTypeMemory)
}

// Upsert stores record under id with copies of its non-empty vectors.
func (m *MemoryIndex[T]) Upsert(ctx context.Context, id string, record T, vectors map[string][]float32) error {
	named := make(map[string][]float32, len(vectors))
	for name, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if len(v) != m.dimensions {
			return fmt.Errorf("vector %q dimension mismatch: got %d, expected %d", name, len(v), m.dimensions)
		}
		named[name] = append([]float32(nil), v...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.pos[id]; ok {
		m.records[i] = record
		m.vectors[i] = named
		return nil
	}
	m.pos[id] = len(m.ids)
	m.ids = append(m.ids, id)
	m.records = append(m.records, record)
	m.vectors = append(m.vectors, named)
	return nil
}

// Search returns up to k records ranked by certainty in the named vector space.
// Records without that vector are skipped.
func (m *MemoryIndex[T]) Search(ctx context.Context, query []float32, vectorName string, k int) ([]models.VectorSearchResult[T], error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, 0, len(m.ids))
	for i, named := range m.vectors {
		vec, ok := named[vectorName]
		if !ok {
			continue
		}
		scores = append(scores, scored{idx: i, score: Certainty(Cosine(query, vec))})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}
	results := make([]models.VectorSearchResult[T], k)
	for i := 0; i < k; i++ {
		c := scores[i].score
		results[i] = models.VectorSearchResult[T]{
			ID:        m.ids[scores[i].idx],
			Record:    m.records[scores[i].idx],
			Certainty: &c,
		}
	}
	return results, nil
}

// Remove deletes records by ID.
func (m *MemoryIndex[T]) Remove(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	newIDs := make([]string, 0, len(m.ids))
	newRecords := make([]T, 0, len(m.records))
	newVectors := make([]map[string][]float32, 0, len(m.vectors))
	pos := make(map[string]int, len(m.ids))
	for i, id := range m.ids {
		if removeSet[id] {
			continue
		}
		pos[id] = len(newIDs)
		newIDs = append(newIDs, id)
		newRecords = append(newRecords, m.records[i])
		newVectors = append(newVectors, m.vectors[i])
	}
	m.ids, m.records, m.vectors, m.pos = newIDs, newRecords, newVectors, pos
	return nil
}

// Count returns the number of records in the index.
func (m *MemoryIndex[T]) Count(ctx context.Context) (int64, error) {
	return int64(m.Size()), nil
}

// Size returns the number of records in the index.
func (m *MemoryIndex[T]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
