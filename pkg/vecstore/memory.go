package vecstore

import (
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force cosine-distance Index. It scales to the small
// per-business catalogs voicebridge serves (hundreds of documents); swap
// in an external index beyond that.
//
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{vectors: make(map[string][]float32)}
}

func (m *Memory) Insert(id string, vector []float32) error {
	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.mu.Lock()
	m.vectors[id] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Search(query []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.vectors) == 0 || topK <= 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(m.vectors))
	for id, vec := range m.vectors {
		matches = append(matches, Match{ID: id, Distance: CosineDistance(query, vec)})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	delete(m.vectors, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func (m *Memory) Close() error {
	return nil
}

var _ Index = (*Memory)(nil)

// CosineDistance computes the cosine distance between two vectors:
// 0 means identical direction, 2 means opposite. Mismatched dimensions
// and zero-norm vectors yield the maximum distance.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 2
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return float32(1 - sim)
}
