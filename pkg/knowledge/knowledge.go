// Package knowledge stores the business knowledge base consulted during
// calls: service and product documents indexed by embedding similarity.
//
// Documents and their embedding vectors are persisted together, so a
// store reopened from disk rebuilds its vector indexes without calling
// the embedding API again.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/solutionstwo/voicebridge/pkg/embed"
	"github.com/solutionstwo/voicebridge/pkg/kv"
	"github.com/solutionstwo/voicebridge/pkg/vecstore"
)

// Document categories. Each category has its own vector index.
const (
	CategoryServices = "services"
	CategoryProducts = "products"
)

// ErrUnknownCategory is returned for categories outside the known set.
var ErrUnknownCategory = errors.New("knowledge: unknown category")

// kbPrefix is the KV namespace for knowledge records.
const kbPrefix = "kb"

// Document is a knowledge base entry.
type Document struct {
	ID          string            `msgpack:"id" json:"id,omitzero"`
	Name        string            `msgpack:"name" json:"name"`
	Description string            `msgpack:"description" json:"description"`
	Price       string            `msgpack:"price" json:"price,omitzero"`
	Type        string            `msgpack:"type" json:"type,omitzero"`
	Metadata    map[string]string `msgpack:"metadata,omitempty" json:"metadata,omitzero"`
}

// record is the persisted form of a document: the document plus its
// embedding, so reopening never re-embeds.
type record struct {
	Doc       Document  `msgpack:"doc"`
	Embedding []float32 `msgpack:"embedding"`
}

// Provider is the retrieval interface the tool dispatcher consumes.
type Provider interface {
	// AddDocument embeds and persists a document in a category. A
	// document with an existing ID is replaced.
	AddDocument(ctx context.Context, category string, doc Document) (string, error)

	// RetrieveSimilar returns up to topK documents similar to the
	// query, formatted one per line for model consumption.
	RetrieveSimilar(ctx context.Context, query, category string, topK int) (string, error)
}

// Store is the kv-backed Provider.
type Store struct {
	store    kv.Store
	embedder embed.Embedder

	mu      sync.RWMutex
	indexes map[string]*vecstore.Memory
}

// Open creates a Store over the given kv store and loads every persisted
// document into its category's vector index.
func Open(ctx context.Context, store kv.Store, embedder embed.Embedder) (*Store, error) {
	s := &Store{
		store:    store,
		embedder: embedder,
		indexes: map[string]*vecstore.Memory{
			CategoryServices: vecstore.NewMemory(),
			CategoryProducts: vecstore.NewMemory(),
		},
	}

	for entry, err := range store.List(ctx, kv.Key{kbPrefix}) {
		if err != nil {
			return nil, fmt.Errorf("knowledge: load: %w", err)
		}
		// Key shape is [kb, category, id].
		if len(entry.Key) != 3 {
			continue
		}
		category := entry.Key[1]
		index, ok := s.indexes[category]
		if !ok {
			continue
		}
		var rec record
		if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
			return nil, fmt.Errorf("knowledge: decode %s: %w", entry.Key, err)
		}
		if err := index.Insert(rec.Doc.ID, rec.Embedding); err != nil {
			return nil, fmt.Errorf("knowledge: index %s: %w", rec.Doc.ID, err)
		}
	}
	return s, nil
}

// AddDocument embeds and persists a document. Returns the document ID,
// generated when the document has none.
func (s *Store) AddDocument(ctx context.Context, category string, doc Document) (string, error) {
	index, err := s.index(category)
	if err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	vector, err := s.embedder.Embed(ctx, embedText(category, doc))
	if err != nil {
		return "", fmt.Errorf("knowledge: embed document: %w", err)
	}

	data, err := msgpack.Marshal(record{Doc: doc, Embedding: vector})
	if err != nil {
		return "", fmt.Errorf("knowledge: encode document: %w", err)
	}
	if err := s.store.Set(ctx, kv.Key{kbPrefix, category, doc.ID}, data); err != nil {
		return "", fmt.Errorf("knowledge: persist document: %w", err)
	}
	if err := index.Insert(doc.ID, vector); err != nil {
		return "", fmt.Errorf("knowledge: index document: %w", err)
	}
	return doc.ID, nil
}

// RetrieveSimilar embeds the query, searches the category index and
// formats the matched documents.
func (s *Store) RetrieveSimilar(ctx context.Context, query, category string, topK int) (string, error) {
	index, err := s.index(category)
	if err != nil {
		return "", err
	}
	if topK <= 0 {
		topK = 5
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("knowledge: embed query: %w", err)
	}
	matches, err := index.Search(vector, topK)
	if err != nil {
		return "", fmt.Errorf("knowledge: search: %w", err)
	}
	if len(matches) == 0 {
		return "No matching records found.", nil
	}

	lines := make([]string, 0, len(matches))
	for _, match := range matches {
		data, err := s.store.Get(ctx, kv.Key{kbPrefix, category, match.ID})
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return "", fmt.Errorf("knowledge: load %s: %w", match.ID, err)
		}
		var rec record
		if err := msgpack.Unmarshal(data, &rec); err != nil {
			return "", fmt.Errorf("knowledge: decode %s: %w", match.ID, err)
		}
		lines = append(lines, formatDocument(rec.Doc))
	}
	return strings.Join(lines, "\n"), nil
}

// Len returns the number of indexed documents in a category.
func (s *Store) Len(category string) int {
	index, err := s.index(category)
	if err != nil {
		return 0
	}
	return index.Len()
}

func (s *Store) index(category string) (*vecstore.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index, ok := s.indexes[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return index, nil
}

// embedText builds the text embedded for a document. Products include
// their type; services are described by name, description and price only.
func embedText(category string, doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s, Description: %s, Price: %s", doc.Name, doc.Description, doc.Price)
	if category == CategoryProducts && doc.Type != "" {
		fmt.Fprintf(&b, ", Type: %s", doc.Type)
	}
	return b.String()
}

func formatDocument(doc Document) string {
	return fmt.Sprintf("Name: %s, Description: %s, Price: %s", doc.Name, doc.Description, doc.Price)
}
