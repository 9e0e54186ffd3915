// Package knowledge provides the knowledge-base retriever the stages
// consult before calling the model. The backing store is chromem-go, an
// embedded vector database, with an injectable embedding function.
package knowledge

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Document is one knowledge-base entry, typically a runbook excerpt or
// a resolved historical ticket.
type Document struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Source   string  `json:"source"`
	Category string  `json:"category,omitempty"`
	Score    float32 `json:"score,omitempty"`
}

// Retriever returns the documents most relevant to a query, optionally
// filtered by ticket category.
type Retriever interface {
	Retrieve(ctx context.Context, query, category string, topK int) ([]Document, error)
}

const collectionName = "knowledge"

// Store is a chromem-backed Retriever. Vectors live in memory; the
// store is process-lifetime and safe for concurrent use.
type Store struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc

	mu  sync.Mutex
	col *chromem.Collection
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithEmbedding replaces the embedding function. The default is a
// deterministic local embedding that needs no external service.
func WithEmbedding(embed chromem.EmbeddingFunc) StoreOption {
	return func(s *Store) {
		s.embed = embed
	}
}

// NewStore creates an empty in-memory knowledge store.
func NewStore(opts ...StoreOption) (*Store, error) {
	s := &Store{
		db:    chromem.NewDB(),
		embed: localEmbedding,
	}
	for _, opt := range opts {
		opt(s)
	}

	col, err := s.db.GetOrCreateCollection(collectionName, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	s.col = col
	return s, nil
}

// Add indexes documents into the store.
func (s *Store) Add(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}

	entries := make([]chromem.Document, 0, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = fmt.Sprintf("doc-%d-%d", s.count(), i)
		}
		entries = append(entries, chromem.Document{
			ID:      id,
			Content: d.Content,
			Metadata: map[string]string{
				"source":   d.Source,
				"category": d.Category,
			},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.AddDocuments(ctx, entries, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to index documents: %w", err)
	}
	slog.Debug("knowledge documents indexed", "count", len(entries))
	return nil
}

// Retrieve returns up to topK documents relevant to the query. An empty
// store yields no documents, not an error.
func (s *Store) Retrieve(ctx context.Context, query, category string, topK int) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.col.Count()
	if n == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	var where map[string]string
	if category != "" {
		where = map[string]string{"category": category}
	}

	// chromem rejects asking for more results than the filter matches,
	// so shrink topK before abandoning the filter entirely.
	results, err := s.col.Query(ctx, query, topK, where, nil)
	for err != nil && where != nil && topK > 1 {
		topK--
		results, err = s.col.Query(ctx, query, topK, where, nil)
	}
	if err != nil && where != nil {
		results, err = s.col.Query(ctx, query, 1, nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge query failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, Document{
			ID:       r.ID,
			Content:  r.Content,
			Source:   r.Metadata["source"],
			Category: r.Metadata["category"],
			Score:    r.Similarity,
		})
	}
	return docs, nil
}

func (s *Store) count() int {
	return s.col.Count()
}

// localEmbedding maps text to a fixed-size bag-of-trigrams vector. It is
// deterministic and cheap, adequate for keyword-flavored retrieval over
// runbooks without an external embedding service.
func localEmbedding(_ context.Context, text string) ([]float32, error) {
	const dims = 256

	vec := make([]float32, dims)
	runes := []rune(strings.ToLower(text))
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
