package processor

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/objectfs/objectfs/pkg/errors"
)

// IndexType selects the storage strategy for a vector index (spec §4.G
// "vector_index").
type IndexType string

const (
	// IndexSimple keeps embeddings in memory with brute-force cosine scan.
	IndexSimple IndexType = "simple"
	// IndexVector delegates to an external vector database; out of scope
	// here beyond the interface (spec Non-goals).
	IndexVector IndexType = "vector"
)

// Embedder produces a caption and an embedding vector for image bytes. A
// concrete implementation calls out to an external AI service; this
// package only depends on the interface (spec §4.G "AI describe-image and
// embed interfaces, no concrete backend").
type Embedder interface {
	DescribeImage(ctx context.Context, data []byte) (caption string, err error)
	Embed(ctx context.Context, text string) (vector []float32, err error)
}

type indexEntry struct {
	path      string
	caption   string
	embedding []float32
}

// VectorIndex maintains one named index per bucket (commonly a mount
// path) and answers create/destroy lifecycle calls as a processor.
type VectorIndex struct {
	embedder Embedder

	mu      sync.Mutex
	indexes map[string][]indexEntry
}

// NewVectorIndex creates a VectorIndex using embedder for describe/embed
// calls. embedder may be nil if only create/destroy lifecycle operations
// are exercised (e.g. in tests).
func NewVectorIndex(embedder Embedder) *VectorIndex {
	return &VectorIndex{embedder: embedder, indexes: make(map[string][]indexEntry)}
}

// Process indexes or removes srcName from config["bucket"] depending on
// config["action"] ("index" or "remove"); it never produces a file.
func (v *VectorIndex) Process(ctx context.Context, data []byte, srcName string, config map[string]any) ([]byte, bool, error) {
	bucket, _ := config["bucket"].(string)
	if bucket == "" {
		bucket = "default"
	}
	action, _ := config["action"].(string)

	switch action {
	case "remove":
		v.remove(bucket, srcName)
		return nil, false, nil
	default:
		return nil, false, v.index(ctx, bucket, srcName, data)
	}
}

func (v *VectorIndex) index(ctx context.Context, bucket, path string, data []byte) error {
	if v.embedder == nil {
		return errors.NotImplemented("vector_index", "describe-image/embed backend not configured")
	}
	caption, err := v.embedder.DescribeImage(ctx, data)
	if err != nil {
		return errors.UpstreamError("vector_index", "describe_image", 502, err.Error())
	}
	vec, err := v.embedder.Embed(ctx, caption)
	if err != nil {
		return errors.UpstreamError("vector_index", "embed", 502, err.Error())
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	entries := v.indexes[bucket]
	for i, e := range entries {
		if e.path == path {
			entries[i] = indexEntry{path: path, caption: caption, embedding: vec}
			return nil
		}
	}
	v.indexes[bucket] = append(entries, indexEntry{path: path, caption: caption, embedding: vec})
	return nil
}

func (v *VectorIndex) remove(bucket, path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries := v.indexes[bucket]
	for i, e := range entries {
		if e.path == path {
			v.indexes[bucket] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// CreateIndex registers an empty bucket, matching the API's explicit
// index lifecycle rather than implicitly creating one on first write.
func (v *VectorIndex) CreateIndex(bucket string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.indexes[bucket]; exists {
		return errors.AlreadyExists("vector_index", "index "+bucket+" already exists")
	}
	v.indexes[bucket] = nil
	return nil
}

// DestroyIndex removes a bucket and all of its entries.
func (v *VectorIndex) DestroyIndex(bucket string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.indexes[bucket]; !exists {
		return errors.NotFound("vector_index", "index "+bucket+" not found")
	}
	delete(v.indexes, bucket)
	return nil
}

// Search returns the paths of the k most similar entries to query by
// brute-force cosine similarity (IndexSimple strategy).
func (v *VectorIndex) Search(ctx context.Context, bucket, query string, k int) ([]string, error) {
	if v.embedder == nil {
		return nil, errors.NotImplemented("vector_index", "describe-image/embed backend not configured")
	}
	qVec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.UpstreamError("vector_index", "embed", 502, err.Error())
	}

	v.mu.Lock()
	entries := append([]indexEntry(nil), v.indexes[bucket]...)
	v.mu.Unlock()

	ranked := make([]scoredEntry, len(entries))
	for i, e := range entries {
		ranked[i] = scoredEntry{path: e.path, score: cosineSimilarity(qVec, e.embedding)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].path
	}
	return out, nil
}

type scoredEntry struct {
	path  string
	score float32
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
