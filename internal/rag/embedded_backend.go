package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/atlaschat/core/internal/domain"
)

// EmbeddedDocument seeds one retrievable passage of a local corpus.
type EmbeddedDocument struct {
	ID      string
	Content string
}

// EmbeddedSource is one named corpus served entirely in-process via
// chromem-go, with no external RAG service to call — the "embedded"
// backend variant named in spec §9 (alongside HTTP-only and MCP-wrapped).
type EmbeddedSource struct {
	ID          string
	Name        string
	Label       string
	Description string
	Documents   []EmbeddedDocument
}

// EmbeddedBackend implements Backend over a set of local chromem-go
// collections, one per EmbeddedSource, using a deterministic bag-of-words
// hashing embedding so the corpus works fully offline without a call out
// to an embeddings API.
type EmbeddedBackend struct {
	serverName  string
	displayName string
	db          *chromem.DB

	mu         sync.RWMutex
	sources    map[string]EmbeddedSource
	collection map[string]*chromem.Collection
}

// NewEmbeddedBackend builds an embedded backend and indexes every source's
// documents into its own chromem-go collection at construction time.
func NewEmbeddedBackend(ctx context.Context, serverName, displayName string, sources []EmbeddedSource) (*EmbeddedBackend, error) {
	b := &EmbeddedBackend{
		serverName:  serverName,
		displayName: displayName,
		db:          chromem.NewDB(),
		sources:     make(map[string]EmbeddedSource, len(sources)),
		collection:  make(map[string]*chromem.Collection, len(sources)),
	}

	for _, source := range sources {
		b.sources[source.ID] = source

		col, err := b.db.GetOrCreateCollection(source.ID, nil, hashEmbeddingFunc)
		if err != nil {
			return nil, fmt.Errorf("rag: embedded backend %s: create collection %s: %w", serverName, source.ID, err)
		}
		docs := make([]chromem.Document, 0, len(source.Documents))
		for _, d := range source.Documents {
			docs = append(docs, chromem.Document{ID: d.ID, Content: d.Content})
		}
		if len(docs) > 0 {
			if err := col.AddDocuments(ctx, docs, 1); err != nil {
				return nil, fmt.Errorf("rag: embedded backend %s: index %s: %w", serverName, source.ID, err)
			}
		}
		b.collection[source.ID] = col
	}

	return b, nil
}

func (b *EmbeddedBackend) ServerName() string { return b.serverName }

func (b *EmbeddedBackend) DiscoverSources(ctx context.Context, user, compliance string) (ServerSources, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := ServerSources{Server: b.serverName, DisplayName: b.displayName}
	for _, s := range b.sources {
		out.Sources = append(out.Sources, DataSource{ID: s.ID, Name: s.Name, Label: s.Label, Description: s.Description})
	}
	return out, nil
}

// Query runs a similarity search seeded from the latest user message
// against the named source's collection, concatenating the top matches
// into a single context block.
func (b *EmbeddedBackend) Query(ctx context.Context, sourceID, user string, messages []domain.Message) (Response, error) {
	b.mu.RLock()
	col, ok := b.collection[sourceID]
	b.mu.RUnlock()
	if !ok {
		return Response{}, domain.NewDataSourcePermissionError(b.serverName + ":" + sourceID)
	}

	query := latestUserContent(messages)
	if query == "" {
		return Response{Content: "", IsComplete: true}, nil
	}

	n := col.Count()
	if n == 0 {
		return Response{Content: "", IsComplete: true}, nil
	}
	topK := 3
	if topK > n {
		topK = n
	}

	results, err := col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return Response{}, fmt.Errorf("rag: embedded backend %s query failed: %w", b.serverName, err)
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(r.Content)
	}

	return Response{
		Content:    sb.String(),
		Metadata:   map[string]any{"source": sourceID, "matches": len(results)},
		IsComplete: true,
	}, nil
}

func latestUserContent(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// hashEmbeddingFunc produces a small deterministic vector from a
// document's token set so the embedded backend can run fully offline,
// with no external embeddings API call (chromem-go requires some
// EmbeddingFunc to index/search a collection).
func hashEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	const dims = 64
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%dims]++
	}
	normalize(vec)
	return vec, nil
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
