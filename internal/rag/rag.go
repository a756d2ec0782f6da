// Package rag implements the RAG Aggregator (spec §4/§6, C6): discovering
// data sources across HTTP, MCP, and embedded backends, and routing a
// query to whichever backend owns the requested qualified source.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlaschat/core/internal/domain"
)

// DataSource is one retrievable corpus advertised by a backend.
type DataSource struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Label           string `json:"label"`
	Description     string `json:"description,omitempty"`
	ComplianceLevel string `json:"complianceLevel,omitempty"`
}

// ServerSources groups a backend's data sources under its display
// identity (spec §6's discover_data_sources return shape).
type ServerSources struct {
	Server          string       `json:"server"`
	DisplayName     string       `json:"displayName"`
	Icon            string       `json:"icon,omitempty"`
	ComplianceLevel string       `json:"complianceLevel,omitempty"`
	Sources         []DataSource `json:"sources"`
}

// Response is the outcome of a query_rag call (spec §6).
type Response struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IsComplete bool           `json:"is_completion"`
}

// Backend is one federated RAG provider (HTTP, MCP-wrapped, or an
// embedded local corpus). Aggregator fans discovery out across every
// registered Backend and routes a query to the one owning its source.
type Backend interface {
	// ServerName is the backend's own identity, the "<server>" half of a
	// qualified "server:source" data source ID.
	ServerName() string
	DiscoverSources(ctx context.Context, user string, compliance string) (ServerSources, error)
	Query(ctx context.Context, sourceID string, user string, messages []domain.Message) (Response, error)
}

// Aggregator is the concrete UnifiedRAGService (spec §6).
type Aggregator struct {
	backends map[string]Backend
}

// NewAggregator builds an Aggregator over the given backends, keyed by
// their own ServerName.
func NewAggregator(backends ...Backend) *Aggregator {
	a := &Aggregator{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		a.backends[b.ServerName()] = b
	}
	return a
}

// DiscoverDataSources fans discovery out across every registered backend,
// tolerating individual backend failures (a failed backend is omitted,
// not fatal to the overall call) — an inoperative RAG backend must not
// prevent the user from seeing the sources the other backends expose.
func (a *Aggregator) DiscoverDataSources(ctx context.Context, user string, compliance string) []ServerSources {
	out := make([]ServerSources, 0, len(a.backends))
	for _, backend := range a.backends {
		sources, err := backend.DiscoverSources(ctx, user, compliance)
		if err != nil {
			continue
		}
		out = append(out, sources)
	}
	return out
}

// QueryRAG routes a qualified "server:source" identifier to its owning
// backend (spec §6: "qualified identifiers use `:` as separator").
func (a *Aggregator) QueryRAG(ctx context.Context, qualifiedSourceID, user string, messages []domain.Message) (Response, error) {
	server, sourceID, err := splitQualified(qualifiedSourceID)
	if err != nil {
		return Response{}, err
	}
	backend, ok := a.backends[server]
	if !ok {
		return Response{}, domain.NewDataSourcePermissionError(qualifiedSourceID)
	}
	return backend.Query(ctx, sourceID, user, messages)
}

func splitQualified(id string) (server, source string, err error) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("rag: malformed qualified data source id %q, expected \"server:source\"", id)
	}
	return parts[0], parts[1], nil
}
