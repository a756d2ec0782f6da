package rag

import (
	"context"
	"testing"

	"github.com/atlaschat/core/internal/domain"
)

type fakeBackend struct {
	name    string
	sources ServerSources
	resp    Response
	err     error
	queried string
}

func (f *fakeBackend) ServerName() string { return f.name }

func (f *fakeBackend) DiscoverSources(ctx context.Context, user, compliance string) (ServerSources, error) {
	return f.sources, f.err
}

func (f *fakeBackend) Query(ctx context.Context, sourceID, user string, messages []domain.Message) (Response, error) {
	f.queried = sourceID
	return f.resp, f.err
}

func TestDiscoverDataSources_AggregatesAcrossBackends(t *testing.T) {
	a := NewAggregator(
		&fakeBackend{name: "docs", sources: ServerSources{Server: "docs", DisplayName: "Docs", Sources: []DataSource{{ID: "handbook"}}}},
		&fakeBackend{name: "wiki", sources: ServerSources{Server: "wiki", DisplayName: "Wiki"}},
	)

	out := a.DiscoverDataSources(context.Background(), "user@example.com", "")
	if len(out) != 2 {
		t.Fatalf("expected 2 server groups, got %d", len(out))
	}
}

func TestDiscoverDataSources_SkipsFailingBackend(t *testing.T) {
	a := NewAggregator(
		&fakeBackend{name: "broken", err: errBoom},
		&fakeBackend{name: "ok", sources: ServerSources{Server: "ok"}},
	)

	out := a.DiscoverDataSources(context.Background(), "user@example.com", "")
	if len(out) != 1 || out[0].Server != "ok" {
		t.Fatalf("expected only the healthy backend's sources, got %+v", out)
	}
}

func TestQueryRAG_RoutesToOwningBackend(t *testing.T) {
	docs := &fakeBackend{name: "docs", resp: Response{Content: "answer", IsComplete: true}}
	a := NewAggregator(docs, &fakeBackend{name: "wiki"})

	resp, err := a.QueryRAG(context.Background(), "docs:handbook", "user@example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "answer" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if docs.queried != "handbook" {
		t.Errorf("expected unqualified source id %q routed to backend, got %q", "handbook", docs.queried)
	}
}

func TestQueryRAG_UnknownServer_ReturnsPermissionError(t *testing.T) {
	a := NewAggregator(&fakeBackend{name: "docs"})

	_, err := a.QueryRAG(context.Background(), "missing:source", "user@example.com", nil)
	if err == nil {
		t.Fatal("expected an error for an unregistered server")
	}
}

func TestQueryRAG_MalformedQualifiedID_ReturnsError(t *testing.T) {
	a := NewAggregator(&fakeBackend{name: "docs"})

	_, err := a.QueryRAG(context.Background(), "not-qualified", "user@example.com", nil)
	if err == nil {
		t.Fatal("expected an error for a qualified id missing the \":\" separator")
	}
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
