package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/atlaschat/core/internal/domain"
)

// HTTPBackend talks to a single remote RAG service over plain HTTP,
// exposing its own discovery and query endpoints. This is the backend
// used for data sources owned by a first-party retrieval service rather
// than an MCP server.
type HTTPBackend struct {
	serverName string
	baseURL    string
	client     *http.Client
	headers    map[string]string
}

// NewHTTPBackend wires an HTTP RAG backend. baseURL must expose
// GET {baseURL}/sources?user=...&compliance=... and
// POST {baseURL}/query with {source, user, messages}.
func NewHTTPBackend(serverName, baseURL string, headers map[string]string) *HTTPBackend {
	return &HTTPBackend{
		serverName: serverName,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		headers:    headers,
	}
}

func (b *HTTPBackend) ServerName() string { return b.serverName }

func (b *HTTPBackend) DiscoverSources(ctx context.Context, user, compliance string) (ServerSources, error) {
	url := fmt.Sprintf("%s/sources?user=%s&compliance=%s", b.baseURL, user, compliance)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ServerSources{}, err
	}
	b.applyHeaders(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return ServerSources{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ServerSources{}, err
	}
	if resp.StatusCode >= 400 {
		return ServerSources{}, fmt.Errorf("rag: http backend %s returned %d", b.serverName, resp.StatusCode)
	}

	parsed := gjson.ParseBytes(body)
	out := ServerSources{
		Server:          b.serverName,
		DisplayName:     parsed.Get("displayName").String(),
		Icon:            parsed.Get("icon").String(),
		ComplianceLevel: parsed.Get("complianceLevel").String(),
	}
	for _, s := range parsed.Get("sources").Array() {
		out.Sources = append(out.Sources, DataSource{
			ID:              s.Get("id").String(),
			Name:            s.Get("name").String(),
			Label:           s.Get("label").String(),
			Description:     s.Get("description").String(),
			ComplianceLevel: s.Get("complianceLevel").String(),
		})
	}
	return out, nil
}

func (b *HTTPBackend) Query(ctx context.Context, sourceID, user string, messages []domain.Message) (Response, error) {
	payload, err := json.Marshal(map[string]any{
		"source":   sourceID,
		"user":     user,
		"messages": messages,
	})
	if err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	b.applyHeaders(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	if resp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("rag: http backend %s query returned %d", b.serverName, resp.StatusCode)
	}

	parsed := gjson.ParseBytes(body)
	r := Response{
		Content:    parsed.Get("content").String(),
		IsComplete: parsed.Get("is_completion").Bool(),
	}
	if md := parsed.Get("metadata"); md.Exists() {
		var m map[string]any
		if err := json.Unmarshal([]byte(md.Raw), &m); err == nil {
			r.Metadata = m
		}
	}
	return r, nil
}

func (b *HTTPBackend) applyHeaders(req *http.Request) {
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
}
