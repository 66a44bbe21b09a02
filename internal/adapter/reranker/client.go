package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ProviderNone   = "none"
	ProviderJina   = "jina"
	ProviderCohere = "cohere"
)

var endpoints = map[string]struct{ url, model string }{
	ProviderJina:   {"https://api.jina.ai/v1/rerank", "jina-reranker-v1-base-en"},
	ProviderCohere: {"https://api.cohere.ai/v1/rerank", "rerank-english-v3.0"},
}

// Client reorders retrieved passages with a hosted cross-encoder. The "none"
// provider returns the input order.
type Client struct {
	apiKey   string
	provider string
	client   *http.Client
	baseURL  string
}

func NewClient(provider, apiKey string) *Client {
	if provider == "" {
		provider = ProviderNone
	}
	return &Client{
		provider: provider,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether Rerank calls a remote service.
func (c *Client) Enabled() bool {
	_, ok := endpoints[c.provider]
	return ok
}

func (c *Client) Provider() string { return c.provider }

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *Client) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	ep, ok := endpoints[c.provider]
	if !ok || len(docs) == 0 {
		indices := make([]int, len(docs))
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	url := ep.url
	if c.baseURL != "" {
		url = c.baseURL
	}
	body := map[string]any{
		"model":     ep.model,
		"query":     query,
		"documents": docs,
	}
	if c.provider == ProviderCohere {
		body["top_n"] = len(docs)
		body["return_documents"] = false
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s api error: %d %s", c.provider, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", c.provider, err)
	}

	indices := make([]int, 0, len(docs))
	for _, r := range result.Results {
		if r.Index >= 0 && r.Index < len(docs) {
			indices = append(indices, r.Index)
		}
	}
	return indices, nil
}
