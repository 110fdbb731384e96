package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

// Client queries the Tavily search API for external medical references.
// Results are ephemeral: they carry web provenance and are handed straight
// to the pipeline, never written to the content store or the index.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Options struct {
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
}

func New(baseURL, apiKey string, options Options) *Client {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *Client) Search(ctx context.Context, query string, k int) ([]domain.DocumentRef, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "web search", fmt.Errorf("empty query"))
	}
	if k <= 0 {
		k = 3
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapError(domain.ErrSearchUnavailable, "web search rate limit", err)
	}

	body, err := json.Marshal(map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": k,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSearchUnavailable, "web search request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrSearchUnavailable, "web search",
			fmt.Errorf("unexpected status: %s", resp.Status))
	}

	var searchResp struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, domain.WrapError(domain.ErrSearchUnavailable, "decode web search response", err)
	}

	now := time.Now().UTC()
	refs := make([]domain.DocumentRef, 0, len(searchResp.Results))
	for i, r := range searchResp.Results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		refs = append(refs, domain.DocumentRef{
			DocumentID:  fmt.Sprintf("web:%s:%d", r.URL, i),
			Title:       r.Title,
			FullText:    r.Content,
			URL:         r.URL,
			Origin:      domain.ProvenanceWeb,
			RetrievedAt: now,
		})
		if len(refs) == k {
			break
		}
	}
	return refs, nil
}
