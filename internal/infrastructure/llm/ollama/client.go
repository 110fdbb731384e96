package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/resilience"
)

// Client talks to a local ollama server. The four LLM capability uses
// (classify, judge, rewrite, synthesize) plus summarization and embedding
// are exposed as separate types over the shared client so each can be
// swapped independently.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Classifier implements the is-CBC-report gate.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) IsCBCReport(ctx context.Context, text string) (bool, error) {
	respText, err := c.client.generateJSON(ctx, "classify", buildClassifyPrompt(text))
	if err != nil {
		return false, err
	}

	var result struct {
		IsCBCReport bool `json:"is_cbc_report"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return false, fmt.Errorf("parse classification json: %w", err)
	}
	return result.IsCBCReport, nil
}

// Judge implements per-document binary relevance.
type Judge struct {
	client *Client
}

func NewJudge(client *Client) *Judge {
	return &Judge{client: client}
}

func (j *Judge) Judge(ctx context.Context, question string, doc domain.DocumentRef) (domain.Relevance, error) {
	respText, err := j.client.generateJSON(ctx, "judge", buildJudgePrompt(question, doc))
	if err != nil {
		return domain.RelevanceIrrelevant, err
	}

	var result struct {
		Relevant bool `json:"relevant"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.RelevanceIrrelevant, fmt.Errorf("parse judgment json: %w", err)
	}
	if result.Relevant {
		return domain.RelevanceRelevant, nil
	}
	return domain.RelevanceIrrelevant, nil
}

// Rewriter reformulates queries for web search.
type Rewriter struct {
	client *Client
}

func NewRewriter(client *Client) *Rewriter {
	return &Rewriter{client: client}
}

func (r *Rewriter) Rewrite(ctx context.Context, query domain.PatientQuery) (string, error) {
	rewritten, err := r.client.generateText(ctx, "rewrite", buildRewritePrompt(query))
	if err != nil {
		return "", err
	}
	rewritten = strings.Trim(strings.TrimSpace(rewritten), `"`)
	if rewritten == "" {
		return "", fmt.Errorf("rewriter returned empty query")
	}
	return rewritten, nil
}

// Synthesizer produces the final grounded answer.
type Synthesizer struct {
	client *Client
}

func NewSynthesizer(client *Client) *Synthesizer {
	return &Synthesizer{client: client}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question string, evidence []domain.DocumentRef) (string, error) {
	return s.client.generateText(ctx, "synthesize", buildSynthesisPrompt(question, evidence))
}

// Summarizer derives retrieval queries from reports and compact summaries
// from knowledge chunks.
type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

func (s *Summarizer) SummarizeFindings(ctx context.Context, report *domain.CBCReport) (string, error) {
	return s.client.generateText(ctx, "summarize_findings", buildFindingsSummaryPrompt(report))
}

func (s *Summarizer) SummarizeChunk(ctx context.Context, chunk string) (string, error) {
	return s.client.generateText(ctx, "summarize_chunk", buildChunkSummaryPrompt(chunk))
}

// Embedder builds vectors via the embedding model.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	return c.generate(ctx, operation, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generateText(ctx context.Context, operation, prompt string) (string, error) {
	return c.generate(ctx, operation, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	})
}

func (c *Client) generate(ctx context.Context, operation string, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, operation, func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, operation)
	}); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return wrapProviderIfNeeded(operation, fn(ctx))
	}
	err := c.executor.Execute(ctx, "ollama."+operation, fn, classifyOllamaError)
	return wrapProviderIfNeeded(operation, err)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
