package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

func newGenerateServer(t *testing.T, response string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if capture != nil {
			*capture = payload
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
}

func TestJudgeParsesRelevanceJSON(t *testing.T) {
	var payload map[string]any
	server := newGenerateServer(t, ` {"relevant": true} `, &payload)
	defer server.Close()

	judge := NewJudge(New(server.URL, "gen-model", "embed-model", nil))
	doc := domain.DocumentRef{
		DocumentID: "doc-1",
		Title:      "iron deficiency guide",
		FullText:   "Low MCV with low ferritin indicates iron deficiency.",
	}

	relevance, err := judge.Judge(context.Background(), "why is my MCV low", doc)
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if relevance != domain.RelevanceRelevant {
		t.Fatalf("expected relevant, got %q", relevance)
	}

	prompt, _ := payload["prompt"].(string)
	if !strings.Contains(prompt, "why is my MCV low") {
		t.Fatalf("prompt must carry the question, got %q", prompt)
	}
	if !strings.Contains(prompt, "Low MCV with low ferritin") {
		t.Fatalf("prompt must carry the document text, got %q", prompt)
	}
	if payload["format"] != "json" {
		t.Fatalf("judge must request json format, got %v", payload["format"])
	}
}

func TestClassifierParsesGateJSONWithNoise(t *testing.T) {
	server := newGenerateServer(t, "Sure! Here is the JSON:\n{\"is_cbc_report\": false}\nDone.", nil)
	defer server.Close()

	classifier := NewClassifier(New(server.URL, "gen-model", "embed-model", nil))
	isCBC, err := classifier.IsCBCReport(context.Background(), "flour 200 g, sugar 100 g")
	if err != nil {
		t.Fatalf("IsCBCReport() error = %v", err)
	}
	if isCBC {
		t.Fatalf("expected non-CBC classification")
	}
}

func TestRewriterTrimsQuotesAndRejectsEmpty(t *testing.T) {
	server := newGenerateServer(t, `"causes of microcytic anemia in adults"`, nil)
	defer server.Close()

	rewriter := NewRewriter(New(server.URL, "gen-model", "embed-model", nil))
	query := domain.PatientQuery{DerivedQuery: "microcytic hypochromic picture"}

	rewritten, err := rewriter.Rewrite(context.Background(), query)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if rewritten != "causes of microcytic anemia in adults" {
		t.Fatalf("quotes must be stripped, got %q", rewritten)
	}

	empty := newGenerateServer(t, "   ", nil)
	defer empty.Close()

	if _, err := NewRewriter(New(empty.URL, "gen-model", "embed-model", nil)).Rewrite(context.Background(), query); err == nil {
		t.Fatalf("empty rewrite must be an error")
	}
}

func TestSynthesizerPromptCarriesEvidence(t *testing.T) {
	var payload map[string]any
	server := newGenerateServer(t, "The low hemoglobin suggests anemia [1].", &payload)
	defer server.Close()

	synth := NewSynthesizer(New(server.URL, "gen-model", "embed-model", nil))
	evidence := []domain.DocumentRef{
		{DocumentID: "doc-1", Title: "anemia overview", FullText: "Hemoglobin below 12 g/dL defines anemia in women.", Origin: domain.ProvenanceLocal},
		{DocumentID: "web:1", Title: "who guidance", FullText: "Iron supplementation thresholds.", Origin: domain.ProvenanceWeb, URL: "https://example.org/who"},
	}

	answer, err := synth.Synthesize(context.Background(), "what does my hemoglobin mean", evidence)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if answer != "The low hemoglobin suggests anemia [1]." {
		t.Fatalf("unexpected answer %q", answer)
	}

	prompt, _ := payload["prompt"].(string)
	for _, want := range []string{"what does my hemoglobin mean", "Hemoglobin below 12 g/dL", "https://example.org/who"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestEmbedErrorIncludesResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen-model", "missing-model", nil))
	_, err := embedder.Embed(context.Background(), []string{"ferritin"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("error must carry the server body, got %v", err)
	}
}

func TestGenerateServerErrorWrapsProviderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	judge := NewJudge(New(server.URL, "gen-model", "embed-model", nil))
	_, err := judge.Judge(context.Background(), "q", domain.DocumentRef{DocumentID: "doc-1"})
	if !domain.IsKind(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestEmbedQueryReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen-model", "embed-model", nil))
	vector, err := embedder.EmbedQuery(context.Background(), "hemoglobin")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 || vector[0] != 0.1 {
		t.Fatalf("unexpected vector %v", vector)
	}
}
