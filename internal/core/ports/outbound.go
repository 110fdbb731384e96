package ports

import (
	"context"
	"io"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

// ContentStore owns knowledge document state and full text. Resolve is the
// summary-to-document dereference; a missing document comes back as
// domain.ErrDocumentNotFound, which callers treat as a consistency violation.
type ContentStore interface {
	Create(ctx context.Context, doc *domain.KnowledgeDocument) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error)
	SaveText(ctx context.Context, id, title, fullText string) error
	UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus, errMessage string) error
	Resolve(ctx context.Context, documentID string) (*domain.DocumentRef, error)
}

// SummaryIndex is the multi-vector document index: chunk summaries are the
// embedded keys, each dereferencing to a parent document in the content store.
type SummaryIndex interface {
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
	Query(ctx context.Context, queryVector []float32, k int) ([]domain.IndexHit, error)
}

// Embedder builds vectors for chunk summaries and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ReportClassifier decides whether uploaded text is a CBC report at all.
type ReportClassifier interface {
	IsCBCReport(ctx context.Context, text string) (bool, error)
}

// QuerySummarizer turns structured findings into a compact retrieval query.
type QuerySummarizer interface {
	SummarizeFindings(ctx context.Context, report *domain.CBCReport) (string, error)
}

// RelevanceJudge gives a binary relevance judgment for one document.
type RelevanceJudge interface {
	Judge(ctx context.Context, question string, doc domain.DocumentRef) (domain.Relevance, error)
}

// QueryRewriter reformulates a query for web-search suitability.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query domain.PatientQuery) (string, error)
}

// AnswerSynthesizer produces the final grounded answer text.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question string, evidence []domain.DocumentRef) (string, error)
}

// ChunkSummarizer produces the compact summary indexed for one chunk.
type ChunkSummarizer interface {
	SummarizeChunk(ctx context.Context, chunk string) (string, error)
}

// WebSearcher retrieves external documents for a rewritten query. All
// returned refs carry web provenance and are never persisted.
type WebSearcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.DocumentRef, error)
}

// ReportArchive persists normalized reports, one write per report.
type ReportArchive interface {
	Save(ctx context.Context, report *domain.CBCReport) error
	GetByID(ctx context.Context, id string) (*domain.CBCReport, error)
}

// FindingsLedger appends one tabular row per processed report.
type FindingsLedger interface {
	Append(ctx context.Context, report *domain.CBCReport) error
}

// ObjectStorage stores raw uploads and per-report structured records.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes knowledge ingestion events.
type MessageQueue interface {
	PublishKnowledgeIngested(ctx context.Context, documentID string) error
	SubscribeKnowledgeIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored upload.
type TextExtractor interface {
	Extract(ctx context.Context, storagePath, mimeType string) (string, error)
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}
