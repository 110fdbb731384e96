package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
)

// ProcessKnowledgeUseCase is the worker-side indexing pipeline: extract,
// chunk, summarize each chunk, embed the summaries, and upsert one index
// entry per summary keyed to the parent document. The content store row is
// written before any index entry so the index never references a document
// that cannot resolve.
type ProcessKnowledgeUseCase struct {
	content    ports.ContentStore
	extractor  ports.TextExtractor
	chunker    ports.Chunker
	summarizer ports.ChunkSummarizer
	embedder   ports.Embedder
	index      ports.SummaryIndex
}

func NewProcessKnowledgeUseCase(
	content ports.ContentStore,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	summarizer ports.ChunkSummarizer,
	embedder ports.Embedder,
	index ports.SummaryIndex,
) *ProcessKnowledgeUseCase {
	return &ProcessKnowledgeUseCase{
		content:    content,
		extractor:  extractor,
		chunker:    chunker,
		summarizer: summarizer,
		embedder:   embedder,
		index:      index,
	}
}

// ProcessByID runs the full indexing pipeline for one document and returns
// the number of chunk summaries written to the index.
func (uc *ProcessKnowledgeUseCase) ProcessByID(ctx context.Context, documentID string) (int, error) {
	if err := uc.content.UpdateStatus(ctx, documentID, domain.KnowledgeProcessing, ""); err != nil {
		return 0, fmt.Errorf("set status=processing: %w", err)
	}

	indexed, err := uc.indexDocument(ctx, documentID)
	if err != nil {
		if failErr := uc.content.UpdateStatus(ctx, documentID, domain.KnowledgeFailed, err.Error()); failErr != nil {
			return 0, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return 0, err
	}

	if err := uc.content.UpdateStatus(ctx, documentID, domain.KnowledgeReady, ""); err != nil {
		return 0, fmt.Errorf("set status=ready: %w", err)
	}
	return indexed, nil
}

func (uc *ProcessKnowledgeUseCase) indexDocument(ctx context.Context, documentID string) (int, error) {
	doc, err := uc.content.GetByID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("fetch knowledge document: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc.StoragePath, doc.MimeType)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	summaries := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		summary, err := uc.summarizer.SummarizeChunk(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("summarize chunk: %w", err)
		}
		summaries = append(summaries, summary)
	}

	vectors, err := uc.embedder.Embed(ctx, summaries)
	if err != nil {
		return 0, fmt.Errorf("embed summaries: %w", err)
	}
	if len(vectors) != len(summaries) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed summaries",
			fmt.Errorf("vectors/summaries mismatch: %d/%d", len(vectors), len(summaries)),
		)
	}

	// Content first, index second: an index entry must always resolve.
	if err := uc.content.SaveText(ctx, doc.ID, doc.Title, text); err != nil {
		return 0, fmt.Errorf("save document text: %w", err)
	}

	entries := make([]domain.IndexEntry, 0, len(summaries))
	for i, summary := range summaries {
		entries = append(entries, domain.IndexEntry{
			Summary:    summary,
			DocumentID: doc.ID,
			Vector:     vectors[i],
		})
	}
	if err := uc.index.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("upsert index entries: %w", err)
	}
	return len(entries), nil
}
