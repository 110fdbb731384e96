package ports

import (
	"context"
	"io"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

// ReportIngestor is the inbound contract for CBC report upload and
// normalization.
type ReportIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.CBCReport, error)
}

// ReportAnswerer runs the corrective-retrieval pipeline for one question
// about a previously normalized report.
type ReportAnswerer interface {
	Answer(ctx context.Context, reportID, question string, topK int) (*domain.GroundedAnswer, error)
}

// ReportReader is the inbound read model for archived reports.
type ReportReader interface {
	GetByID(ctx context.Context, id string) (*domain.CBCReport, error)
}

// KnowledgeIngestor is the inbound contract for knowledge-base uploads.
type KnowledgeIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.KnowledgeDocument, error)
}

// KnowledgeProcessor is the inbound contract for asynchronous indexing.
// ProcessByID reports how many chunk summaries were indexed.
type KnowledgeProcessor interface {
	ProcessByID(ctx context.Context, documentID string) (int, error)
}

// KnowledgeReader is the inbound read model for knowledge document state.
type KnowledgeReader interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error)
}
