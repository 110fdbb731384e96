package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
)

// IngestKnowledgeUseCase accepts a knowledge-base document, persists the raw
// bytes and metadata, and hands indexing off to the worker via the queue.
type IngestKnowledgeUseCase struct {
	content ports.ContentStore
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestKnowledgeUseCase(
	content ports.ContentStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestKnowledgeUseCase {
	return &IngestKnowledgeUseCase{
		content: content,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestKnowledgeUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.KnowledgeDocument, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("knowledge/%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save knowledge upload: %w", err)
	}

	doc := &domain.KnowledgeDocument{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Title:       titleFromFilename(filename),
		Status:      domain.KnowledgeUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.content.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create knowledge document: %w", err)
	}

	if err := uc.queue.PublishKnowledgeIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}
	return doc, nil
}

func titleFromFilename(filename string) string {
	base := filename
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}
