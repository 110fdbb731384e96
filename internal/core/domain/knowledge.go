package domain

import "time"

type KnowledgeStatus string

const (
	KnowledgeUploaded   KnowledgeStatus = "uploaded"
	KnowledgeProcessing KnowledgeStatus = "processing"
	KnowledgeReady      KnowledgeStatus = "ready"
	KnowledgeFailed     KnowledgeStatus = "failed"
)

// KnowledgeDocument is a curated knowledge-base document. Its full text lives
// in the content store; the summary index holds one entry per chunk summary,
// all pointing back at this document's ID.
type KnowledgeDocument struct {
	ID          string          `json:"id"`
	Filename    string          `json:"filename"`
	MimeType    string          `json:"mime_type"`
	StoragePath string          `json:"storage_path"`
	Title       string          `json:"title,omitempty"`
	Status      KnowledgeStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
