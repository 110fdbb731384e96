package domain

import "time"

type Provenance string

const (
	ProvenanceLocal Provenance = "local"
	ProvenanceWeb   Provenance = "web"
)

// DocumentRef is a read-only projection of a source document. Local refs are
// resolved from the content store; web refs are ephemeral and live only for
// the duration of one answering request.
type DocumentRef struct {
	DocumentID  string     `json:"document_id"`
	Title       string     `json:"title"`
	FullText    string     `json:"full_text"`
	URL         string     `json:"url,omitempty"`
	Origin      Provenance `json:"origin"`
	Score       float64    `json:"score,omitempty"`
	RetrievedAt time.Time  `json:"retrieved_at"`
}

// EvidenceSet is an ordered accumulation of document refs. It only ever
// grows: merging web results appends after the existing local items.
type EvidenceSet struct {
	Items []DocumentRef `json:"items"`
}

func (e EvidenceSet) Len() int { return len(e.Items) }

func (e EvidenceSet) IsEmpty() bool { return len(e.Items) == 0 }

// Merge returns a new EvidenceSet with extra appended after the existing
// items. The receiver is not modified.
func (e EvidenceSet) Merge(extra []DocumentRef) EvidenceSet {
	items := make([]DocumentRef, 0, len(e.Items)+len(extra))
	items = append(items, e.Items...)
	items = append(items, extra...)
	return EvidenceSet{Items: items}
}

func (e EvidenceSet) CountByOrigin(origin Provenance) int {
	n := 0
	for _, item := range e.Items {
		if item.Origin == origin {
			n++
		}
	}
	return n
}

func (e EvidenceSet) HasOrigin(origin Provenance) bool {
	return e.CountByOrigin(origin) > 0
}

// IndexEntry maps a compact chunk summary to its parent document. The vector
// is owned by the index and not read back out.
type IndexEntry struct {
	Summary    string
	DocumentID string
	Vector     []float32
}

// IndexHit is one similarity-search result. Seq is the entry's insertion
// sequence, used to break score ties deterministically.
type IndexHit struct {
	DocumentID string
	Score      float64
	Seq        int64
}
