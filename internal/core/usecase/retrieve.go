package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
)

// RetrieveEvidenceUseCase resolves a patient query against the summary index
// and dereferences hits to full documents. Summary-to-document mapping is
// many-to-one: several chunk summaries may point at the same parent document,
// so hits are deduplicated by document id keeping the best-ranked occurrence.
type RetrieveEvidenceUseCase struct {
	embedder ports.Embedder
	index    ports.SummaryIndex
	content  ports.ContentStore
}

func NewRetrieveEvidenceUseCase(
	embedder ports.Embedder,
	index ports.SummaryIndex,
	content ports.ContentStore,
) *RetrieveEvidenceUseCase {
	return &RetrieveEvidenceUseCase{
		embedder: embedder,
		index:    index,
		content:  content,
	}
}

func (uc *RetrieveEvidenceUseCase) Retrieve(
	ctx context.Context,
	query domain.PatientQuery,
	k int,
) (domain.EvidenceSet, error) {
	if k <= 0 {
		k = 5
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query.DerivedQuery)
	if err != nil {
		return domain.EvidenceSet{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := uc.index.Query(ctx, queryVector, k)
	if err != nil {
		return domain.EvidenceSet{}, fmt.Errorf("query summary index: %w", err)
	}

	// The index service's tie order is unspecified; enforce score-desc with
	// insertion-seq tie-break here so retrieval is deterministic.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Seq < hits[j].Seq
	})

	seen := make(map[string]bool, len(hits))
	refs := make([]domain.DocumentRef, 0, len(hits))
	for _, hit := range hits {
		if seen[hit.DocumentID] {
			continue
		}
		seen[hit.DocumentID] = true

		ref, err := uc.content.Resolve(ctx, hit.DocumentID)
		if err != nil {
			if domain.IsKind(err, domain.ErrDocumentNotFound) {
				// An index entry pointing at a missing document is a hard
				// integrity fault; aborting beats silently returning fewer
				// documents than requested.
				return domain.EvidenceSet{}, domain.WrapError(domain.ErrConsistency, "resolve document "+hit.DocumentID, err)
			}
			return domain.EvidenceSet{}, fmt.Errorf("resolve document %s: %w", hit.DocumentID, err)
		}

		resolved := *ref
		resolved.Origin = domain.ProvenanceLocal
		resolved.Score = hit.Score
		refs = append(refs, resolved)
		if len(refs) == k {
			break
		}
	}

	return domain.EvidenceSet{Items: refs}, nil
}
