package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
)

const defaultJudgeTimeout = 12 * time.Second

// GradeEvidenceUseCase obtains independent binary relevance judgments for
// each document and aggregates them by strict majority. Judge failures and
// timeouts degrade to an irrelevant vote instead of failing the pipeline.
type GradeEvidenceUseCase struct {
	judge        ports.RelevanceJudge
	judgeTimeout time.Duration
}

func NewGradeEvidenceUseCase(judge ports.RelevanceJudge, judgeTimeout time.Duration) *GradeEvidenceUseCase {
	if judgeTimeout <= 0 {
		judgeTimeout = defaultJudgeTimeout
	}
	return &GradeEvidenceUseCase{
		judge:        judge,
		judgeTimeout: judgeTimeout,
	}
}

func (uc *GradeEvidenceUseCase) Grade(
	ctx context.Context,
	question string,
	evidence domain.EvidenceSet,
) (domain.GradeVerdict, error) {
	votes := make([]domain.Relevance, evidence.Len())

	// Judgments have no ordering dependency; issue them concurrently and
	// wait for all before aggregating.
	var wg sync.WaitGroup
	for i, doc := range evidence.Items {
		wg.Add(1)
		go func(i int, doc domain.DocumentRef) {
			defer wg.Done()
			votes[i] = uc.judgeOne(ctx, question, doc)
		}(i, doc)
	}
	wg.Wait()

	// A cancelled request must not be answered off a wall of degraded votes.
	if err := ctx.Err(); err != nil {
		return domain.GradeVerdict{}, err
	}

	verdict := domain.GradeVerdict{
		PerDocument: make(map[string]domain.Relevance, evidence.Len()),
	}
	for i, doc := range evidence.Items {
		verdict.PerDocument[doc.DocumentID] = votes[i]
	}
	verdict.Sufficient = MajoritySufficient(votes)
	return verdict, nil
}

func (uc *GradeEvidenceUseCase) judgeOne(ctx context.Context, question string, doc domain.DocumentRef) domain.Relevance {
	judgeCtx, cancel := context.WithTimeout(ctx, uc.judgeTimeout)
	defer cancel()

	rel, err := uc.judge.Judge(judgeCtx, question, doc)
	if err != nil {
		slog.Warn("relevance_judgment_degraded",
			"document_id", doc.DocumentID,
			"origin", string(doc.Origin),
			"error", err,
		)
		return domain.RelevanceIrrelevant
	}
	return rel
}

// MajoritySufficient applies the aggregation rule: sufficient iff strictly
// more than half of the votes are relevant. Zero votes and exact ties are
// insufficient, biasing toward correction over an under-evidenced answer.
func MajoritySufficient(votes []domain.Relevance) bool {
	if len(votes) == 0 {
		return false
	}
	relevant := 0
	for _, v := range votes {
		if v == domain.RelevanceRelevant {
			relevant++
		}
	}
	return relevant*2 > len(votes)
}
