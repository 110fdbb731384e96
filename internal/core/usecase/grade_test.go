package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

type judgeFake struct {
	relevant map[string]bool
	err      error
	delay    time.Duration
}

func (f *judgeFake) Judge(ctx context.Context, _ string, doc domain.DocumentRef) (domain.Relevance, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if f.relevant[doc.DocumentID] {
		return domain.RelevanceRelevant, nil
	}
	return domain.RelevanceIrrelevant, nil
}

func evidenceOf(ids ...string) domain.EvidenceSet {
	refs := make([]domain.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, domain.DocumentRef{DocumentID: id, FullText: "text", Origin: domain.ProvenanceLocal})
	}
	return domain.EvidenceSet{Items: refs}
}

func TestMajoritySufficient(t *testing.T) {
	r, i := domain.RelevanceRelevant, domain.RelevanceIrrelevant
	cases := []struct {
		name  string
		votes []domain.Relevance
		want  bool
	}{
		{"zero votes insufficient", nil, false},
		{"single relevant", []domain.Relevance{r}, true},
		{"single irrelevant", []domain.Relevance{i}, false},
		{"exact tie insufficient", []domain.Relevance{r, i}, false},
		{"two of three", []domain.Relevance{r, r, i}, true},
		{"two of four tie", []domain.Relevance{r, r, i, i}, false},
		{"three of four", []domain.Relevance{r, r, r, i}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MajoritySufficient(tc.votes); got != tc.want {
				t.Fatalf("MajoritySufficient(%v) = %v, want %v", tc.votes, got, tc.want)
			}
		})
	}
}

func TestGradeMajorityVerdict(t *testing.T) {
	uc := NewGradeEvidenceUseCase(&judgeFake{relevant: map[string]bool{"a": true, "b": true}}, 0)

	verdict, err := uc.Grade(context.Background(), "q", evidenceOf("a", "b", "c"))
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if !verdict.Sufficient {
		t.Fatalf("2 of 3 relevant should be sufficient")
	}
	if verdict.PerDocument["c"] != domain.RelevanceIrrelevant {
		t.Fatalf("expected per-document vote for c, got %v", verdict.PerDocument)
	}
	if verdict.RelevantCount() != 2 {
		t.Fatalf("expected 2 relevant votes, got %d", verdict.RelevantCount())
	}
}

func TestGradeEmptyEvidenceInsufficient(t *testing.T) {
	uc := NewGradeEvidenceUseCase(&judgeFake{}, 0)

	verdict, err := uc.Grade(context.Background(), "q", domain.EvidenceSet{})
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if verdict.Sufficient {
		t.Fatalf("empty evidence must be insufficient")
	}
}

func TestGradeJudgeErrorDegradesToIrrelevant(t *testing.T) {
	uc := NewGradeEvidenceUseCase(&judgeFake{err: errors.New("model unreachable")}, 0)

	verdict, err := uc.Grade(context.Background(), "q", evidenceOf("a", "b"))
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if verdict.Sufficient {
		t.Fatalf("all-degraded votes must be insufficient")
	}
	for id, rel := range verdict.PerDocument {
		if rel != domain.RelevanceIrrelevant {
			t.Fatalf("doc %s: expected degraded irrelevant vote, got %q", id, rel)
		}
	}
}

func TestGradeJudgeTimeoutDegradesToIrrelevant(t *testing.T) {
	uc := NewGradeEvidenceUseCase(&judgeFake{
		relevant: map[string]bool{"a": true},
		delay:    50 * time.Millisecond,
	}, 5*time.Millisecond)

	verdict, err := uc.Grade(context.Background(), "q", evidenceOf("a"))
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if verdict.Sufficient {
		t.Fatalf("timed-out judgment must count as irrelevant")
	}
}

func TestGradeCancelledContextFails(t *testing.T) {
	uc := NewGradeEvidenceUseCase(&judgeFake{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := uc.Grade(ctx, "q", evidenceOf("a"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
