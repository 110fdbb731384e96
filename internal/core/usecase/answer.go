package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
)

// Retriever and Grader are the orchestrator's views of the retrieval and
// grading stages, satisfied by RetrieveEvidenceUseCase and
// GradeEvidenceUseCase.
type Retriever interface {
	Retrieve(ctx context.Context, query domain.PatientQuery, k int) (domain.EvidenceSet, error)
}

type Grader interface {
	Grade(ctx context.Context, question string, evidence domain.EvidenceSet) (domain.GradeVerdict, error)
}

type AnswerConfig struct {
	TopK           int
	WebTopK        int
	MaxCorrections int
}

func (c AnswerConfig) normalize() AnswerConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.WebTopK <= 0 {
		out.WebTopK = 3
	}
	// The zero value means unset and gets the default single correction; a
	// negative budget disables the correction cycle. The state machine
	// performs at most one web-search pass regardless of config, so larger
	// budgets clamp to one.
	switch {
	case out.MaxCorrections < 0:
		out.MaxCorrections = 0
	case out.MaxCorrections != 1:
		out.MaxCorrections = 1
	}
	return out
}

// AnswerReportUseCase is the corrective-retrieval state machine. It owns all
// transitions, the correction bound, and the confidence tag on the terminal
// answer. One PipelineState per request; nothing is shared across requests.
type AnswerReportUseCase struct {
	archive     ports.ReportArchive
	retriever   Retriever
	grader      Grader
	rewriter    ports.QueryRewriter
	webSearcher ports.WebSearcher
	synthesizer ports.AnswerSynthesizer
	cfg         AnswerConfig
}

func NewAnswerReportUseCase(
	archive ports.ReportArchive,
	retriever Retriever,
	grader Grader,
	rewriter ports.QueryRewriter,
	webSearcher ports.WebSearcher,
	synthesizer ports.AnswerSynthesizer,
	cfg AnswerConfig,
) *AnswerReportUseCase {
	return &AnswerReportUseCase{
		archive:     archive,
		retriever:   retriever,
		grader:      grader,
		rewriter:    rewriter,
		webSearcher: webSearcher,
		synthesizer: synthesizer,
		cfg:         cfg.normalize(),
	}
}

func (uc *AnswerReportUseCase) Answer(
	ctx context.Context,
	reportID, question string,
	topK int,
) (*domain.GroundedAnswer, error) {
	if topK <= 0 {
		topK = uc.cfg.TopK
	}

	state := domain.NewPipelineState()
	var answer *domain.GroundedAnswer

	for {
		switch state.Stage {
		case domain.StageNormalizing:
			report, err := uc.archive.GetByID(ctx, reportID)
			if err != nil {
				return uc.fail(state, fmt.Errorf("load report: %w", err))
			}
			state.Query = domain.NewPatientQuery(report)
			if strings.TrimSpace(question) == "" {
				question = state.Query.DerivedQuery
			}
			state.Stage = domain.StageRetrieving

		case domain.StageRetrieving:
			evidence, err := uc.retriever.Retrieve(ctx, state.Query, topK)
			if err != nil {
				return uc.fail(state, err)
			}
			state.Evidence = evidence
			// An empty evidence set is valid input to grading and will be
			// judged insufficient by the vacuous-majority rule.
			state.Stage = domain.StageGrading

		case domain.StageGrading:
			verdict, err := uc.grader.Grade(ctx, question, state.Evidence)
			if err != nil {
				return uc.fail(state, err)
			}
			state.Verdict = &verdict

			switch {
			case verdict.Sufficient:
				state.Stage = domain.StageAnswering
			case state.Attempts < uc.cfg.MaxCorrections && !state.Rewritten:
				state.Attempts++
				state.Stage = domain.StageRewriting
			default:
				// Correction budget exhausted: answer from whatever exists
				// rather than failing the request.
				state.Forced = true
				state.Stage = domain.StageAnswering
			}

		case domain.StageRewriting:
			state.Rewritten = true
			rewritten, err := uc.rewriter.Rewrite(ctx, state.Query)
			if err != nil {
				slog.Warn("query_rewrite_degraded", "report_id", reportID, "error", err)
				state.Forced = true
				state.Degraded = true
				state.Stage = domain.StageAnswering
				continue
			}
			state.Query = state.Query.WithRewrittenQuery(rewritten)
			state.Stage = domain.StageWebSearching

		case domain.StageWebSearching:
			webRefs, err := uc.webSearcher.Search(ctx, state.Query.DerivedQuery, uc.cfg.WebTopK)
			if err != nil {
				if domain.IsKind(err, domain.ErrSearchUnavailable) || domain.IsKind(err, domain.ErrProviderUnavailable) {
					slog.Warn("web_search_degraded", "report_id", reportID, "error", err)
					state.Forced = true
					state.Degraded = true
					state.Stage = domain.StageAnswering
					continue
				}
				return uc.fail(state, err)
			}
			state.Stage = domain.StageMerging
			// Local evidence is never discarded; web results append after it.
			state.Evidence = state.Evidence.Merge(webRefs)

		case domain.StageMerging:
			// Merged set gets exactly one more grading pass.
			state.Stage = domain.StageGrading

		case domain.StageAnswering:
			text, err := uc.synthesizer.Synthesize(ctx, question, state.Evidence.Items)
			if err != nil {
				return uc.fail(state, fmt.Errorf("synthesize answer: %w", err))
			}
			state.Answer = text
			state.Stage = domain.StageDone

		case domain.StageDone:
			answer = &domain.GroundedAnswer{
				ReportID:   reportID,
				Question:   question,
				Text:       state.Answer,
				Confidence: confidenceTag(state),
				Sources:    state.Evidence.Items,
				Attempts:   state.Attempts,
				Degraded:   state.Degraded,
			}
			return answer, nil

		default:
			return uc.fail(state, fmt.Errorf("unexpected pipeline stage %q", state.Stage))
		}
	}
}

func (uc *AnswerReportUseCase) fail(state *domain.PipelineState, err error) (*domain.GroundedAnswer, error) {
	state.Stage = domain.StageFailed
	return nil, err
}

func confidenceTag(state *domain.PipelineState) domain.Confidence {
	switch {
	case state.Forced:
		return domain.ConfidenceLowForced
	case state.Evidence.HasOrigin(domain.ProvenanceWeb):
		return domain.ConfidenceLocalWeb
	default:
		return domain.ConfidenceLocalOnly
	}
}
