package domain

type PipelineStage string

const (
	StageNormalizing  PipelineStage = "normalizing"
	StageRetrieving   PipelineStage = "retrieving"
	StageGrading      PipelineStage = "grading"
	StageRewriting    PipelineStage = "rewriting"
	StageWebSearching PipelineStage = "web_searching"
	StageMerging      PipelineStage = "merging"
	StageAnswering    PipelineStage = "answering"
	StageDone         PipelineStage = "done"
	StageFailed       PipelineStage = "failed"
)

type Confidence string

const (
	ConfidenceLocalOnly Confidence = "local-only"
	ConfidenceLocalWeb  Confidence = "local+web"
	ConfidenceLowForced Confidence = "low-confidence-forced"
)

// PipelineState is the orchestrator's working record for a single answering
// request. It is constructed fresh per request and never shared.
type PipelineState struct {
	Stage     PipelineStage
	Query     PatientQuery
	Evidence  EvidenceSet
	Verdict   *GradeVerdict
	Attempts  int
	Rewritten bool
	Forced    bool
	// Degraded marks a correction cycle cut short by a rewrite or web-search
	// provider failure, as opposed to one that ran and still graded short.
	Degraded bool
	Answer   string
}

func NewPipelineState() *PipelineState {
	return &PipelineState{Stage: StageNormalizing}
}

// GroundedAnswer is the terminal result of the answering pipeline. Confidence
// always carries the provenance of the evidence behind the answer.
type GroundedAnswer struct {
	ReportID   string        `json:"report_id"`
	Question   string        `json:"question"`
	Text       string        `json:"answer"`
	Confidence Confidence    `json:"confidence"`
	Sources    []DocumentRef `json:"sources"`
	Attempts   int           `json:"attempts"`
	Degraded   bool          `json:"degraded,omitempty"`
}
