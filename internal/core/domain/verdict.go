package domain

type Relevance string

const (
	RelevanceRelevant   Relevance = "relevant"
	RelevanceIrrelevant Relevance = "irrelevant"
)

// GradeVerdict is the outcome of one grading pass over an evidence set.
type GradeVerdict struct {
	PerDocument map[string]Relevance `json:"per_document"`
	Sufficient  bool                 `json:"sufficient"`
}

func (v GradeVerdict) RelevantCount() int {
	n := 0
	for _, rel := range v.PerDocument {
		if rel == RelevanceRelevant {
			n++
		}
	}
	return n
}
