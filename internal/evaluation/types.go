package evaluation

// RelevanceJudgment represents human-labeled relevance for a query-doc pair.
type RelevanceJudgment struct {
	QueryID   string  `json:"query_id" yaml:"query_id"`
	DocID     string  `json:"doc_id" yaml:"doc_id"`
	Relevance float64 `json:"relevance" yaml:"relevance"` // 0=not relevant, higher is better
}

// RankedResult is one query's ranked candidates as produced by a
// scoring model: document IDs with predicted scores, in any order.
// Relevance labels are joined in from loaded judgments; documents
// without a judgment count as not relevant.
type RankedResult struct {
	QueryID string    `json:"query_id" yaml:"query_id"`
	DocIDs  []string  `json:"doc_ids" yaml:"doc_ids"`
	Scores  []float64 `json:"scores" yaml:"scores"`
	Weights []float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// Summary reports metric state after an update: batch-local means for
// the lists just processed and the all-time running means, keyed by
// metric name.
type Summary struct {
	Batch   map[string]float64 `json:"batch,omitempty"`
	Running map[string]float64 `json:"running"`
	Lists   int                `json:"lists,omitempty"`
}
