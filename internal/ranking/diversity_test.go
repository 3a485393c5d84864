package ranking

import (
	"math"
	"testing"
)

func TestAlphaDCGScorer(t *testing.T) {
	list := List{
		Labels:    []float64{1, 1, 1},
		Scores:    []float64{0.9, 0.7, 0.5},
		Subtopics: [][]int{{0}, {0}, {1}},
	}

	// Rank 1 covers subtopic 0 fresh, rank 2 repeats it damped by
	// (1-alpha), rank 3 covers subtopic 1 fresh.
	d2 := math.Ln2 / math.Log(3)
	d3 := math.Ln2 / math.Log(4)
	want := 1.0 + 0.5*d2 + 1.0*d3
	checkScore(t, alphaDCGScorer{topn: 3, alpha: 0.5, discount: DefaultDiscount}, list, want, 1)
}

func TestAlphaDCGScorer_AlphaOne(t *testing.T) {
	list := List{
		Labels:    []float64{1, 1},
		Scores:    []float64{0.9, 0.7},
		Subtopics: [][]int{{0}, {0}},
	}

	// alpha=1 silences every repeat completely.
	checkScore(t, alphaDCGScorer{alpha: 1, discount: DefaultDiscount}, list, 1, 1)
}

func TestAlphaDCGScorer_MultiSubtopicItem(t *testing.T) {
	list := List{
		Labels:    []float64{1, 1},
		Scores:    []float64{0.9, 0.7},
		Subtopics: [][]int{{0, 1}, {1}},
	}

	d2 := math.Ln2 / math.Log(3)
	want := (1.0 + 1.0) + 0.5*d2
	checkScore(t, alphaDCGScorer{alpha: 0.5, discount: DefaultDiscount}, list, want, 1)
}

func TestAlphaDCGScorer_NoCoverage(t *testing.T) {
	tests := []struct {
		name string
		list List
	}{
		{
			name: "no subtopics at all",
			list: List{Labels: []float64{1, 1}, Scores: []float64{0.9, 0.7}},
		},
		{
			name: "empty subtopic sets",
			list: List{Labels: []float64{1, 1}, Scores: []float64{0.9, 0.7}, Subtopics: [][]int{{}, {}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkScore(t, alphaDCGScorer{alpha: 0.5, discount: DefaultDiscount}, tt.list, 0, 0)
		})
	}
}

func TestPrecisionIAScorer(t *testing.T) {
	list := List{
		Labels:    []float64{1, 1, 1},
		Scores:    []float64{0.9, 0.7, 0.5},
		Subtopics: [][]int{{0}, {0}, {1}},
	}

	// Top 2 covers subtopic 0 twice and subtopic 1 never:
	// P(sub 0) = 1, P(sub 1) = 0.
	checkScore(t, precisionIAScorer{topn: 2}, list, 0.5, 1)
}

func TestPrecisionIAScorer_FullDepth(t *testing.T) {
	list := List{
		Labels:    []float64{1, 1, 1},
		Scores:    []float64{0.9, 0.7, 0.5},
		Subtopics: [][]int{{0}, {0}, {1}},
	}

	// P(sub 0) = 2/3, P(sub 1) = 1/3.
	checkScore(t, precisionIAScorer{}, list, 0.5, 1)
}

func TestPrecisionIAScorer_Weighted(t *testing.T) {
	list := List{
		Labels:    []float64{1, 1},
		Scores:    []float64{0.9, 0.7},
		Subtopics: [][]int{{0}, {1}},
		Weights:   []float64{3, 1},
	}

	// P(sub 0) = 3/4, P(sub 1) = 1/4; cover weight is (3+1)/2.
	checkScore(t, precisionIAScorer{}, list, 0.5, 2)
}

func TestPrecisionIAScorer_NoCoverage(t *testing.T) {
	list := List{Labels: []float64{1, 1}, Scores: []float64{0.9, 0.7}}
	checkScore(t, precisionIAScorer{}, list, 0, 0)
}

func TestCoverListWeight_IgnoresPadding(t *testing.T) {
	list := List{
		Labels:    []float64{1, -1, 0},
		Scores:    []float64{0.9, 0.7, 0.5},
		Subtopics: [][]int{{0}, {1}, {}},
		Weights:   []float64{2, 100, 1},
	}
	if got := mustPrepare(t, list).coverListWeight(); math.Abs(got-2) > 1e-12 {
		t.Errorf("coverListWeight = %v, want 2 (padding and uncovered items excluded)", got)
	}
}
