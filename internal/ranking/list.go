// Package ranking computes listwise information-retrieval metrics over
// ranked lists and aggregates them into running weighted means.
package ranking

import (
	"fmt"

	"github.com/ricesearch/rank-eval/internal/pkg/errors"
)

// List is one query's candidate set. Labels and Scores are parallel
// slices; Weights is optional (nil means every item weighs 1.0).
// Subtopics is optional and only consulted by the diversity-aware
// metrics; Subtopics[i] lists the subtopic IDs item i covers.
//
// Items with a negative label are padding: they are excluded from
// ranking and never counted as relevant.
type List struct {
	Labels    []float64   `json:"labels" yaml:"labels"`
	Scores    []float64   `json:"scores" yaml:"scores"`
	Weights   []float64   `json:"weights,omitempty" yaml:"weights,omitempty"`
	Subtopics [][]int     `json:"subtopics,omitempty" yaml:"subtopics,omitempty"`
}

// Batch is an ordered set of lists evaluated together. Lists may have
// different lengths; padding items carry a negative label.
type Batch []List

// Len returns the number of items in the list.
func (l List) Len() int {
	return len(l.Labels)
}

// Validate checks that the parallel slices agree in length.
func (l List) Validate() error {
	if len(l.Scores) != len(l.Labels) {
		return errors.ValidationError(fmt.Sprintf(
			"labels/scores length mismatch: %d vs %d", len(l.Labels), len(l.Scores)))
	}
	if l.Weights != nil && len(l.Weights) != len(l.Labels) {
		return errors.ValidationError(fmt.Sprintf(
			"labels/weights length mismatch: %d vs %d", len(l.Labels), len(l.Weights)))
	}
	if l.Subtopics != nil && len(l.Subtopics) != len(l.Labels) {
		return errors.ValidationError(fmt.Sprintf(
			"labels/subtopics length mismatch: %d vs %d", len(l.Labels), len(l.Subtopics)))
	}
	for i, w := range l.Weights {
		if w < 0 {
			return errors.ValidationError(fmt.Sprintf("negative item weight %g at index %d", w, i))
		}
	}
	return nil
}

// Validate checks every list in the batch.
func (b Batch) Validate() error {
	for i, l := range b {
		if err := l.Validate(); err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				return appErr.WithDetail("list", fmt.Sprintf("%d", i))
			}
			return err
		}
	}
	return nil
}

// validMask derives the validity mask from the padding convention:
// an item is valid iff its label is non-negative.
func (l List) validMask() []bool {
	valid := make([]bool, len(l.Labels))
	for i, label := range l.Labels {
		valid[i] = label >= 0
	}
	return valid
}

// itemWeights returns the effective per-item weights, defaulting to 1.0.
func (l List) itemWeights() []float64 {
	if l.Weights != nil {
		return l.Weights
	}
	w := make([]float64, len(l.Labels))
	for i := range w {
		w[i] = 1
	}
	return w
}

// prepared is a list with its validity mask and rank order resolved.
// The permutation is computed once per list and shared by whichever
// scorer consumes it.
type prepared struct {
	labels    []float64
	scores    []float64
	weights   []float64
	subtopics [][]int
	perm      []int // all item indices, valid items first in rank order
	nvalid    int
}

// prepare validates the list, derives the mask and sorts once.
// seed <= 0 leaves tie-breaking positional.
func prepare(l List, seed int64) (*prepared, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	valid := l.validMask()
	nvalid := 0
	for _, v := range valid {
		if v {
			nvalid++
		}
	}
	return &prepared{
		labels:    l.Labels,
		scores:    l.Scores,
		weights:   l.itemWeights(),
		subtopics: l.Subtopics,
		perm:      RankOrder(l.Scores, valid, seed),
		nvalid:    nvalid,
	}, nil
}

// cut resolves a topn cutoff against the valid length. Zero or an
// oversized cutoff means the whole valid list.
func (p *prepared) cut(topn int) int {
	if topn <= 0 || topn > p.nvalid {
		return p.nvalid
	}
	return topn
}

// relevant reports whether item i counts as relevant (binary reading).
func (p *prepared) relevant(i int) bool {
	return p.labels[i] > 0
}
