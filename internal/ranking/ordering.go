package ranking

import (
	"math/rand"
	"sort"
)

// RankOrder returns item indices sorted by descending score. Invalid
// items always sort after valid ones regardless of score. Ties among
// valid items are broken by a pseudo-random draw keyed by seed; with
// seed <= 0 ties fall back to position order, which is still stable
// within one call.
//
// The permutation covers every index so callers can walk the whole
// list; only the first count-of-valid entries rank.
func RankOrder(scores []float64, valid []bool, seed int64) []int {
	n := len(scores)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	// One draw per item, in index order, so the same seed always
	// produces the same tie-breaks for a given list length.
	var tiebreak []float64
	if seed > 0 {
		rng := rand.New(rand.NewSource(seed))
		tiebreak = make([]float64, n)
		for i := range tiebreak {
			tiebreak[i] = rng.Float64()
		}
	}

	sort.SliceStable(perm, func(a, b int) bool {
		i, j := perm[a], perm[b]
		if valid[i] != valid[j] {
			return valid[i]
		}
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		if tiebreak != nil {
			return tiebreak[i] < tiebreak[j]
		}
		return false
	})

	return perm
}
