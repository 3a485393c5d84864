package ranking

import "math"

// GainFunc maps a relevance label to a reward magnitude. Padding labels
// are filtered out before any gain call.
type GainFunc func(label float64) float64

// DiscountFunc maps a 1-indexed rank to a multiplicative decay factor.
type DiscountFunc func(rank int) float64

// DefaultGain is 2^label - 1, the standard exponential gain.
func DefaultGain(label float64) float64 {
	return math.Pow(2, label) - 1
}

// DefaultDiscount is ln(2) / ln(1+rank), so rank 1 discounts to exactly
// 1.0 and the factor decreases strictly with rank.
func DefaultDiscount(rank int) float64 {
	return math.Ln2 / math.Log(1+float64(rank))
}
