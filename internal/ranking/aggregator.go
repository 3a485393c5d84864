package ranking

import (
	"fmt"

	"github.com/ricesearch/rank-eval/internal/pkg/errors"
)

// WeightedMean is a streaming weighted-mean accumulator. It keeps only
// two totals, so memory stays constant however many batches it sees.
//
// It is not synchronized; callers sharing one instance across
// goroutines must serialize access.
type WeightedMean struct {
	totalWeightedValue float64
	totalWeight        float64
}

// Add accumulates a single (value, weight) pair.
func (m *WeightedMean) Add(value, weight float64) {
	m.totalWeightedValue += value * weight
	m.totalWeight += weight
}

// Accumulate consumes parallel slices of per-list values and weights.
func (m *WeightedMean) Accumulate(values, weights []float64) error {
	if len(values) != len(weights) {
		return errors.ValidationError(fmt.Sprintf(
			"values/weights length mismatch: %d vs %d", len(values), len(weights)))
	}
	for i := range values {
		m.Add(values[i], weights[i])
	}
	return nil
}

// Result returns the running weighted mean, or 0 before any weight has
// accumulated. It does not mutate state.
func (m *WeightedMean) Result() float64 {
	if m.totalWeight <= 0 {
		return 0
	}
	return m.totalWeightedValue / m.totalWeight
}

// Reset zeroes both totals.
func (m *WeightedMean) Reset() {
	m.totalWeightedValue = 0
	m.totalWeight = 0
}

// Totals exposes the raw accumulator state for snapshotting.
func (m *WeightedMean) Totals() (totalWeightedValue, totalWeight float64) {
	return m.totalWeightedValue, m.totalWeight
}

// Restore overwrites the accumulator state, used when resuming an
// evaluation pass from a snapshot.
func (m *WeightedMean) Restore(totalWeightedValue, totalWeight float64) {
	m.totalWeightedValue = totalWeightedValue
	m.totalWeight = totalWeight
}
