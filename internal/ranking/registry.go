package ranking

import (
	"fmt"

	"github.com/ricesearch/rank-eval/internal/pkg/errors"
)

// Kinds returns every supported metric kind.
func Kinds() []Kind {
	return []Kind{
		KindMRR,
		KindARP,
		KindPrecision,
		KindRecall,
		KindMAP,
		KindDCG,
		KindNDCG,
		KindAlphaDCG,
		KindPrecisionIA,
		KindOPA,
	}
}

// Get constructs a metric from its string key, failing with an
// invalid-request error naming the key when it is not supported.
func Get(key string, opts Options) (*Metric, error) {
	for _, k := range Kinds() {
		if string(k) == key {
			return New(k, opts)
		}
	}
	return nil, errors.InvalidRequestError(fmt.Sprintf("unsupported metric: %q", key))
}

// DefaultMetrics returns the standard evaluation set: NDCG at the usual
// cutoffs plus the uncut core metrics.
func DefaultMetrics() ([]*Metric, error) {
	var metrics []*Metric
	for _, topn := range []int{1, 3, 5, 10} {
		m, err := New(KindNDCG, Options{Topn: topn})
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	for _, kind := range []Kind{KindARP, KindOPA, KindMRR, KindPrecision, KindMAP, KindDCG, KindNDCG} {
		m, err := New(kind, Options{})
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}
