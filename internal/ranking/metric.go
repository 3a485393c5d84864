package ranking

import (
	"fmt"

	"github.com/ricesearch/rank-eval/internal/pkg/errors"
)

// Kind identifies one of the supported ranking metrics.
type Kind string

// Supported metric kinds. The string values double as the factory keys
// and the default metric names.
const (
	KindMRR         Kind = "mrr"
	KindARP         Kind = "arp"
	KindPrecision   Kind = "precision"
	KindRecall      Kind = "recall"
	KindMAP         Kind = "map"
	KindDCG         Kind = "dcg"
	KindNDCG        Kind = "ndcg"
	KindAlphaDCG    Kind = "alpha_dcg"
	KindPrecisionIA Kind = "precision_ia"
	KindOPA         Kind = "ordered_pair_accuracy"
)

// DefaultAlpha is the redundancy penalty used by alpha-DCG when the
// caller does not set one.
const DefaultAlpha = 0.5

// Options configures a metric at construction time. The zero value of
// every field means "use the default": unbounded cutoff, DefaultAlpha,
// positional tie-breaking, default gain and discount.
type Options struct {
	// Name labels the metric in results and snapshots. Defaults to the
	// kind key, suffixed with the cutoff when one is set (e.g. "ndcg_5").
	Name string

	// Topn caps how many top-ranked items the metric considers.
	// Zero means the whole valid list.
	Topn int

	// Alpha is the alpha-DCG redundancy penalty, in [0, 1].
	Alpha float64

	// Seed keys the pseudo-random tie-breaking draw. Zero leaves ties
	// broken by position.
	Seed int64

	// Gain overrides the label-to-gain function for DCG and NDCG.
	Gain GainFunc

	// Discount overrides the rank-discount function for DCG, NDCG and
	// alpha-DCG.
	Discount DiscountFunc
}

// Config is the serializable configuration record of a metric, used by
// external checkpointing.
type Config struct {
	Kind  Kind    `json:"kind" yaml:"kind"`
	Name  string  `json:"name" yaml:"name"`
	Topn  int     `json:"topn,omitempty" yaml:"topn,omitempty"`
	Alpha float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	Seed  int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Metric binds one scoring algorithm and its hyperparameters to a
// running weighted-mean aggregator. A Metric is created once, updated
// with batches across an evaluation pass, and reset between passes.
//
// Metric is not synchronized; concurrent Update calls on the same
// instance are a data race the caller must prevent.
type Metric struct {
	kind   Kind
	name   string
	topn   int
	alpha  float64
	seed   int64
	scorer scorer
	agg    WeightedMean
}

// New constructs a metric of the given kind. It fails with a validation
// error on an unknown kind, a negative cutoff, or an out-of-range alpha.
func New(kind Kind, opts Options) (*Metric, error) {
	if opts.Topn < 0 {
		return nil, errors.ValidationError(fmt.Sprintf("topn must not be negative, got %d", opts.Topn))
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, errors.ValidationError(fmt.Sprintf("alpha must be in [0, 1], got %g", opts.Alpha))
	}

	gain := opts.Gain
	if gain == nil {
		gain = DefaultGain
	}
	discount := opts.Discount
	if discount == nil {
		discount = DefaultDiscount
	}
	alpha := opts.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}

	var s scorer
	switch kind {
	case KindMRR:
		s = mrrScorer{topn: opts.Topn}
	case KindARP:
		s = arpScorer{}
	case KindPrecision:
		s = precisionScorer{topn: opts.Topn}
	case KindRecall:
		s = recallScorer{topn: opts.Topn}
	case KindMAP:
		s = mapScorer{topn: opts.Topn}
	case KindDCG:
		s = dcgScorer{topn: opts.Topn, gain: gain, discount: discount}
	case KindNDCG:
		s = ndcgScorer{topn: opts.Topn, gain: gain, discount: discount}
	case KindAlphaDCG:
		s = alphaDCGScorer{topn: opts.Topn, alpha: alpha, discount: discount}
	case KindPrecisionIA:
		s = precisionIAScorer{topn: opts.Topn}
	case KindOPA:
		s = opaScorer{}
	default:
		return nil, errors.InvalidRequestError(fmt.Sprintf("unsupported metric kind: %q", kind))
	}

	name := opts.Name
	if name == "" {
		name = string(kind)
		if opts.Topn > 0 {
			name = fmt.Sprintf("%s_%d", kind, opts.Topn)
		}
	}

	return &Metric{
		kind:   kind,
		name:   name,
		topn:   opts.Topn,
		alpha:  alpha,
		seed:   opts.Seed,
		scorer: s,
	}, nil
}

// Name returns the metric's display name.
func (m *Metric) Name() string { return m.name }

// Kind returns the metric kind.
func (m *Metric) Kind() Kind { return m.kind }

// Config returns the metric's serializable configuration record.
func (m *Metric) Config() Config {
	return Config{
		Kind:  m.kind,
		Name:  m.name,
		Topn:  m.topn,
		Alpha: m.alpha,
		Seed:  m.seed,
	}
}

// Update scores every list in the batch and folds the per-list results
// into the running aggregate. It returns the batch-local weighted mean,
// useful for per-step telemetry, without disturbing the running total.
//
// The whole batch is validated and ranked before the first aggregate
// update: a failed Update leaves the running state untouched, so the
// caller can fix the input and re-invoke without double-counting.
//
// sampleWeight further scales each list's contribution weight: nil
// means 1.0 everywhere, a single element broadcasts to the whole batch,
// and a slice of batch length weighs lists individually. Per-item
// external weights belong in List.Weights. Any other length is a shape
// error.
func (m *Metric) Update(batch Batch, sampleWeight []float64) (float64, error) {
	sw, err := broadcastSampleWeight(sampleWeight, len(batch))
	if err != nil {
		return 0, err
	}

	prep := make([]*prepared, len(batch))
	for li, l := range batch {
		if m.requiresSubtopics() && l.Subtopics == nil {
			return 0, errors.ValidationError(fmt.Sprintf(
				"%s requires subtopic labels", m.kind)).WithDetail("list", fmt.Sprintf("%d", li))
		}
		p, err := prepare(l, m.seed)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				return 0, appErr.WithDetail("list", fmt.Sprintf("%d", li))
			}
			return 0, err
		}
		prep[li] = p
	}

	var local WeightedMean
	for li, p := range prep {
		var value, weight float64
		if p.nvalid > 1 {
			value, weight = m.scorer.scoreList(p)
		}
		weight *= sw[li]

		local.Add(value, weight)
		m.agg.Add(value, weight)
	}
	return local.Result(), nil
}

// requiresSubtopics reports whether the metric's scorer consumes
// subtopic labels. For these kinds a list without Subtopics is a shape
// error rather than a degenerate list.
func (m *Metric) requiresSubtopics() bool {
	return m.kind == KindAlphaDCG || m.kind == KindPrecisionIA
}

// Result returns the all-time running weighted mean.
func (m *Metric) Result() float64 {
	return m.agg.Result()
}

// Reset clears the running aggregate, typically between passes.
func (m *Metric) Reset() {
	m.agg.Reset()
}

// Totals exposes the raw aggregate state for snapshotting.
func (m *Metric) Totals() (totalWeightedValue, totalWeight float64) {
	return m.agg.Totals()
}

// Restore overwrites the aggregate state from a snapshot.
func (m *Metric) Restore(totalWeightedValue, totalWeight float64) {
	m.agg.Restore(totalWeightedValue, totalWeight)
}

// broadcastSampleWeight resolves the external sample weight against the
// batch size: absent, scalar, or per-list.
func broadcastSampleWeight(sampleWeight []float64, batchLen int) ([]float64, error) {
	sw := make([]float64, batchLen)
	switch {
	case sampleWeight == nil:
		for i := range sw {
			sw[i] = 1
		}
	case len(sampleWeight) == 1:
		for i := range sw {
			sw[i] = sampleWeight[0]
		}
	case len(sampleWeight) == batchLen:
		copy(sw, sampleWeight)
	default:
		return nil, errors.ValidationError(fmt.Sprintf(
			"sample weight length %d not broadcastable to batch of %d lists",
			len(sampleWeight), batchLen))
	}
	for i, w := range sw {
		if w < 0 {
			return nil, errors.ValidationError(fmt.Sprintf("negative sample weight %g at index %d", w, i))
		}
	}
	return sw, nil
}
