package ranking

import (
	"math"
	"testing"

	"github.com/ricesearch/rank-eval/internal/pkg/errors"
)

func mustMetric(t *testing.T, kind Kind, opts Options) *Metric {
	t.Helper()
	m, err := New(kind, opts)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", kind, err)
	}
	return m
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		opts Options
	}{
		{name: "unknown kind", kind: Kind("bogus")},
		{name: "negative topn", kind: KindNDCG, opts: Options{Topn: -1}},
		{name: "alpha above one", kind: KindAlphaDCG, opts: Options{Alpha: 1.5}},
		{name: "negative alpha", kind: KindAlphaDCG, opts: Options{Alpha: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.kind, tt.opts); err == nil {
				t.Errorf("New(%s, %+v) expected error", tt.kind, tt.opts)
			}
		})
	}
}

func TestNew_Names(t *testing.T) {
	tests := []struct {
		kind Kind
		opts Options
		want string
	}{
		{kind: KindMRR, want: "mrr"},
		{kind: KindNDCG, opts: Options{Topn: 5}, want: "ndcg_5"},
		{kind: KindOPA, want: "ordered_pair_accuracy"},
		{kind: KindNDCG, opts: Options{Name: "my_ndcg", Topn: 5}, want: "my_ndcg"},
	}

	for _, tt := range tests {
		if got := mustMetric(t, tt.kind, tt.opts).Name(); got != tt.want {
			t.Errorf("New(%s, %+v).Name() = %s, want %s", tt.kind, tt.opts, got, tt.want)
		}
	}
}

func TestMetric_Config(t *testing.T) {
	m := mustMetric(t, KindAlphaDCG, Options{Topn: 10, Alpha: 0.25, Seed: 42})
	cfg := m.Config()

	want := Config{Kind: KindAlphaDCG, Name: "alpha_dcg_10", Topn: 10, Alpha: 0.25, Seed: 42}
	if cfg != want {
		t.Errorf("Config = %+v, want %+v", cfg, want)
	}
}

func TestMetric_UpdateAndResult(t *testing.T) {
	m := mustMetric(t, KindMRR, Options{})

	batch := Batch{
		{Labels: []float64{0, 1, 0}, Scores: []float64{0.9, 0.1, 0.5}},
	}
	mean, err := m.Update(batch, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if math.Abs(mean-1.0/3.0) > 1e-12 {
		t.Errorf("batch mean = %v, want 1/3", mean)
	}

	// A second batch folds into the running mean but the returned value
	// stays batch-local.
	batch2 := Batch{
		{Labels: []float64{1, 0}, Scores: []float64{0.9, 0.1}},
	}
	mean2, err := m.Update(batch2, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if mean2 != 1.0 {
		t.Errorf("second batch mean = %v, want 1.0", mean2)
	}
	if got, want := m.Result(), (1.0/3.0+1.0)/2.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("running mean = %v, want %v", got, want)
	}
}

func TestMetric_DegenerateListsExcluded(t *testing.T) {
	m := mustMetric(t, KindMRR, Options{})

	batch := Batch{
		{Labels: []float64{1, 0}, Scores: []float64{0.9, 0.1}},  // mrr 1.0
		{},                                                      // empty
		{Labels: []float64{1}, Scores: []float64{0.9}},          // single item
		{Labels: []float64{-1, -1}, Scores: []float64{0.9, 0.1}}, // all padding
		{Labels: []float64{0, 0}, Scores: []float64{0.9, 0.1}},  // nothing relevant
	}
	mean, err := m.Update(batch, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if mean != 1.0 {
		t.Errorf("batch mean = %v, want 1.0 (degenerate lists carry no weight)", mean)
	}
	if got := m.Result(); got != 1.0 {
		t.Errorf("running mean = %v, want 1.0", got)
	}
}

func TestMetric_SampleWeight(t *testing.T) {
	batch := Batch{
		{Labels: []float64{1, 0}, Scores: []float64{0.9, 0.1}}, // mrr 1.0
		{Labels: []float64{0, 1}, Scores: []float64{0.9, 0.1}}, // mrr 0.5
	}

	t.Run("per list", func(t *testing.T) {
		m := mustMetric(t, KindMRR, Options{})
		mean, err := m.Update(batch, []float64{3, 1})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if want := (3*1.0 + 1*0.5) / 4.0; math.Abs(mean-want) > 1e-12 {
			t.Errorf("mean = %v, want %v", mean, want)
		}
	})

	t.Run("scalar broadcast", func(t *testing.T) {
		m := mustMetric(t, KindMRR, Options{})
		mean, err := m.Update(batch, []float64{2})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if want := 0.75; math.Abs(mean-want) > 1e-12 {
			t.Errorf("mean = %v, want %v", mean, want)
		}
	})

	t.Run("zero weight drops the list", func(t *testing.T) {
		m := mustMetric(t, KindMRR, Options{})
		mean, err := m.Update(batch, []float64{0, 1})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if mean != 0.5 {
			t.Errorf("mean = %v, want 0.5", mean)
		}
	})

	t.Run("bad length", func(t *testing.T) {
		m := mustMetric(t, KindMRR, Options{})
		if _, err := m.Update(batch, []float64{1, 2, 3}); !errors.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("negative weight", func(t *testing.T) {
		m := mustMetric(t, KindMRR, Options{})
		if _, err := m.Update(batch, []float64{1, -1}); !errors.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestMetric_UpdateShapeError(t *testing.T) {
	m := mustMetric(t, KindMRR, Options{})

	batch := Batch{
		{Labels: []float64{1, 0}, Scores: []float64{0.9}},
	}
	if _, err := m.Update(batch, nil); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestMetric_FailedUpdateKeepsAggregate(t *testing.T) {
	// A malformed list anywhere in the batch must reject the whole
	// batch: valid lists scored before the bad one may not leak into
	// the running totals, or a corrected re-invoke double-counts them.
	mixed := Batch{
		{Labels: []float64{1, 0}, Scores: []float64{0.9, 0.1}},
		{Labels: []float64{1, 0}, Scores: []float64{0.9}},
	}

	t.Run("fresh metric", func(t *testing.T) {
		m := mustMetric(t, KindMRR, Options{})
		if _, err := m.Update(mixed, nil); !errors.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if wv, w := m.Totals(); wv != 0 || w != 0 {
			t.Errorf("Totals after failed Update = (%v, %v), want (0, 0)", wv, w)
		}
		if got := m.Result(); got != 0 {
			t.Errorf("Result after failed Update = %v, want 0", got)
		}
	})

	t.Run("prior state preserved", func(t *testing.T) {
		m := mustMetric(t, KindMRR, Options{})
		if _, err := m.Update(Batch{{Labels: []float64{0, 1}, Scores: []float64{0.9, 0.1}}}, nil); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		wantWV, wantW := m.Totals()

		if _, err := m.Update(mixed, nil); !errors.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if wv, w := m.Totals(); wv != wantWV || w != wantW {
			t.Errorf("Totals after failed Update = (%v, %v), want (%v, %v)", wv, w, wantWV, wantW)
		}
	})
}

func TestMetric_SubtopicsRequired(t *testing.T) {
	bare := Batch{
		{Labels: []float64{1, 1}, Scores: []float64{0.9, 0.7}},
	}
	covered := Batch{
		{Labels: []float64{1, 1}, Scores: []float64{0.9, 0.7}, Subtopics: [][]int{{0}, {1}}},
	}

	for _, kind := range []Kind{KindAlphaDCG, KindPrecisionIA} {
		t.Run(string(kind), func(t *testing.T) {
			m := mustMetric(t, kind, Options{})
			if _, err := m.Update(bare, nil); !errors.IsValidation(err) {
				t.Errorf("expected validation error for missing subtopics, got %v", err)
			}
			if wv, w := m.Totals(); wv != 0 || w != 0 {
				t.Errorf("Totals after rejected batch = (%v, %v), want (0, 0)", wv, w)
			}
			if _, err := m.Update(covered, nil); err != nil {
				t.Errorf("Update with subtopics failed: %v", err)
			}
		})
	}
}

func TestMetric_Reset(t *testing.T) {
	m := mustMetric(t, KindMRR, Options{})

	batch := Batch{
		{Labels: []float64{0, 1}, Scores: []float64{0.9, 0.1}},
	}
	if _, err := m.Update(batch, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	m.Reset()

	if got := m.Result(); got != 0 {
		t.Errorf("Result after Reset = %v, want 0", got)
	}
	if _, err := m.Update(Batch{{Labels: []float64{1, 0}, Scores: []float64{0.9, 0.1}}}, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := m.Result(); got != 1.0 {
		t.Errorf("Result after Reset+Update = %v, want 1.0", got)
	}
}

func TestMetric_SeededTieBreak(t *testing.T) {
	batch := Batch{
		{Labels: []float64{1, 0, 0, 0}, Scores: []float64{0.5, 0.5, 0.5, 0.5}},
	}

	first := mustMetric(t, KindMRR, Options{Seed: 42})
	second := mustMetric(t, KindMRR, Options{Seed: 42})

	v1, err := first.Update(batch, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	v2, err := second.Update(batch, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if v1 != v2 {
		t.Errorf("same seed gave different values: %v vs %v", v1, v2)
	}

	// Without a seed ties stay positional, putting the relevant item
	// first.
	unseeded := mustMetric(t, KindMRR, Options{})
	v3, err := unseeded.Update(batch, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if v3 != 1.0 {
		t.Errorf("unseeded mrr on tied scores = %v, want 1.0", v3)
	}
}

func TestMetric_TotalsRestore(t *testing.T) {
	m := mustMetric(t, KindNDCG, Options{Topn: 5})

	batch := Batch{
		{Labels: []float64{3, 2, 0}, Scores: []float64{0.9, 0.7, 0.5}},
		{Labels: []float64{0, 3}, Scores: []float64{0.9, 0.1}},
	}
	if _, err := m.Update(batch, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	tv, tw := m.Totals()
	restored := mustMetric(t, KindNDCG, Options{Topn: 5})
	restored.Restore(tv, tw)

	if got, want := restored.Result(), m.Result(); math.Abs(got-want) > 1e-12 {
		t.Errorf("restored Result = %v, want %v", got, want)
	}
}
