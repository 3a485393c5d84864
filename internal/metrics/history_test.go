package metrics

import (
	"testing"
	"time"
)

func TestMetricHistory_MeanMode(t *testing.T) {
	h := NewMetricHistory(5*time.Minute, 12)

	h.Record(10)
	h.Record(20)
	h.Record(30)

	// Live bucket reports the mean of its observations.
	points := h.History()
	if len(points) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(points))
	}
	if points[0].Value != 20 {
		t.Errorf("expected mean 20, got %f", points[0].Value)
	}
}

func TestMetricHistory_SumMode(t *testing.T) {
	h := NewMetricHistory(5*time.Minute, 12)

	h.RecordSum(3)
	h.RecordSum(7)
	h.RecordCount()

	points := h.History()
	if len(points) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(points))
	}
	if points[0].Value != 11 {
		t.Errorf("expected sum 11, got %f", points[0].Value)
	}
}

func TestMetricHistory_Empty(t *testing.T) {
	h := NewMetricHistory(5*time.Minute, 12)
	if points := h.History(); len(points) != 0 {
		t.Errorf("expected no data points, got %d", len(points))
	}
}

func TestMetricHistory_Since(t *testing.T) {
	h := NewMetricHistory(5*time.Minute, 12)
	h.Record(42)

	if points := h.HistorySince(time.Now().Add(-time.Hour)); len(points) != 1 {
		t.Errorf("expected 1 data point in window, got %d", len(points))
	}
	if points := h.HistorySince(time.Now().Add(time.Hour)); len(points) != 0 {
		t.Errorf("expected 0 data points after future cutoff, got %d", len(points))
	}
}

func TestTimeSeriesData_RecordUpdate(t *testing.T) {
	ts := NewTimeSeriesData()

	ts.RecordUpdate(5, 0.002)
	ts.RecordUpdate(3, 0.004)

	rate := ts.UpdateRate.History()
	if len(rate) != 1 || rate[0].Value != 2 {
		t.Errorf("expected update rate bucket of 2, got %v", rate)
	}

	lists := ts.ListRate.History()
	if len(lists) != 1 || lists[0].Value != 8 {
		t.Errorf("expected list rate bucket of 8, got %v", lists)
	}

	latency := ts.UpdateLatency.History()
	if len(latency) != 1 || latency[0].Value != 0.003 {
		t.Errorf("expected mean latency 0.003, got %v", latency)
	}
}

func TestTimeSeriesData_MeanHistories(t *testing.T) {
	ts := NewTimeSeriesData()

	ts.RecordMean("ndcg_5", 0.5)
	ts.RecordMean("ndcg_5", 0.7)
	ts.RecordMean("mrr", 0.25)

	histories := ts.MeanHistories()
	if len(histories) != 2 {
		t.Fatalf("expected 2 metric series, got %d", len(histories))
	}

	ndcg := histories["ndcg_5"]
	if len(ndcg) != 1 || ndcg[0].Value != 0.6 {
		t.Errorf("expected ndcg_5 mean 0.6, got %v", ndcg)
	}
	mrr := histories["mrr"]
	if len(mrr) != 1 || mrr[0].Value != 0.25 {
		t.Errorf("expected mrr mean 0.25, got %v", mrr)
	}
}
