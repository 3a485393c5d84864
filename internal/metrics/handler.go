package metrics

import (
	"encoding/json"
	"net/http"
)

// Handler returns an HTTP handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(m.PrometheusFormat()))
	})
}

// ServeHTTP implements http.Handler.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, r)
}

// HistoryHandler serves the time-series history as JSON: update rate,
// list throughput, update latency, and the per-metric running means.
func (m *Metrics) HistoryHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		response := struct {
			UpdateRate    []DataPoint            `json:"update_rate"`
			ListRate      []DataPoint            `json:"list_rate"`
			UpdateLatency []DataPoint            `json:"update_latency"`
			RunningMeans  map[string][]DataPoint `json:"running_means"`
		}{
			UpdateRate:    m.TimeSeries.UpdateRate.History(),
			ListRate:      m.TimeSeries.ListRate.History(),
			UpdateLatency: m.TimeSeries.UpdateLatency.History(),
			RunningMeans:  m.TimeSeries.MeanHistories(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})
}
