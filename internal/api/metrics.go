package api

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values of migrascope_analyses_total.
const (
	outcomeSuccess = "success"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

type metrics struct {
	analyses *prometheus.CounterVec
	packets  prometheus.Counter
	duration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migrascope_analyses_total",
				Help: "Number of analysis requests by outcome.",
			},
			[]string{"outcome"},
		),
		packets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "migrascope_analyzed_packets_total",
			Help: "Number of packet records analyzed successfully.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "migrascope_analysis_duration_seconds",
			Help:    "Time spent parsing and analyzing a submitted table.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.analyses, m.packets, m.duration)
	return m
}
