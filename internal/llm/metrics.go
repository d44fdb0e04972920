package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "LLM calls by provider, operation (extract, question) and result",
	}, []string{"provider", "op", "result"})

	metricLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_latency_ms",
		Help:    "LLM call latency (ms)",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 10),
	}, []string{"op"})
)
