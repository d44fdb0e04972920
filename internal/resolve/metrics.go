package resolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_decisions_total",
		Help: "Resolver decisions by field type and kind (commit, retry, wait)",
	}, []string{"field_type", "kind"})

	metricExtractorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_extractor_errors_total",
		Help: "Free-text extractor calls that failed",
	})
)
