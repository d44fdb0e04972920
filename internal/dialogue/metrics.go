package dialogue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_decisions_total",
		Help: "Resolved utterances by field type and outcome",
	}, []string{"field_type", "kind"})

	metricIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_utterances_ignored_total",
		Help: "Utterances dropped without resolution (done, silence)",
	}, []string{"reason"})

	metricConfigNoops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_config_noops_total",
		Help: "Utterances ignored because the form had no usable fields",
	})

	metricCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_forms_completed_total",
		Help: "Sessions that answered every field",
	})

	metricEmitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_emit_errors_total",
		Help: "Commands that could not be delivered to the client",
	})
)
