package sink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "answer_sink_writes_total",
	Help: "Answer writes by result",
}, []string{"result"})
