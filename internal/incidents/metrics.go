package incidents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricIncidents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "incidents_total",
	Help: "Upstream failures recorded by source",
}, []string{"source"})
