package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transport_connections_total",
		Help: "Client websocket connections by outcome",
	}, []string{"result"})

	metricFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transport_frames_total",
		Help: "Inbound frames by kind",
	}, []string{"kind"})

	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transport_commands_total",
		Help: "Outbound commands by type and result",
	}, []string{"type", "result"})
)
