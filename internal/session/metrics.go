package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessions_active",
		Help: "Started sessions that have not disconnected",
	})

	gaugeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_queue_depth",
		Help: "Chunks waiting in a session queue (last observed)",
	})

	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_audio_bytes_total",
		Help: "Total audio bytes accepted from clients",
	})

	metricUtterances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_utterances_total",
		Help: "Utterances handed to the dialogue by flush reason",
	}, []string{"reason"})

	metricEmptyRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_empty_transcript_retries_total",
		Help: "Transcriptions repeated after an empty result",
	})

	metricTranscriberErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_transcriber_errors_total",
		Help: "Transcriber failures folded into empty transcripts",
	})
)
