package stt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_audio_bytes_total",
		Help: "Total audio bytes streamed to provider",
	})

	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_frames_total",
		Help: "Total audio frames streamed to provider",
	})

	metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_connect_ms",
		Help:    "Time to establish provider connection (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	})

	metricLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_transcribe_ms",
		Help:    "End to end latency of one utterance transcription (ms)",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 10),
	})

	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_requests_total",
		Help: "Transcription requests by result (ok, empty, error, rejected, silent)",
	}, []string{"result"})
)
