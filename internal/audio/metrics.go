package audio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segmenter_flushes_total",
		Help: "Utterances flushed by reason (silence_gap, max_segment, end_of_speech)",
	}, []string{"reason"})

	metricUtteranceMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "segmenter_utterance_ms",
		Help:    "Audio duration of flushed utterances (ms)",
		Buckets: prometheus.ExponentialBuckets(250, 1.6, 10),
	})

	metricChunkRMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "segmenter_chunk_rms",
		Help:    "RMS of incoming PCM16 chunks",
		Buckets: prometheus.ExponentialBuckets(25, 2, 10),
	})
)
