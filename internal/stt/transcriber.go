package stt

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"formvoice/agent/internal/audio"
	"formvoice/agent/internal/resilience"
)

var ErrEmptyAudio = errors.New("stt: empty audio")

// Transcriber turns one utterance of PCM16 mono audio into text.
// An empty string with a nil error means nothing intelligible was heard.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, pcm []byte) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	return f(ctx, pcm)
}

type guarded struct {
	next Transcriber
	cb   *gobreaker.CircuitBreaker
}

// Guard routes calls through a circuit breaker and records request metrics.
// Silent buffers are rejected before reaching the breaker.
func Guard(next Transcriber, cb *gobreaker.CircuitBreaker) Transcriber {
	return &guarded{next: next, cb: cb}
}

func (g *guarded) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(audio.TrimLeadingSilence(pcm)) == 0 {
		metricRequests.WithLabelValues("silent").Inc()
		return "", ErrEmptyAudio
	}
	start := time.Now()
	text, err := resilience.Call(g.cb, func() (string, error) { return g.next.Transcribe(ctx, pcm) })
	metricLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metricRequests.WithLabelValues("rejected").Inc()
	case err != nil:
		metricRequests.WithLabelValues("error").Inc()
	case text == "":
		metricRequests.WithLabelValues("empty").Inc()
	default:
		metricRequests.WithLabelValues("ok").Inc()
	}
	return text, err
}
