package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"formvoice/agent/internal/resilience"
	"formvoice/agent/internal/types"
)

var ErrEmptyAnswer = errors.New("llm: empty answer")

type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer is one chat-completion round trip against a provider.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Assistant extracts free-text answers and writes field questions on top of
// a Completer. It satisfies resolve.Extractor.
type Assistant struct {
	completer Completer
	provider  string
	cb        *gobreaker.CircuitBreaker
	timeout   time.Duration
	logger    *zap.Logger
}

func NewAssistant(provider string, c Completer, cb *gobreaker.CircuitBreaker, timeout time.Duration, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Assistant{
		completer: c,
		provider:  provider,
		cb:        cb,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "llm"), zap.String("provider", provider)),
	}
}

func (a *Assistant) call(ctx context.Context, op string, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()
	do := func() (string, error) { return a.completer.Complete(ctx, req) }

	var out string
	var err error
	if a.cb != nil {
		out, err = resilience.Call(a.cb, do)
	} else {
		out, err = do()
	}
	metricLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
	if err == nil {
		if out = cleanAnswer(out); out == "" {
			err = ErrEmptyAnswer
		}
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	metricRequests.WithLabelValues(a.provider, op, result).Inc()
	return out, err
}

func (a *Assistant) Extract(ctx context.Context, field types.Field, question, utterance string) (string, error) {
	out, err := a.call(ctx, "extract", Request{
		System:      extractSystemPrompt,
		User:        extractUserPrompt(field, question, utterance),
		Temperature: 0.2,
		MaxTokens:   50,
	})
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", field.Name, err)
	}
	return out, nil
}

// Question writes the spoken prompt for one field.
func (a *Assistant) Question(ctx context.Context, f types.Field) (string, error) {
	out, err := a.call(ctx, "question", Request{
		System:      questionSystemPrompt,
		User:        questionUserPrompt(f),
		Temperature: 0.7,
		MaxTokens:   60,
	})
	if err != nil {
		return "", fmt.Errorf("question %s: %w", f.Name, err)
	}
	return strings.TrimRight(out, "? "), nil
}

// Generate returns a question for every field. Fields whose generation fails
// fall back to their label; the failures are returned joined.
func (a *Assistant) Generate(ctx context.Context, fields []types.Field) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	var errs []error
	for _, f := range fields {
		q, err := a.Question(ctx, f)
		if err != nil {
			a.logger.Warn("question generation failed; using label", zap.String("field", f.Name), zap.Error(err))
			errs = append(errs, err)
			q = f.DisplayName()
		}
		if q == "" {
			q = f.DisplayName()
		}
		out[f.Name] = q
	}
	return out, errors.Join(errs...)
}

func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}
