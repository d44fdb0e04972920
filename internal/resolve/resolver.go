// Package resolve turns one transcribed utterance into a decision for the
// field currently being asked: commit a normalized value, ask again, or wait
// for more speech.
package resolve

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"formvoice/agent/internal/types"
)

type Kind int

const (
	Wait Kind = iota
	Commit
	Retry
)

func (k Kind) String() string {
	switch k {
	case Commit:
		return "commit"
	case Retry:
		return "retry"
	default:
		return "wait"
	}
}

// Decision is the outcome of resolving one utterance.
// Buffer is the new per-field buffer and only matters for Wait.
// Cause carries an upstream failure that was folded into a Retry.
type Decision struct {
	Kind    Kind
	Value   string
	Message string
	Buffer  string
	Cause   error
}

func Committed(v string) Decision { return Decision{Kind: Commit, Value: v} }
func Retrying(m string) Decision { return Decision{Kind: Retry, Message: m} }
func Waiting(buf string) Decision { return Decision{Kind: Wait, Buffer: buf} }

const (
	MsgNotCaught = "Sorry, I didn't catch that. Could you repeat it?"
	MsgTime      = "Please say a time (e.g., 3 pm, 14:30, 7 in the morning)"
	MsgDate      = "Please say a date, for example: 4th July, tomorrow, or July 4 2024."
)

type Input struct {
	Field      types.Field
	Question   string
	Transcript string
	Buffer     string
}

// Extractor pulls the literal answer for a free-text field out of an utterance.
type Extractor interface {
	Extract(ctx context.Context, field types.Field, question, utterance string) (string, error)
}

type Resolver struct {
	extractor   Extractor
	countryCode string
	now         func() time.Time
	logger      *zap.Logger
}

type Option func(*Resolver)

func WithCountryCode(cc string) Option {
	return func(r *Resolver) {
		if cc = strings.TrimPrefix(strings.TrimSpace(cc), "+"); cc != "" {
			r.countryCode = cc
		}
	}
}

func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

func WithLogger(l *zap.Logger) Option { return func(r *Resolver) { r.logger = l } }

// New builds a Resolver. A nil extractor makes free-text fields always retry.
func New(extractor Extractor, opts ...Option) *Resolver {
	r := &Resolver{
		extractor:   extractor,
		countryCode: "91",
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve applies exactly one type policy to the utterance.
func (r *Resolver) Resolve(ctx context.Context, in Input) Decision {
	d := r.dispatch(ctx, in)
	metricDecisions.WithLabelValues(string(in.Field.Type), d.Kind.String()).Inc()
	return d
}

func (r *Resolver) dispatch(ctx context.Context, in Input) Decision {
	f := in.Field
	text := strings.TrimSpace(in.Transcript)
	if text == "" {
		if f.Type.Buffering() {
			return Waiting(in.Buffer)
		}
		return Retrying(MsgNotCaught)
	}

	switch f.Type {
	case types.FieldCheckbox:
		if len(f.Options) > 0 {
			return resolveMulti(text, f.Options)
		}
	case types.FieldRadio, types.FieldSelect:
		if len(f.Options) > 0 {
			return resolveSingle(text, f.Options)
		}
	case types.FieldTime:
		if v, ok := ParseTime(text); ok {
			return Committed(v)
		}
		return Retrying(MsgTime)
	case types.FieldDate:
		if v, ok := ParseDate(text, r.now()); ok {
			return Committed(v)
		}
		return Retrying(MsgDate)
	case types.FieldEmail:
		return resolveEmail(text, in.Buffer)
	case types.FieldTel:
		return r.resolvePhone(text, in.Buffer)
	case types.FieldText, types.FieldOther:
	}
	return r.freeText(ctx, f, in.Question, text)
}
