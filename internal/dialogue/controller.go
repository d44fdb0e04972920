// Package dialogue sequences a form's fields for one session: every resolved
// utterance either commits the current field and advances, asks the user to
// try again, or waits for more speech.
package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"formvoice/agent/internal/resolve"
	"formvoice/agent/internal/types"
)

// Done is reported by Cursor once every field has been answered.
const Done = "done"

var errMisconfigured = errors.New("dialogue: form has no usable fields")

type FieldResolver interface {
	Resolve(ctx context.Context, in resolve.Input) resolve.Decision
}

// Emitter delivers commands to the connected client.
type Emitter interface {
	Emit(ctx context.Context, cmd types.Command) error
}

// AnswerSink persists committed answers.
type AnswerSink interface {
	Record(ctx context.Context, sessionID string, a types.Answer) error
}

type EventLog interface {
	AppendEvent(sessionID, typ string, payload map[string]any) types.Event
}

type IncidentRecorder interface {
	RecordIncident(ctx context.Context, sessionID, source, field string, err error)
}

type Deps struct {
	Resolver  FieldResolver
	Emitter   Emitter
	Sink      AnswerSink
	Events    EventLog
	Incidents IncidentRecorder
	Logger    *zap.Logger
	Now       func() time.Time
}

type Controller struct {
	mu        sync.Mutex
	sessionID string
	form      types.Form
	cursor    int
	buffers   map[string]string
	answers   []types.Answer
	configErr error
	deps      Deps
	logger    *zap.Logger
}

func NewController(sessionID string, form types.Form, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	c := &Controller{
		sessionID: sessionID,
		form:      form,
		buffers:   make(map[string]string),
		deps:      deps,
		logger:    deps.Logger.With(zap.String("component", "dialogue"), zap.String("session_id", sessionID)),
	}
	c.configErr = validate(form.Fields)
	if c.configErr != nil {
		c.logger.Warn("form misconfigured; utterances will be ignored", zap.Error(c.configErr))
	}
	return c
}

func validate(fields []types.Field) error {
	if len(fields) == 0 {
		return errMisconfigured
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" || seen[f.Name] {
			return errMisconfigured
		}
		seen[f.Name] = true
	}
	return nil
}

// Cursor is the current field name, or Done.
func (c *Controller) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configErr != nil || c.cursor >= len(c.form.Fields) {
		return Done
	}
	return c.form.Fields[c.cursor].Name
}

func (c *Controller) Done() bool { return c.Cursor() == Done }

func (c *Controller) Buffer(field string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers[field]
}

func (c *Controller) Answers() []types.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Answer, len(c.answers))
	copy(out, c.answers)
	return out
}

// HandleUtterance resolves one transcript against the current field and
// emits at most one command. handled is false when nothing was resolved.
func (c *Controller) HandleUtterance(ctx context.Context, transcript string, voiced bool) (d resolve.Decision, handled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.configErr != nil {
		metricConfigNoops.Inc()
		c.logger.Warn("utterance ignored", zap.Error(c.configErr))
		return d, false
	}
	if c.cursor >= len(c.form.Fields) {
		metricIgnored.WithLabelValues("done").Inc()
		return d, false
	}
	if !voiced && strings.TrimSpace(transcript) == "" {
		metricIgnored.WithLabelValues("silence").Inc()
		return d, false
	}

	field := c.form.Fields[c.cursor]
	question := c.form.Question(field.Name)
	d = c.deps.Resolver.Resolve(ctx, resolve.Input{
		Field:      field,
		Question:   question,
		Transcript: transcript,
		Buffer:     c.buffers[field.Name],
	})
	if ctx.Err() != nil {
		// Session went away mid-resolution; nothing is committed or emitted.
		metricIgnored.WithLabelValues("cancelled").Inc()
		return d, false
	}
	if d.Cause != nil && c.deps.Incidents != nil {
		c.deps.Incidents.RecordIncident(ctx, c.sessionID, "extractor", field.Name, d.Cause)
	}
	metricDecisions.WithLabelValues(string(field.Type), d.Kind.String()).Inc()

	switch d.Kind {
	case resolve.Commit:
		c.commit(ctx, field, question, d.Value)
	case resolve.Retry:
		delete(c.buffers, field.Name)
		c.event("clarify", map[string]any{"field": field.Name, "message": d.Message})
		c.send(ctx, types.Clarify(field.Name, d.Message))
	case resolve.Wait:
		if d.Buffer == "" {
			delete(c.buffers, field.Name)
		} else {
			c.buffers[field.Name] = d.Buffer
		}
		c.logger.Debug("waiting for more input", zap.String("field", field.Name), zap.Int("buffered", len(d.Buffer)))
	}
	return d, true
}

func (c *Controller) commit(ctx context.Context, field types.Field, question, value string) {
	ans := types.Answer{Field: field.Name, Value: value, Question: question, At: c.deps.Now().UTC()}
	c.answers = append(c.answers, ans)
	delete(c.buffers, field.Name)
	c.cursor++

	c.logger.Info("field committed", zap.String("field", field.Name), zap.String("type", string(field.Type)))
	c.event("fill_field", map[string]any{"field": field.Name, "value": value})
	if c.deps.Sink != nil {
		if err := c.deps.Sink.Record(ctx, c.sessionID, ans); err != nil {
			c.logger.Warn("answer sink failed", zap.String("field", field.Name), zap.Error(err))
		}
	}
	c.send(ctx, types.FillField(field.Name, value))

	if c.cursor >= len(c.form.Fields) {
		metricCompleted.Inc()
		c.logger.Info("form complete", zap.Int("answers", len(c.answers)))
		c.event("form_complete", map[string]any{"answers": len(c.answers)})
	}
}

func (c *Controller) send(ctx context.Context, cmd types.Command) {
	if c.deps.Emitter == nil {
		return
	}
	if err := c.deps.Emitter.Emit(ctx, cmd); err != nil {
		metricEmitErrors.Inc()
		c.logger.Warn("emit failed", zap.String("type", cmd.Type), zap.String("field", cmd.Field), zap.Error(err))
	}
}

func (c *Controller) event(typ string, payload map[string]any) {
	if c.deps.Events != nil {
		c.deps.Events.AppendEvent(c.sessionID, typ, payload)
	}
}
