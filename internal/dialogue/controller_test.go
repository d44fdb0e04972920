package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"formvoice/agent/internal/resolve"
	"formvoice/agent/internal/types"
)

type recorder struct {
	mu        sync.Mutex
	cmds      []types.Command
	answers   []types.Answer
	incidents []string
	events    []string
}

func (r *recorder) Emit(_ context.Context, cmd types.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *recorder) Record(_ context.Context, _ string, a types.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, a)
	return nil
}

func (r *recorder) RecordIncident(_ context.Context, _, source, field string, _ error) {
	r.incidents = append(r.incidents, source+":"+field)
}

func (r *recorder) AppendEvent(_, typ string, _ map[string]any) types.Event {
	r.events = append(r.events, typ)
	return types.Event{Type: typ}
}

type scripted struct{ decisions []resolve.Decision }

func (s *scripted) Resolve(context.Context, resolve.Input) resolve.Decision {
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d
}

func newController(form types.Form, res FieldResolver, rec *recorder) *Controller {
	return NewController("sess-1", form, Deps{
		Resolver:  res,
		Emitter:   rec,
		Sink:      rec,
		Events:    rec,
		Incidents: rec,
	})
}

func sampleForm() types.Form {
	return types.Form{
		ID: "form-1",
		Fields: []types.Field{
			{Name: "color", Type: types.FieldRadio, Options: []string{"Red", "Blue"}},
			{Name: "email", Type: types.FieldEmail},
			{Name: "phone", Type: types.FieldTel},
			{Name: "when", Type: types.FieldTime},
		},
		Questions: map[string]string{"color": "Which color do you like"},
	}
}

func TestControllerWalksFieldsInOrder(t *testing.T) {
	rec := &recorder{}
	c := newController(sampleForm(), resolve.New(nil), rec)
	ctx := context.Background()

	for _, u := range []string{"blue", "john dot smith", "at gmail dot com", "98765", "43210", "whenever", "3 pm", "too late"} {
		c.HandleUtterance(ctx, u, true)
	}

	require.Equal(t, []types.Command{
		types.FillField("color", "Blue"),
		types.FillField("email", "john.smith@gmail.com"),
		types.FillField("phone", "+919876543210"),
		types.Clarify("when", resolve.MsgTime),
		types.FillField("when", "15:00"),
	}, rec.cmds)

	assert.True(t, c.Done())
	assert.Equal(t, Done, c.Cursor())
	answers := c.Answers()
	require.Len(t, answers, 4)
	assert.Equal(t, "Which color do you like", answers[0].Question)
	assert.Equal(t, "email", answers[1].Question)
	assert.Len(t, rec.answers, 4)
	assert.Contains(t, rec.events, "form_complete")
	assert.Empty(t, c.Buffer("email"))
	assert.Empty(t, c.Buffer("phone"))
}

func TestControllerWaitKeepsBufferAndEmitsNothing(t *testing.T) {
	rec := &recorder{}
	c := newController(sampleForm(), resolve.New(nil), rec)
	ctx := context.Background()
	c.HandleUtterance(ctx, "red", true)

	d, handled := c.HandleUtterance(ctx, "john", true)
	require.True(t, handled)
	assert.Equal(t, resolve.Wait, d.Kind)
	assert.Equal(t, "john", c.Buffer("email"))
	assert.Len(t, rec.cmds, 1)
	assert.Equal(t, "email", c.Cursor())
}

func TestControllerRetryClearsBuffer(t *testing.T) {
	rec := &recorder{}
	res := &scripted{decisions: []resolve.Decision{
		resolve.Waiting("partial"),
		resolve.Retrying("again please"),
	}}
	c := newController(types.Form{Fields: []types.Field{{Name: "a", Type: types.FieldEmail}}}, res, rec)
	ctx := context.Background()

	c.HandleUtterance(ctx, "x", true)
	assert.Equal(t, "partial", c.Buffer("a"))
	c.HandleUtterance(ctx, "y", true)
	assert.Empty(t, c.Buffer("a"))
	assert.Equal(t, []types.Command{types.Clarify("a", "again please")}, rec.cmds)
	assert.Equal(t, "a", c.Cursor())
}

type cancelOnResolve struct{ cancel context.CancelFunc }

func (r cancelOnResolve) Resolve(context.Context, resolve.Input) resolve.Decision {
	r.cancel()
	return resolve.Committed("Blue")
}

func TestControllerCancelledResolutionCommitsNothing(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	c := newController(sampleForm(), cancelOnResolve{cancel: cancel}, rec)

	_, handled := c.HandleUtterance(ctx, "blue", true)
	assert.False(t, handled)
	assert.Empty(t, rec.cmds)
	assert.Empty(t, rec.answers)
	assert.Empty(t, c.Answers())
	assert.Equal(t, "color", c.Cursor())
}

func TestControllerRedeliveredUtteranceDoesNotTouchCommittedField(t *testing.T) {
	rec := &recorder{}
	c := newController(sampleForm(), resolve.New(nil), rec)
	ctx := context.Background()

	c.HandleUtterance(ctx, "red", true)
	c.HandleUtterance(ctx, "red", true)

	require.Len(t, c.Answers(), 1)
	assert.Equal(t, "Red", c.Answers()[0].Value)
	assert.Equal(t, "email", c.Cursor())
	assert.Len(t, rec.cmds, 1)
	assert.Equal(t, "red", c.Buffer("email"))
}

func TestControllerMisconfiguredFormIsNoop(t *testing.T) {
	ctx := context.Background()
	forms := map[string]types.Form{
		"empty":     {},
		"duplicate": {Fields: []types.Field{{Name: "a"}, {Name: "a"}}},
		"unnamed":   {Fields: []types.Field{{Name: " "}}},
	}
	for name, form := range forms {
		rec := &recorder{}
		c := newController(form, &scripted{}, rec)
		_, handled := c.HandleUtterance(ctx, "hello", true)
		assert.False(t, handled, name)
		assert.Empty(t, rec.cmds, name)
		assert.Equal(t, Done, c.Cursor(), name)
	}
}

func TestControllerSilenceAndEmptyTranscripts(t *testing.T) {
	rec := &recorder{}
	c := newController(types.Form{Fields: []types.Field{{Name: "name", Type: types.FieldText}}}, resolve.New(nil), rec)
	ctx := context.Background()

	_, handled := c.HandleUtterance(ctx, "", false)
	assert.False(t, handled)
	assert.Empty(t, rec.cmds)

	d, handled := c.HandleUtterance(ctx, "", true)
	assert.True(t, handled)
	assert.Equal(t, resolve.Retry, d.Kind)
	assert.Equal(t, []types.Command{types.Clarify("name", resolve.MsgNotCaught)}, rec.cmds)
}

func TestControllerRecordsIncidentOnCause(t *testing.T) {
	rec := &recorder{}
	d := resolve.Retrying(resolve.MsgNotCaught)
	d.Cause = errors.New("timeout")
	c := newController(types.Form{Fields: []types.Field{{Name: "bio", Type: types.FieldText}}}, &scripted{decisions: []resolve.Decision{d}}, rec)

	c.HandleUtterance(context.Background(), "something", true)
	assert.Equal(t, []string{"extractor:bio"}, rec.incidents)
	assert.Equal(t, []types.Command{types.Clarify("bio", resolve.MsgNotCaught)}, rec.cmds)
}

func TestFillFieldOrderFollowsFields(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "fields")
		var fields []types.Field
		for i := 0; i < n; i++ {
			fields = append(fields, types.Field{
				Name:    fmt.Sprintf("f%d", i),
				Type:    types.FieldRadio,
				Options: []string{fmt.Sprintf("yes%d", i), fmt.Sprintf("no%d", i)},
			})
		}
		rec := &recorder{}
		c := newController(types.Form{Fields: fields}, resolve.New(nil), rec)

		steps := rapid.IntRange(0, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			cur := c.Cursor()
			var u string
			if cur != Done && rapid.Bool().Draw(rt, "match") {
				u = "yes" + cur[1:]
			} else {
				u = rapid.SampledFrom([]string{"maybe", "hmm", "zzz"}).Draw(rt, "noise")
			}
			before := len(rec.cmds)
			c.HandleUtterance(context.Background(), u, true)
			if len(rec.cmds)-before > 1 {
				rt.Fatalf("more than one command for one utterance")
			}
		}

		next := 0
		for _, cmd := range rec.cmds {
			if cmd.Type != types.CmdFillField {
				continue
			}
			if cmd.Field != fields[next].Name {
				rt.Fatalf("fill_field %q out of order, want %q", cmd.Field, fields[next].Name)
			}
			next++
		}
		if len(c.Answers()) != next {
			rt.Fatalf("answers %d != fill_field commands %d", len(c.Answers()), next)
		}
	})
}
