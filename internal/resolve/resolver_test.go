package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formvoice/agent/internal/types"
)

type stubExtractor struct {
	answer string
	err    error
	calls  int
	last   string
}

func (s *stubExtractor) Extract(_ context.Context, _ types.Field, question, utterance string) (string, error) {
	s.calls++
	s.last = question + "|" + utterance
	return s.answer, s.err
}

var fixedNow = time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)

func newResolver(ex Extractor) *Resolver {
	return New(ex, WithClock(func() time.Time { return fixedNow }))
}

func resolve(r *Resolver, f types.Field, text, buf string) Decision {
	return r.Resolve(context.Background(), Input{Field: f, Question: "q", Transcript: text, Buffer: buf})
}

func TestCheckboxCommitsMatchedOptionsInConfiguredOrder(t *testing.T) {
	r := newResolver(nil)
	f := types.Field{Name: "colors", Type: types.FieldCheckbox, Options: []string{"Red", "Green", "Blue"}}

	d := resolve(r, f, "blue and red", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "Red,Blue", d.Value)

	d = resolve(r, f, "green, green & GREEN", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "Green", d.Value)
}

func TestCheckboxRetryListsOptions(t *testing.T) {
	r := newResolver(nil)
	f := types.Field{Name: "colors", Type: types.FieldCheckbox, Options: []string{"Red", "Green", "Blue"}}

	d := resolve(r, f, "purple", "")
	assert.Equal(t, Retry, d.Kind)
	assert.Equal(t, "Please say one or more of: Red, Green, Blue", d.Message)
}

func TestRadioFirstOptionWins(t *testing.T) {
	r := newResolver(nil)
	f := types.Field{Name: "plan", Type: types.FieldRadio, Options: []string{"Basic", "Premium Plus"}}

	d := resolve(r, f, "I'll take the basic one.", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "Basic", d.Value)

	// option contains transcript
	d = resolve(r, f, "premium", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "Premium Plus", d.Value)

	d = resolve(r, types.Field{Name: "s", Type: types.FieldSelect, Options: []string{"A1", "B2"}}, "nothing", "")
	assert.Equal(t, Retry, d.Kind)
	assert.Equal(t, "Please say one of: A1, B2", d.Message)
}

func TestChoiceWithoutOptionsFallsBackToFreeText(t *testing.T) {
	ex := &stubExtractor{answer: "yes"}
	r := newResolver(ex)
	d := resolve(r, types.Field{Name: "agree", Type: types.FieldCheckbox}, "yes please", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "yes", d.Value)
	assert.Equal(t, 1, ex.calls)
}

func TestTimeField(t *testing.T) {
	r := newResolver(nil)
	f := types.Field{Name: "slot", Type: types.FieldTime}
	cases := map[string]string{
		"3 pm":             "15:00",
		"7 in the morning": "07:00",
		"14:00":            "14:00",
	}
	for in, want := range cases {
		d := resolve(r, f, in, "")
		require.Equal(t, Commit, d.Kind, in)
		assert.Equal(t, want, d.Value, in)
	}

	d := resolve(r, f, "whenever", "")
	assert.Equal(t, Retry, d.Kind)
	assert.Equal(t, MsgTime, d.Message)
}

func TestDateField(t *testing.T) {
	r := newResolver(nil)
	f := types.Field{Name: "dob", Type: types.FieldDate}

	d := resolve(r, f, "tomorrow", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "2024-03-11", d.Value)

	d = resolve(r, f, "banana", "")
	assert.Equal(t, Retry, d.Kind)
	assert.Equal(t, MsgDate, d.Message)
}

func TestEmailAcrossUtterances(t *testing.T) {
	r := newResolver(nil)
	f := types.Field{Name: "email", Type: types.FieldEmail}

	d := resolve(r, f, "john dot smith", "")
	require.Equal(t, Wait, d.Kind)
	assert.Equal(t, "john dot smith", d.Buffer)

	d = resolve(r, f, "at gmail dot com", d.Buffer)
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "john.smith@gmail.com", d.Value)
}

func TestEmailInvalidKeepsBuffer(t *testing.T) {
	r := newResolver(nil)
	f := types.Field{Name: "email", Type: types.FieldEmail}

	d := resolve(r, f, "hmm", "john")
	require.Equal(t, Wait, d.Kind)
	assert.Equal(t, "john hmm", d.Buffer)
}

func TestPhoneAcrossUtterances(t *testing.T) {
	r := newResolver(nil)
	f := types.Field{Name: "phone", Type: types.FieldTel}

	d := resolve(r, f, "98765", "")
	require.Equal(t, Wait, d.Kind)
	assert.Equal(t, "98765", d.Buffer)

	d = resolve(r, f, "43210", d.Buffer)
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "+919876543210", d.Value)
}

func TestPhoneCountryCodeOption(t *testing.T) {
	r := New(nil, WithCountryCode("+1"))
	d := resolve(r, types.Field{Name: "phone", Type: types.FieldTel}, "555 123 4567", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "+15551234567", d.Value)
}

func TestEmptyTranscript(t *testing.T) {
	r := newResolver(nil)

	d := resolve(r, types.Field{Name: "email", Type: types.FieldEmail}, "  ", "john")
	assert.Equal(t, Wait, d.Kind)
	assert.Equal(t, "john", d.Buffer)

	d = resolve(r, types.Field{Name: "phone", Type: types.FieldTel}, "", "123")
	assert.Equal(t, Wait, d.Kind)
	assert.Equal(t, "123", d.Buffer)

	for _, ft := range []types.FieldType{types.FieldText, types.FieldDate, types.FieldTime, types.FieldRadio, types.FieldOther} {
		d = resolve(r, types.Field{Name: "x", Type: ft, Options: []string{"a"}}, "", "")
		assert.Equal(t, Retry, d.Kind, ft)
		assert.Equal(t, MsgNotCaught, d.Message, ft)
	}
}

func TestFreeTextUsesExtractor(t *testing.T) {
	ex := &stubExtractor{answer: "  Jane Doe "}
	r := newResolver(ex)
	f := types.Field{Name: "full_name", Type: types.FieldText}

	d := r.Resolve(context.Background(), Input{Field: f, Question: "What's your name", Transcript: "my name is jane doe"})
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "Jane Doe", d.Value)
	assert.Equal(t, "What's your name|my name is jane doe", ex.last)
}

func TestFreeTextExtractorFailureRetries(t *testing.T) {
	boom := errors.New("upstream 503")
	r := newResolver(&stubExtractor{err: boom})
	d := resolve(r, types.Field{Name: "company", Type: types.FieldOther}, "acme", "")
	assert.Equal(t, Retry, d.Kind)
	assert.Equal(t, MsgNotCaught, d.Message)
	assert.ErrorIs(t, d.Cause, boom)

	r = newResolver(&stubExtractor{answer: "   "})
	d = resolve(r, types.Field{Name: "company", Type: types.FieldOther}, "acme", "")
	assert.Equal(t, Retry, d.Kind)
	assert.NoError(t, d.Cause)
}

func TestFreeTextNameHintsSkipExtractor(t *testing.T) {
	ex := &stubExtractor{answer: "nope"}
	r := newResolver(ex)

	d := resolve(r, types.Field{Name: "work_email", Type: types.FieldText}, "jane at example dot org", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "jane@example.org", d.Value)

	d = resolve(r, types.Field{Name: "mobileNumber", Type: types.FieldOther}, "nine eight seven six five four three two one zero", "")
	require.Equal(t, Commit, d.Kind)
	assert.Equal(t, "+919876543210", d.Value)
	assert.Equal(t, 0, ex.calls)
}

func TestNilExtractorRetries(t *testing.T) {
	r := newResolver(nil)
	d := resolve(r, types.Field{Name: "notes", Type: types.FieldText}, "anything", "")
	assert.Equal(t, Retry, d.Kind)
}
