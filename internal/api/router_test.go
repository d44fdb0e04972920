package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formvoice/agent/internal/auth"
	"formvoice/agent/internal/health"
	"formvoice/agent/internal/incidents"
	"formvoice/agent/internal/sink"
	"formvoice/agent/internal/store"
	"formvoice/agent/internal/types"
)

type stubQuestions struct {
	out map[string]string
	err error
}

func (s stubQuestions) Generate(context.Context, []types.Field) (map[string]string, error) {
	return s.out, s.err
}

type memIncidents struct{ list []incidents.Incident }

func (m *memIncidents) RecordIncident(_ context.Context, sessionID, source, field string, err error) {
	m.list = append(m.list, incidents.Incident{SessionID: sessionID, Source: source, FieldName: field, Message: err.Error()})
}

func (m *memIncidents) Recent(context.Context, int) ([]incidents.Incident, error) { return m.list, nil }

type fixedActive []string

func (f fixedActive) IDs() []string { return f }

func newTestRouter(t *testing.T, d Deps) (*httptest.Server, *store.Store) {
	t.Helper()
	st := store.New()
	srv := httptest.NewServer(NewRouter(NewHandlers(st, d)))
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateFormGeneratesMissingQuestions(t *testing.T) {
	inc := &memIncidents{}
	srv, st := newTestRouter(t, Deps{
		Questions: stubQuestions{
			out: map[string]string{"email": "What's your email address"},
			err: errors.New("question phone: llm: circuit breaker is open"),
		},
		Incidents: inc,
	})

	resp := postJSON(t, srv.URL+"/forms", map[string]any{
		"fields": []map[string]any{
			{"name": "email", "type": "email"},
			{"name": "phone", "label": "Phone number", "type": "tel"},
			{"name": "gender", "type": "radio", "options": []string{"Male", "Female"}},
		},
		"questions": map[string]string{"gender": "What's your gender"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var form types.Form
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&form))
	assert.NotEmpty(t, form.ID)
	assert.Equal(t, "What's your email address", form.Questions["email"])
	assert.Equal(t, "Phone number", form.Questions["phone"])
	assert.Equal(t, "What's your gender", form.Questions["gender"])

	stored, err := st.GetForm(form.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Fields, 3)

	require.Len(t, inc.list, 1)
	assert.Equal(t, "question_generation", inc.list[0].Source)

	get, err := http.Get(srv.URL + "/forms/" + form.ID)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
}

func TestCreateFormRejectsBadInput(t *testing.T) {
	srv, _ := newTestRouter(t, Deps{})

	cases := []any{
		map[string]any{"fields": []any{}},
		map[string]any{"fields": []map[string]any{{"name": "", "type": "text"}}},
		map[string]any{"fields": []map[string]any{{"name": "a"}, {"name": "a"}}},
		map[string]any{"fields": []map[string]any{{"name": "size", "type": "select"}}},
	}
	for _, body := range cases {
		resp := postJSON(t, srv.URL+"/forms", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%v", body)
	}

	resp, err := http.Post(srv.URL+"/forms", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFormDuplicateID(t *testing.T) {
	srv, _ := newTestRouter(t, Deps{})
	body := map[string]any{"form_id": "f1", "fields": []map[string]any{{"name": "a"}}}
	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/forms", body).StatusCode)
	assert.Equal(t, http.StatusConflict, postJSON(t, srv.URL+"/forms", body).StatusCode)
}

func TestUnknownResources404(t *testing.T) {
	srv, _ := newTestRouter(t, Deps{})
	for _, path := range []string{"/forms/unknown", "/sessions/unknown/events", "/sessions/x/other", "/health/deps"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestSessionEventsAnswersAndIncidents(t *testing.T) {
	answers := sink.NewMemory()
	require.NoError(t, answers.Record(context.Background(), "s1", types.Answer{Field: "email", Value: "a@b.co"}))
	inc := &memIncidents{}
	inc.RecordIncident(context.Background(), "s1", "transcriber", "email", errors.New("timeout"))

	srv, st := newTestRouter(t, Deps{Answers: answers, Incidents: inc, Active: fixedActive{"s1"}})
	st.AppendEvent("s1", "session_started", nil)

	var events struct {
		Events []types.Event `json:"events"`
	}
	getJSON(t, srv.URL+"/sessions/s1/events", &events)
	require.Len(t, events.Events, 1)

	var ans struct {
		Answers []types.Answer `json:"answers"`
	}
	getJSON(t, srv.URL+"/sessions/s1/answers", &ans)
	require.Len(t, ans.Answers, 1)
	assert.Equal(t, "a@b.co", ans.Answers[0].Value)

	var incs struct {
		Incidents []incidents.Incident `json:"incidents"`
	}
	getJSON(t, srv.URL+"/incidents?limit=5", &incs)
	require.Len(t, incs.Incidents, 1)
	assert.Equal(t, "transcriber", incs.Incidents[0].Source)

	var active struct {
		Active []string `json:"active"`
	}
	getJSON(t, srv.URL+"/sessions", &active)
	assert.Equal(t, []string{"s1"}, active.Active)
}

func TestDepsHealthStatusCode(t *testing.T) {
	srv, _ := newTestRouter(t, Deps{Health: func(context.Context) health.HealthStatus {
		return health.HealthStatus{OK: false, Checks: []health.CheckResult{{Name: "redis", Error: "down"}}}
	}})
	resp, err := http.Get(srv.URL + "/health/deps")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func getJSON(t *testing.T, url string, into any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, url)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestCreateSessionMintsToken(t *testing.T) {
	srv, st := newTestRouter(t, Deps{TokenSecret: "s3cret", TokenTTL: time.Minute})
	require.NoError(t, st.CreateForm(&types.Form{ID: "f1", Fields: []types.Field{{Name: "a"}}}))

	resp := postJSON(t, srv.URL+"/forms/f1/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	c, err := auth.ValidateSessionToken("s3cret", out.Token, out.SessionID, "f1", time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, out.SessionID, c.SessionID)
	assert.True(t, st.HasSession(out.SessionID))

	assert.Equal(t, http.StatusNotFound, postJSON(t, srv.URL+"/forms/missing/sessions", nil).StatusCode)
}
