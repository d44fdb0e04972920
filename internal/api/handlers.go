package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formvoice/agent/internal/auth"
	"formvoice/agent/internal/health"
	"formvoice/agent/internal/incidents"
	"formvoice/agent/internal/store"
	"formvoice/agent/internal/types"
)

type QuestionGenerator interface {
	Generate(ctx context.Context, fields []types.Field) (map[string]string, error)
}

type AnswerReader interface {
	Answers(ctx context.Context, sessionID string) ([]types.Answer, error)
}

type IncidentLog interface {
	RecordIncident(ctx context.Context, sessionID, source, field string, err error)
	Recent(ctx context.Context, limit int) ([]incidents.Incident, error)
}

// ActiveSessions lists sessions with a live client connection.
type ActiveSessions interface {
	IDs() []string
}

type Handlers struct {
	store     *store.Store
	questions QuestionGenerator
	answers   AnswerReader
	incidents IncidentLog
	active    ActiveSessions
	health    func(ctx context.Context) health.HealthStatus
	secret    string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

type Deps struct {
	Questions QuestionGenerator
	Answers   AnswerReader
	Incidents IncidentLog
	Active    ActiveSessions
	Health    func(ctx context.Context) health.HealthStatus
	// TokenSecret signs session tokens; empty disables them.
	TokenSecret string
	TokenTTL    time.Duration
	Logger      *zap.Logger
}

func NewHandlers(st *store.Store, d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.TokenTTL <= 0 {
		d.TokenTTL = 10 * time.Minute
	}
	return &Handlers{
		store:     st,
		questions: d.Questions,
		answers:   d.Answers,
		incidents: d.Incidents,
		active:    d.Active,
		health:    d.Health,
		secret:    d.TokenSecret,
		tokenTTL:  d.TokenTTL,
		logger:    d.Logger.With(zap.String("component", "api")),
	}
}

type createFormRequest struct {
	FormID    string            `json:"form_id,omitempty"`
	Fields    []types.Field     `json:"fields"`
	Questions map[string]string `json:"questions,omitempty"`
}

func (h *Handlers) HandleCreateForm(w http.ResponseWriter, r *http.Request) {
	var req createFormRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := validateFields(req.Fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := req.FormID
	if id == "" {
		id = uuid.New().String()
	}
	questions := make(map[string]string, len(req.Fields))
	var missing []types.Field
	for _, f := range req.Fields {
		if q := strings.TrimSpace(req.Questions[f.Name]); q != "" {
			questions[f.Name] = q
			continue
		}
		missing = append(missing, f)
	}
	h.fillQuestions(r.Context(), id, missing, questions)

	form := &types.Form{ID: id, Fields: req.Fields, Questions: questions, CreatedAt: time.Now().UTC()}
	if err := h.store.CreateForm(form); err != nil {
		if errors.Is(err, store.ErrFormExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.logger.Info("form registered", zap.String("form_id", id), zap.Int("fields", len(form.Fields)), zap.Int("generated", len(missing)))
	writeJSON(w, http.StatusOK, form)
}

// fillQuestions asks the generator for the missing prompts. Without a
// generator, or for any field it fails on, the field label is used.
func (h *Handlers) fillQuestions(ctx context.Context, formID string, missing []types.Field, into map[string]string) {
	if len(missing) == 0 {
		return
	}
	var generated map[string]string
	if h.questions != nil {
		var err error
		generated, err = h.questions.Generate(ctx, missing)
		if err != nil && h.incidents != nil {
			h.incidents.RecordIncident(ctx, formID, "question_generation", "", err)
		}
	}
	for _, f := range missing {
		q := strings.TrimSpace(generated[f.Name])
		if q == "" {
			q = f.DisplayName()
		}
		into[f.Name] = q
	}
}

func validateFields(fields []types.Field) error {
	if len(fields) == 0 {
		return errors.New("fields must not be empty")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return errors.New("every field needs a name")
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case types.FieldRadio, types.FieldSelect, types.FieldCheckbox:
			if len(f.Options) == 0 {
				return errors.New("field " + f.Name + " needs options")
			}
		}
	}
	return nil
}

func (h *Handlers) HandleListForms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"form_ids": h.store.ListFormIDs()})
}

func (h *Handlers) HandleGetForm(w http.ResponseWriter, r *http.Request, id string) {
	f, err := h.store.GetForm(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HandleCreateSession reserves a session id for a form and, when tokens are
// enabled, mints the token the client presents on /stt.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request, formID string) {
	if _, err := h.store.GetForm(formID); err != nil {
		http.NotFound(w, r)
		return
	}
	id := uuid.New().String()
	out := map[string]any{
		"session_id": id,
		"form_id":    formID,
		"ws_path":    "/stt?form_id=" + formID + "&session_id=" + id,
	}
	if h.secret != "" {
		exp := time.Now().Add(h.tokenTTL)
		tok, err := auth.GenerateSessionToken(h.secret, auth.Claims{SessionID: id, FormID: formID, Exp: exp.Unix()})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out["token"] = tok
		out["expires_at"] = exp.UTC()
	}
	h.store.AppendEvent(id, "session_created", map[string]any{"form_id": formID})
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if h.active != nil {
		ids = h.active.IDs()
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": ids})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if !h.store.HasSession(id) {
		http.NotFound(w, r)
		return
	}
	events := h.store.ListEvents(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     events,
	})
}

func (h *Handlers) HandleListAnswers(w http.ResponseWriter, r *http.Request, id string) {
	if h.answers == nil {
		http.Error(w, "answer sink not configured", http.StatusServiceUnavailable)
		return
	}
	answers, err := h.answers.Answers(r.Context(), id)
	if err != nil {
		h.logger.Warn("read answers", zap.String("session_id", id), zap.Error(err))
		http.Error(w, "answer sink unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"answers":    answers,
	})
}

func (h *Handlers) HandleListIncidents(w http.ResponseWriter, r *http.Request) {
	if h.incidents == nil {
		writeJSON(w, http.StatusOK, map[string]any{"incidents": []incidents.Incident{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.incidents.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "incident log unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": list})
}

func (h *Handlers) HandleDepsHealth(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	st := h.health(ctx)
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
