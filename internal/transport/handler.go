// Package transport serves the client-facing audio websocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"formvoice/agent/internal/auth"
	"formvoice/agent/internal/session"
	"formvoice/agent/internal/types"
)

const maxFrameBytes = 4 << 20

type FormSource interface {
	GetForm(id string) (types.Form, error)
}

type startMessage struct {
	Type      string            `json:"type"`
	FormID    string            `json:"form_id,omitempty"`
	Fields    []types.Field     `json:"fields,omitempty"`
	Questions map[string]string `json:"questions,omitempty"`
}

type Options struct {
	Session        session.Config
	StartTimeout   time.Duration
	WriteTimeout   time.Duration
	OriginPatterns []string
	// TokenSecret, when set, requires a session token on every connection.
	TokenSecret string
	TokenSkew   time.Duration
}

type Server struct {
	forms  FormSource
	reg    *Registry
	opts   Options
	deps   session.Deps
	logger *zap.Logger
}

// NewServer builds the /stt handler. deps is a template: every connection
// gets its own copy with the connection as Emitter.
func NewServer(forms FormSource, reg *Registry, opts Options, deps session.Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 10 * time.Second
	}
	deps.Logger = logger
	return &Server{forms: forms, reg: reg, opts: opts, deps: deps, logger: logger.With(zap.String("component", "transport"))}
}

func (s *Server) HandleSTT(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	formID := q.Get("form_id")
	sessionID := q.Get("session_id")
	if s.opts.TokenSecret != "" {
		claims, err := auth.ValidateSessionToken(s.opts.TokenSecret, bearer(r), sessionID, formID, time.Now(), s.opts.TokenSkew)
		if err != nil {
			metricConnections.WithLabelValues("unauthorized").Inc()
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		sessionID, formID = claims.SessionID, claims.FormID
	}
	var form *types.Form
	if formID != "" {
		f, err := s.forms.GetForm(formID)
		if err != nil {
			metricConnections.WithLabelValues("unknown_form").Inc()
			http.Error(w, "unknown form", http.StatusNotFound)
			return
		}
		form = &f
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	c, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		metricConnections.WithLabelValues("accept_error").Inc()
		s.logger.Warn("ws accept", zap.Error(err))
		return
	}
	c.SetReadLimit(maxFrameBytes)
	log := s.logger.With(zap.String("session_id", sessionID))
	conn := newConn(c, s.opts.WriteTimeout, log)
	defer conn.Close(ws.StatusNormalClosure, "done")

	ctx := r.Context()
	if form == nil {
		f, err := s.readStart(ctx, c)
		if err != nil {
			metricConnections.WithLabelValues("bad_start").Inc()
			log.Info("rejecting connection", zap.Error(err))
			conn.Close(ws.StatusPolicyViolation, "expected start message")
			return
		}
		form = &f
	}

	if s.reg.Replace(sessionID, conn) {
		log.Info("previous connection replaced")
		if s.deps.Events != nil {
			s.deps.Events.AppendEvent(sessionID, "client_replaced", nil)
		}
	}
	defer s.reg.Remove(sessionID, conn)
	metricConnections.WithLabelValues("ok").Inc()

	deps := s.deps
	deps.Emitter = conn
	sess := session.New(sessionID, s.opts.Session, deps)
	if err := sess.Start(*form); err != nil {
		log.Error("session start", zap.Error(err))
		conn.Close(ws.StatusInternalError, "session start failed")
		return
	}
	err = sess.Serve(ctx, conn)
	switch {
	case errors.Is(err, session.ErrIdle):
		conn.Close(ws.StatusNormalClosure, "idle")
	case err != nil:
		log.Warn("session ended with error", zap.Error(err))
		conn.Close(ws.StatusInternalError, "session error")
	}
}

// readStart waits for the first text frame naming or describing the form.
func (s *Server) readStart(ctx context.Context, c *ws.Conn) (types.Form, error) {
	rctx, cancel := context.WithTimeout(ctx, s.opts.StartTimeout)
	defer cancel()
	var msg startMessage
	if err := wsjson.Read(rctx, c, &msg); err != nil {
		return types.Form{}, fmt.Errorf("read start: %w", err)
	}
	if msg.Type != "start" {
		return types.Form{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	if len(msg.Fields) == 0 {
		if msg.FormID == "" {
			return types.Form{}, errors.New("start needs form_id or fields")
		}
		return s.forms.GetForm(msg.FormID)
	}
	id := msg.FormID
	if id == "" {
		id = uuid.New().String()
	}
	return types.Form{ID: id, Fields: msg.Fields, Questions: msg.Questions, CreatedAt: time.Now().UTC()}, nil
}

// bearer reads the token from the Authorization header or, for browsers
// that cannot set headers on a websocket, the token query parameter.
func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
