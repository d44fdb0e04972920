package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"formvoice/agent/internal/audio"
	"formvoice/agent/internal/dialogue"
	"formvoice/agent/internal/stt"
	"formvoice/agent/internal/types"
)

var (
	ErrAlreadyStarted = errors.New("session: already started")
	ErrNotStarted     = errors.New("session: not started")
	ErrClosed         = errors.New("session: closed")
	ErrIdle           = errors.New("session: idle timeout")
)

type Config struct {
	Segmenter   audio.Config
	QueueSize   int
	Tick        time.Duration
	IdleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Segmenter: audio.DefaultConfig(),
		QueueSize: 256,
		Tick:      100 * time.Millisecond,
	}
}

type Deps struct {
	Transcriber stt.Transcriber
	Resolver    dialogue.FieldResolver
	Emitter     dialogue.Emitter
	Sink        dialogue.AnswerSink
	Events      dialogue.EventLog
	Incidents   dialogue.IncidentRecorder
	Logger      *zap.Logger
}

// AudioSource yields raw PCM chunks until the client goes away.
type AudioSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// Session is the per-connection runtime: an ingestion side that queues
// chunks and a processing side that segments, transcribes and resolves them
// strictly in arrival order.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	logger *zap.Logger

	queue     chan []byte
	seg       *audio.Segmenter
	lastAudio atomic.Int64

	mu   sync.Mutex
	ctrl *dialogue.Controller

	closeOnce sync.Once
	closed    chan struct{}
}

func New(id string, cfg Config, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	return &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(zap.String("component", "session"), zap.String("session_id", id)),
		queue:  make(chan []byte, cfg.QueueSize),
		seg:    audio.NewSegmenter(cfg.Segmenter),
		closed: make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Start binds the form to the session. It may be called once.
func (s *Session) Start(form types.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil {
		return ErrAlreadyStarted
	}
	s.ctrl = dialogue.NewController(s.id, form, dialogue.Deps{
		Resolver:  s.deps.Resolver,
		Emitter:   s.deps.Emitter,
		Sink:      s.deps.Sink,
		Events:    s.deps.Events,
		Incidents: s.deps.Incidents,
		Logger:    s.deps.Logger,
	})
	s.lastAudio.Store(time.Now().UnixNano())
	s.event("session_started", map[string]any{"form_id": form.ID, "fields": len(form.Fields)})
	s.logger.Info("session started", zap.String("form_id", form.ID), zap.Int("fields", len(form.Fields)))
	gaugeActive.Inc()
	return nil
}

func (s *Session) controller() *dialogue.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

// Cursor reports the field currently being asked, or dialogue.Done.
func (s *Session) Cursor() string {
	if c := s.controller(); c != nil {
		return c.Cursor()
	}
	return dialogue.Done
}

func (s *Session) Answers() []types.Answer {
	if c := s.controller(); c != nil {
		return c.Answers()
	}
	return nil
}

// PushAudio queues a chunk. It waits only for queue capacity.
func (s *Session) PushAudio(ctx context.Context, chunk []byte) error {
	if s.controller() == nil {
		return ErrNotStarted
	}
	if s.isClosed() {
		return ErrClosed
	}
	if len(chunk) == 0 {
		return nil
	}
	s.lastAudio.Store(time.Now().UnixNano())
	metricAudioBytes.Add(float64(len(chunk)))
	select {
	case s.queue <- chunk:
		return nil
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect stops both activities. Buffered audio is abandoned.
func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.controller() != nil {
			gaugeActive.Dec()
		}
		s.event("session_ended", map[string]any{"cursor": s.Cursor(), "answers": len(s.Answers())})
		s.logger.Info("session ended", zap.String("cursor", s.Cursor()))
	})
}

// Serve runs ingestion from src and processing until the source ends, the
// context is cancelled or the idle timeout fires.
func (s *Session) Serve(ctx context.Context, src AudioSource) error {
	defer s.Disconnect()
	ctx, cancel := s.bindClosed(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer s.Disconnect()
		for {
			chunk, err := src.Next(gctx)
			if err != nil {
				return nil
			}
			if err := s.PushAudio(gctx, chunk); err != nil {
				if errors.Is(err, ErrNotStarted) {
					return err
				}
				return nil
			}
		}
	})
	g.Go(func() error { return s.Run(gctx) })
	return g.Wait()
}

// Run is the processing loop. It drains every queued chunk on each tick.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := s.bindClosed(ctx)
	defer cancel()
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closed:
			return nil
		case <-ticker.C:
		}
		s.drain(ctx)
		if s.idle() {
			s.logger.Info("idle timeout", zap.Duration("idle_timeout", s.cfg.IdleTimeout))
			s.event("idle_timeout", nil)
			return ErrIdle
		}
	}
}

func (s *Session) idle() bool {
	if s.cfg.IdleTimeout <= 0 {
		return false
	}
	return time.Since(time.Unix(0, s.lastAudio.Load())) > s.cfg.IdleTimeout
}

func (s *Session) drain(ctx context.Context) {
	gaugeQueueDepth.Set(float64(len(s.queue)))
	for {
		if ctx.Err() != nil || s.isClosed() {
			return
		}
		select {
		case chunk := <-s.queue:
			if u, ok := s.seg.Push(chunk); ok {
				s.flush(ctx, u)
			}
		default:
			return
		}
	}
}

// bindClosed derives a context that is cancelled on Disconnect, so an
// in-flight transcription or resolution is abandoned with the session.
func (s *Session) bindClosed(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.closed:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Session) flush(ctx context.Context, u audio.Utterance) {
	ctrl := s.controller()
	if ctrl == nil {
		return
	}
	text := s.transcribe(ctx, u)
	if ctx.Err() != nil || s.isClosed() {
		return
	}
	metricUtterances.WithLabelValues(string(u.Reason)).Inc()
	s.logger.Info("utterance",
		zap.Int64("audio_ms", u.Duration.Milliseconds()),
		zap.Int("bytes", len(u.PCM)),
		zap.String("reason", string(u.Reason)),
		zap.Bool("voiced", u.Voiced),
		zap.Int("chars", len(text)),
	)
	s.event("utterance", map[string]any{"audio_ms": u.Duration.Milliseconds(), "reason": string(u.Reason), "text": text})
	ctrl.HandleUtterance(ctx, text, u.Voiced)
}

// transcribe retries once when a full-size buffer comes back empty.
// Errors are recorded and folded into an empty transcript.
func (s *Session) transcribe(ctx context.Context, u audio.Utterance) string {
	text, err := s.deps.Transcriber.Transcribe(ctx, u.PCM)
	if err != nil {
		s.transcriberFailed(ctx, err)
		return ""
	}
	if strings.TrimSpace(text) == "" && len(u.PCM) >= s.cfg.Segmenter.MinDecodeBytes {
		metricEmptyRetries.Inc()
		text, err = s.deps.Transcriber.Transcribe(ctx, u.PCM)
		if err != nil {
			s.transcriberFailed(ctx, err)
			return ""
		}
	}
	return strings.TrimSpace(text)
}

func (s *Session) transcriberFailed(ctx context.Context, err error) {
	if errors.Is(err, stt.ErrEmptyAudio) || ctx.Err() != nil {
		return
	}
	metricTranscriberErrors.Inc()
	s.logger.Warn("transcriber failed", zap.Error(err))
	if s.deps.Incidents != nil {
		s.deps.Incidents.RecordIncident(ctx, s.id, "transcriber", s.Cursor(), err)
	}
}

func (s *Session) event(typ string, payload map[string]any) {
	if s.deps.Events != nil {
		s.deps.Events.AppendEvent(s.id, typ, payload)
	}
}
