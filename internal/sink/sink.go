// Package sink persists committed answers outside the session so they
// survive a disconnect.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"formvoice/agent/internal/types"
)

const defaultTTL = 24 * time.Hour

type Config struct {
	KeyPrefix string
	TTL       time.Duration
}

// Redis appends answers to a per-session list.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// FromURL parses a redis:// URL such as redis://:pass@host:6379/0.
func FromURL(rawURL string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return newRedis(redis.NewClient(opts), Config{TTL: ttl}, logger), nil
}

func newRedis(client *redis.Client, cfg Config, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "formvoice:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Redis{
		client: client,
		prefix: cfg.KeyPrefix + "answers:",
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "answer_sink")),
	}
}

func (r *Redis) key(sessionID string) string { return r.prefix + sessionID }

// Record appends the answer and refreshes the list TTL.
func (r *Redis) Record(ctx context.Context, sessionID string, a types.Answer) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.key(sessionID), data)
	pipe.Expire(ctx, r.key(sessionID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		metricWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("record answer: %w", err)
	}
	metricWrites.WithLabelValues("ok").Inc()
	r.logger.Debug("answer recorded", zap.String("session_id", sessionID), zap.String("field", a.Field))
	return nil
}

func (r *Redis) Answers(ctx context.Context, sessionID string) ([]types.Answer, error) {
	raw, err := r.client.LRange(ctx, r.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	out := make([]types.Answer, 0, len(raw))
	for _, s := range raw {
		var a types.Answer
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("decode answer: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Memory keeps answers in process. Used when no Redis address is configured.
type Memory struct {
	mu      sync.Mutex
	answers map[string][]types.Answer
}

func NewMemory() *Memory {
	return &Memory{answers: make(map[string][]types.Answer)}
}

func (m *Memory) Record(_ context.Context, sessionID string, a types.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[sessionID] = append(m.answers[sessionID], a)
	metricWrites.WithLabelValues("ok").Inc()
	return nil
}

func (m *Memory) Answers(_ context.Context, sessionID string) ([]types.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Answer(nil), m.answers[sessionID]...), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
