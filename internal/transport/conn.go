package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"formvoice/agent/internal/types"
)

// Conn adapts one client websocket to the session: binary frames are audio,
// commands go back as JSON text frames.
type Conn struct {
	c            *ws.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	logger       *zap.Logger
	closeOnce    sync.Once
}

func newConn(c *ws.Conn, writeTimeout time.Duration, logger *zap.Logger) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Conn{c: c, writeTimeout: writeTimeout, logger: logger}
}

// Next returns the next binary frame. Text frames are ignored.
func (c *Conn) Next(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.c.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == ws.MessageBinary {
			metricFrames.WithLabelValues("binary").Inc()
			return data, nil
		}
		metricFrames.WithLabelValues("text_ignored").Inc()
		c.logger.Debug("text frame ignored", zap.Int("bytes", len(data)))
	}
}

// Emit writes one command. Writes are serialized per connection.
func (c *Conn) Emit(ctx context.Context, cmd types.Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, c.c, cmd); err != nil {
		metricCommands.WithLabelValues(cmd.Type, "error").Inc()
		return err
	}
	metricCommands.WithLabelValues(cmd.Type, "ok").Inc()
	return nil
}

func (c *Conn) Close(code ws.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		_ = c.c.Close(code, reason)
	})
}
