package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"formvoice/agent/internal/audio"
)

type DGConfig struct {
	Model      string
	Language   string
	BaseURL    string
	SampleRate int
	FrameBytes int
	Timeout    time.Duration
}

// Deepgram transcribes one utterance per websocket connection: stream the
// audio, send CloseStream, and collect final results until the server closes.
type Deepgram struct {
	cfg    DGConfig
	apiKey string
	url    string
	logger *zap.Logger
}

func NewDeepgram(cfg DGConfig, apiKey string, logger *zap.Logger) *Deepgram {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.SampleRate = nzd(cfg.SampleRate, 16000)
	cfg.FrameBytes = nzd(cfg.FrameBytes, 4096)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	q := url.Values{}
	q.Set("model", orDefault(cfg.Model, "nova-2"))
	q.Set("language", orDefault(cfg.Language, "en-US"))
	q.Set("smart_format", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", "1")
	base := orDefault(cfg.BaseURL, "wss://api.deepgram.com/v1/listen")
	return &Deepgram{
		cfg:    cfg,
		apiKey: apiKey,
		url:    base + "?" + q.Encode(),
		logger: logger.With(zap.String("component", "deepgram")),
	}
}

func (d *Deepgram) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	pcm = audio.TrimLeadingSilence(pcm)
	if len(pcm) == 0 {
		return "", ErrEmptyAudio
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	hdr := make(http.Header)
	if d.apiKey != "" {
		hdr.Set("Authorization", "Token "+d.apiKey)
	}
	start := time.Now()
	ws, _, err := websocket.Dial(ctx, d.url, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return "", fmt.Errorf("deepgram dial: %w", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "bye")
	metricConnectMS.Observe(float64(time.Since(start).Milliseconds()))

	writeErr := make(chan error, 1)
	go func() { writeErr <- d.stream(ctx, ws, pcm) }()

	var finals []string
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return "", fmt.Errorf("deepgram read: %w", err)
		}
		text, final, perr := parseResult(data)
		if perr != nil {
			return "", perr
		}
		if final && text != "" {
			finals = append(finals, text)
		}
	}
	if err := <-writeErr; err != nil {
		return "", err
	}

	out := strings.Join(finals, " ")
	d.logger.Debug("transcribed",
		zap.Int("bytes", len(pcm)),
		zap.Int("finals", len(finals)),
		zap.Int64("ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}

func (d *Deepgram) stream(ctx context.Context, ws *websocket.Conn, pcm []byte) error {
	for off := 0; off < len(pcm); off += d.cfg.FrameBytes {
		end := off + d.cfg.FrameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := ws.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return fmt.Errorf("deepgram write: %w", err)
		}
		metricFrames.Inc()
	}
	metricAudioBytes.Add(float64(len(pcm)))
	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("deepgram close stream: %w", err)
	}
	return nil
}

var errProvider = errors.New("deepgram: provider error")

// parseResult reads a Results frame leniently; alternatives live under "channel".
func parseResult(data []byte) (text string, final bool, err error) {
	if len(data) == 0 {
		return "", false, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", false, nil
	}
	typ := toString(m["type"])
	if strings.EqualFold(typ, "Error") || m["error"] != nil {
		msg := toString(m["error"])
		if msg == "" {
			msg = toString(m["message"])
		}
		return "", false, fmt.Errorf("%w: %s", errProvider, msg)
	}
	if !strings.EqualFold(typ, "Results") && m["channel"] == nil {
		return "", false, nil
	}
	channel, _ := m["channel"].(map[string]any)
	alts, _ := channel["alternatives"].([]any)
	if len(alts) > 0 {
		if a0, ok := alts[0].(map[string]any); ok {
			text = strings.TrimSpace(toString(a0["transcript"]))
		}
	}
	return text, toBool(m["is_final"]) || toBool(m["speech_final"]), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nzd(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}
