package audio

import "time"

// Config holds segmentation thresholds. Byte sizes are in PCM16 mono bytes.
type Config struct {
	SampleRate           int
	VoiceThreshold       float64
	EndOfSpeechThreshold float64
	EndWindow            time.Duration
	MinDecodeBytes       int
	PadFloorBytes        int
	PadBytes             int
	SilenceGap           time.Duration
	MaxSegment           time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:           16000,
		VoiceThreshold:       200,
		EndOfSpeechThreshold: 500,
		EndWindow:            300 * time.Millisecond,
		MinDecodeBytes:       51200,
		PadFloorBytes:        4096,
		PadBytes:             2048,
		SilenceGap:           2 * time.Second,
		MaxSegment:           6 * time.Second,
	}
}

// BytesFor converts a duration of audio into a PCM16 byte count.
func (c Config) BytesFor(d time.Duration) int {
	n := int(float64(c.SampleRate*2) * d.Seconds())
	return n - n%2
}

// DurationOf converts a PCM16 byte count into audio time.
func (c Config) DurationOf(n int) time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(c.SampleRate*2) * float64(time.Second))
}

type FlushReason string

const (
	ReasonSilenceGap  FlushReason = "silence_gap"
	ReasonMaxSegment  FlushReason = "max_segment"
	ReasonEndOfSpeech FlushReason = "end_of_speech"
)

type Utterance struct {
	PCM      []byte
	Voiced   bool
	Reason   FlushReason
	Duration time.Duration
}

// Segmenter accumulates chunks until one of the flush criteria fires.
// It is not safe for concurrent use; a session's processing loop owns it.
type Segmenter struct {
	cfg          Config
	now          func() time.Time
	buf          []byte
	segmentStart time.Time
	lastVoice    time.Time
	voiced       bool
}

type Option func(*Segmenter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) { s.now = now }
}

func NewSegmenter(cfg Config, opts ...Option) *Segmenter {
	s := &Segmenter{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	t := s.now()
	s.segmentStart = t
	s.lastVoice = t
	return s
}

// Pending is the number of buffered bytes not yet flushed.
func (s *Segmenter) Pending() int { return len(s.buf) }

// Push appends a chunk and returns a finished utterance when a flush criterion fires.
func (s *Segmenter) Push(chunk []byte) (Utterance, bool) {
	if len(chunk) == 0 {
		return Utterance{}, false
	}
	s.buf = append(s.buf, chunk...)
	now := s.now()
	rms := RMS(chunk)
	metricChunkRMS.Observe(rms)
	if rms > s.cfg.VoiceThreshold {
		s.lastVoice = now
		s.voiced = true
	}
	if len(s.buf) < s.cfg.MinDecodeBytes {
		return Utterance{}, false
	}

	var reason FlushReason
	switch {
	case now.Sub(s.lastVoice) > s.cfg.SilenceGap:
		reason = ReasonSilenceGap
	case now.Sub(s.segmentStart) > s.cfg.MaxSegment:
		reason = ReasonMaxSegment
	case RMS(s.tail()) < s.cfg.EndOfSpeechThreshold:
		reason = ReasonEndOfSpeech
	default:
		return Utterance{}, false
	}
	return s.flush(now, reason), true
}

func (s *Segmenter) tail() []byte {
	w := s.cfg.BytesFor(s.cfg.EndWindow)
	if w <= 0 || w >= len(s.buf) {
		return s.buf
	}
	return s.buf[len(s.buf)-w:]
}

func (s *Segmenter) flush(now time.Time, reason FlushReason) Utterance {
	pcm := PadLeading(s.buf, s.cfg.PadFloorBytes, s.cfg.PadBytes)
	u := Utterance{
		PCM:      pcm,
		Voiced:   s.voiced,
		Reason:   reason,
		Duration: s.cfg.DurationOf(len(pcm)),
	}
	metricFlushes.WithLabelValues(string(reason)).Inc()
	metricUtteranceMS.Observe(float64(u.Duration.Milliseconds()))
	s.buf = nil
	s.voiced = false
	s.segmentStart = now
	return u
}
