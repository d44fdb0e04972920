package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSegmenter(cfg Config) (*Segmenter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 7, 4, 10, 0, 0, 0, time.UTC)}
	return NewSegmenter(cfg, WithClock(clk.Now)), clk
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.Equal(t, 0.0, RMS([]byte{7}))
	assert.InDelta(t, 1000.0, RMS(Tone(320, 1000)), 0.001)
	// trailing odd byte is ignored
	assert.InDelta(t, 1000.0, RMS(append(Tone(320, 1000), 0xff)), 0.001)
	assert.Equal(t, 0.0, RMS(make([]byte, 64)))
}

func TestPadLeading(t *testing.T) {
	short := []byte{1, 2, 3, 4}
	out := PadLeading(short, 4096, 2048)
	require.Len(t, out, 2052)
	assert.Equal(t, make([]byte, 2048), out[:2048])
	assert.Equal(t, short, out[2048:])

	long := make([]byte, 4096)
	assert.Len(t, PadLeading(long, 4096, 2048), 4096)
}

func TestTrimLeadingSilence(t *testing.T) {
	b := append(make([]byte, 10), 1, 0, 0, 0)
	assert.Equal(t, []byte{1, 0, 0, 0}, TrimLeadingSilence(b))
	assert.Empty(t, TrimLeadingSilence(make([]byte, 8)))
}

func TestEndOfSpeechFlush(t *testing.T) {
	cfg := DefaultConfig()
	s, clk := newTestSegmenter(cfg)

	_, ok := s.Push(Tone(cfg.MinDecodeBytes, 3000))
	require.False(t, ok, "loud tail must not flush")

	clk.Advance(300 * time.Millisecond)
	u, ok := s.Push(make([]byte, cfg.BytesFor(cfg.EndWindow)))
	require.True(t, ok)
	assert.Equal(t, ReasonEndOfSpeech, u.Reason)
	assert.True(t, u.Voiced)
	assert.Len(t, u.PCM, cfg.MinDecodeBytes+9600)
	assert.Equal(t, 0, s.Pending())
}

func TestSilenceGapFlush(t *testing.T) {
	cfg := DefaultConfig()
	s, clk := newTestSegmenter(cfg)
	clk.Advance(2100 * time.Millisecond)

	u, ok := s.Push(make([]byte, cfg.MinDecodeBytes))
	require.True(t, ok)
	assert.Equal(t, ReasonSilenceGap, u.Reason)
	assert.False(t, u.Voiced)
	assert.InDelta(t, 1600, u.Duration.Milliseconds(), 1)
}

func TestNoFlushBelowMinimum(t *testing.T) {
	cfg := DefaultConfig()
	s, clk := newTestSegmenter(cfg)
	clk.Advance(10 * time.Second)

	_, ok := s.Push(make([]byte, cfg.MinDecodeBytes-2))
	assert.False(t, ok)
	assert.Equal(t, cfg.MinDecodeBytes-2, s.Pending())

	_, ok = s.Push([]byte{0, 0})
	assert.True(t, ok)
}

func TestNeverFlushesBelowMinimumProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.MinDecodeBytes = rapid.IntRange(2, 40000).Draw(rt, "min") &^ 1
		s, clk := newTestSegmenter(cfg)

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			size := rapid.IntRange(1, 4000).Draw(rt, "size") * 2
			amp := int16(rapid.IntRange(0, 20000).Draw(rt, "amp"))
			clk.Advance(time.Duration(rapid.IntRange(0, 3000).Draw(rt, "ms")) * time.Millisecond)

			before := s.Pending()
			u, ok := s.Push(Tone(size, amp))
			if before+size < cfg.MinDecodeBytes {
				if ok {
					rt.Fatalf("flushed %d bytes below minimum %d", before+size, cfg.MinDecodeBytes)
				}
				continue
			}
			if ok && len(u.PCM) < cfg.MinDecodeBytes {
				rt.Fatalf("utterance of %d bytes below minimum %d", len(u.PCM), cfg.MinDecodeBytes)
			}
		}
	})
}

func TestFlushesAtHardCapWhileVoiced(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		s, clk := newTestSegmenter(cfg)

		size := rapid.IntRange(160, 3200).Draw(rt, "size") * 2
		amp := int16(rapid.IntRange(600, 20000).Draw(rt, "amp"))
		step := time.Duration(rapid.IntRange(10, 500).Draw(rt, "step_ms")) * time.Millisecond

		var elapsed time.Duration
		pending := 0
		for i := 0; i < 10000; i++ {
			clk.Advance(step)
			elapsed += step
			pending += size
			u, ok := s.Push(Tone(size, amp))
			want := pending >= cfg.MinDecodeBytes && elapsed > cfg.MaxSegment
			if ok != want {
				rt.Fatalf("push %d: flushed=%v want %v (elapsed=%s pending=%d)", i, ok, want, elapsed, pending)
			}
			if ok {
				if u.Reason != ReasonMaxSegment {
					rt.Fatalf("reason %q, want max_segment", u.Reason)
				}
				if !u.Voiced {
					rt.Fatalf("voiced segment reported unvoiced")
				}
				return
			}
		}
		rt.Fatalf("no flush after hard cap")
	})
}
