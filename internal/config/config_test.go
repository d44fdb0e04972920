package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "CONFIG_FILE", "REDIS_URL", "DEEPGRAM_API_KEY", "SEGMENTER_MIN_DECODE_BYTES"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, "info", c.Server.LogLevel)
	assert.Equal(t, 16000, c.Segmenter.SampleRate)
	assert.Equal(t, 51200, c.Segmenter.MinDecodeBytes)
	assert.Equal(t, 300*time.Millisecond, c.Segmenter.EndWindow)
	assert.Equal(t, 6*time.Second, c.Segmenter.MaxSegment)
	assert.Equal(t, "91", c.Session.PhoneCountryCode)
	assert.Zero(t, c.Session.IdleTimeout)
	assert.Equal(t, "nova-2", c.Deepgram.Model)
	assert.Equal(t, "openai", c.LLM.Provider)
	assert.Equal(t, 20*time.Second, c.LLM.Timeout)
	assert.Equal(t, "sqlite", c.Database.Driver)

	sc := c.SessionConfig()
	assert.Equal(t, 256, sc.QueueSize)
	assert.Equal(t, 100*time.Millisecond, sc.Tick)
	assert.Equal(t, 2*time.Second, sc.Segmenter.SilenceGap)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SEGMENTER_MIN_DECODE_BYTES", "3200")
	t.Setenv("SESSION_IDLE_TIMEOUT", "45s")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Server.Port)
	assert.Equal(t, 3200, c.SegmenterConfig().MinDecodeBytes)
	assert.Equal(t, 45*time.Second, c.Session.IdleTimeout)
	assert.Equal(t, "dg-key", c.Deepgram.APIKey)
	assert.Equal(t, 16000, c.DeepgramConfig().SampleRate)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: gemini\n  model: gemini-2.0-flash\nsession:\n  phone_country_code: \"44\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.LLMOptions().Provider)
	assert.Equal(t, "gemini-2.0-flash", c.LLM.Model)
	assert.Equal(t, "44", c.Session.PhoneCountryCode)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
