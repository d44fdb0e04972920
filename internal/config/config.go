package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"formvoice/agent/internal/audio"
	"formvoice/agent/internal/llm"
	"formvoice/agent/internal/session"
	"formvoice/agent/internal/stt"
)

type Config struct {
	Server struct {
		Port      string
		LogLevel  string
		GRPCAddr  string
		ProbeAddr string
	}
	Segmenter struct {
		SampleRate           int
		VoiceThreshold       float64
		EndOfSpeechThreshold float64
		EndWindow            time.Duration
		MinDecodeBytes       int
		PadFloorBytes        int
		PadBytes             int
		SilenceGap           time.Duration
		MaxSegment           time.Duration
		Tick                 time.Duration
	}
	Session struct {
		QueueSize        int
		IdleTimeout      time.Duration
		PhoneCountryCode string
		OriginPatterns   []string
		TokenSecret      string
		TokenTTL         time.Duration
		TokenSkew        time.Duration
	}
	Deepgram struct {
		APIKey   string
		Model    string
		Language string
		WSURL    string
		Timeout  time.Duration
	}
	LLM struct {
		Provider        string
		APIKey          string
		BaseURL         string
		Model           string
		AzureDeployment string
		Timeout         time.Duration
	}
	Redis struct {
		URL string
		TTL time.Duration
	}
	Database struct {
		Driver string
		DSN    string
	}
}

// Load reads defaults, an optional YAML file named by CONFIG_FILE, and the
// environment, in increasing order of precedence.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.probe_addr", ":8081")

	v.SetDefault("segmenter.sample_rate", 16000)
	v.SetDefault("segmenter.voice_threshold", 200)
	v.SetDefault("segmenter.end_of_speech_threshold", 500)
	v.SetDefault("segmenter.end_window", "300ms")
	v.SetDefault("segmenter.min_decode_bytes", 51200)
	v.SetDefault("segmenter.pad_floor_bytes", 4096)
	v.SetDefault("segmenter.pad_bytes", 2048)
	v.SetDefault("segmenter.silence_gap", "2s")
	v.SetDefault("segmenter.max_segment", "6s")
	v.SetDefault("segmenter.tick", "100ms")

	v.SetDefault("session.queue_size", 256)
	v.SetDefault("session.idle_timeout", "0s")
	v.SetDefault("session.phone_country_code", "91")
	v.SetDefault("session.token_ttl", "10m")
	v.SetDefault("session.token_skew", "30s")

	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en-US")
	v.SetDefault("deepgram.ws_url", "wss://api.deepgram.com/v1/listen")
	v.SetDefault("deepgram.timeout", "15s")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4.1-mini")
	v.SetDefault("llm.timeout", "20s")

	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("database.driver", "sqlite")

	// Map envs
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.grpc_addr", "GRPC_ADDR")
	_ = v.BindEnv("server.probe_addr", "PROBE_ADDR")
	_ = v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "LLM_BASE_URL", "AZURE_OPENAI_ENDPOINT")
	_ = v.BindEnv("llm.azure_deployment", "AZURE_OPENAI_DEPLOYMENT")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.GRPCAddr = v.GetString("server.grpc_addr")
	c.Server.ProbeAddr = v.GetString("server.probe_addr")

	c.Segmenter.SampleRate = v.GetInt("segmenter.sample_rate")
	c.Segmenter.VoiceThreshold = v.GetFloat64("segmenter.voice_threshold")
	c.Segmenter.EndOfSpeechThreshold = v.GetFloat64("segmenter.end_of_speech_threshold")
	c.Segmenter.EndWindow = v.GetDuration("segmenter.end_window")
	c.Segmenter.MinDecodeBytes = v.GetInt("segmenter.min_decode_bytes")
	c.Segmenter.PadFloorBytes = v.GetInt("segmenter.pad_floor_bytes")
	c.Segmenter.PadBytes = v.GetInt("segmenter.pad_bytes")
	c.Segmenter.SilenceGap = v.GetDuration("segmenter.silence_gap")
	c.Segmenter.MaxSegment = v.GetDuration("segmenter.max_segment")
	c.Segmenter.Tick = v.GetDuration("segmenter.tick")

	c.Session.QueueSize = v.GetInt("session.queue_size")
	c.Session.IdleTimeout = v.GetDuration("session.idle_timeout")
	c.Session.PhoneCountryCode = v.GetString("session.phone_country_code")
	c.Session.OriginPatterns = v.GetStringSlice("session.origin_patterns")
	c.Session.TokenSecret = v.GetString("session.token_secret")
	c.Session.TokenTTL = v.GetDuration("session.token_ttl")
	c.Session.TokenSkew = v.GetDuration("session.token_skew")

	c.Deepgram.APIKey = v.GetString("deepgram.api_key")
	c.Deepgram.Model = v.GetString("deepgram.model")
	c.Deepgram.Language = v.GetString("deepgram.language")
	c.Deepgram.WSURL = v.GetString("deepgram.ws_url")
	c.Deepgram.Timeout = v.GetDuration("deepgram.timeout")

	c.LLM.Provider = v.GetString("llm.provider")
	c.LLM.APIKey = v.GetString("llm.api_key")
	c.LLM.BaseURL = v.GetString("llm.base_url")
	c.LLM.Model = v.GetString("llm.model")
	c.LLM.AzureDeployment = v.GetString("llm.azure_deployment")
	c.LLM.Timeout = v.GetDuration("llm.timeout")

	c.Redis.URL = v.GetString("redis.url")
	c.Redis.TTL = v.GetDuration("redis.ttl")
	c.Database.Driver = v.GetString("database.driver")
	c.Database.DSN = v.GetString("database.dsn")

	if c.Segmenter.MinDecodeBytes <= 0 || c.Segmenter.SampleRate <= 0 {
		return c, fmt.Errorf("segmenter: sample_rate and min_decode_bytes must be positive")
	}
	return c, nil
}

func (c Config) SegmenterConfig() audio.Config {
	return audio.Config{
		SampleRate:           c.Segmenter.SampleRate,
		VoiceThreshold:       c.Segmenter.VoiceThreshold,
		EndOfSpeechThreshold: c.Segmenter.EndOfSpeechThreshold,
		EndWindow:            c.Segmenter.EndWindow,
		MinDecodeBytes:       c.Segmenter.MinDecodeBytes,
		PadFloorBytes:        c.Segmenter.PadFloorBytes,
		PadBytes:             c.Segmenter.PadBytes,
		SilenceGap:           c.Segmenter.SilenceGap,
		MaxSegment:           c.Segmenter.MaxSegment,
	}
}

func (c Config) SessionConfig() session.Config {
	return session.Config{
		Segmenter:   c.SegmenterConfig(),
		QueueSize:   c.Session.QueueSize,
		Tick:        c.Segmenter.Tick,
		IdleTimeout: c.Session.IdleTimeout,
	}
}

func (c Config) DeepgramConfig() stt.DGConfig {
	return stt.DGConfig{
		Model:      c.Deepgram.Model,
		Language:   c.Deepgram.Language,
		BaseURL:    c.Deepgram.WSURL,
		SampleRate: c.Segmenter.SampleRate,
		Timeout:    c.Deepgram.Timeout,
	}
}

func (c Config) LLMOptions() llm.Options {
	return llm.Options{
		Provider:        c.LLM.Provider,
		APIKey:          c.LLM.APIKey,
		BaseURL:         c.LLM.BaseURL,
		Model:           c.LLM.Model,
		AzureDeployment: c.LLM.AzureDeployment,
		Timeout:         c.LLM.Timeout,
	}
}

func toString(v any) string { return fmt.Sprint(v) }
