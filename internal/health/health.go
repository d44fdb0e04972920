package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	DeepgramKey string
	// DeepgramURL is the REST endpoint used to validate the key.
	DeepgramURL string
	LLMProvider string
	LLMReady    bool
	Redis       Pinger
	DB          Pinger
	HTTP        *http.Client
}

// CheckAll runs all health checks and returns combined status
func CheckAll(ctx context.Context, d Deps) HealthStatus {
	checks := []CheckResult{
		checkDeepgram(ctx, d),
		checkLLM(d),
		checkPinger(ctx, "redis", d.Redis),
		checkPinger(ctx, "database", d.DB),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkDeepgram(ctx context.Context, d Deps) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "deepgram"}

	if d.DeepgramKey == "" {
		result.Error = "DEEPGRAM_API_KEY not set"
		result.Latency = time.Since(start)
		return result
	}
	url := d.DeepgramURL
	if url == "" {
		url = "https://api.deepgram.com/v1/projects"
	}
	client := d.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	req.Header.Set("Authorization", "Token "+d.DeepgramKey)

	resp, err := client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		result.Error = fmt.Sprintf("invalid API key (%d)", resp.StatusCode)
		return result
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return result
	}

	result.OK = true
	return result
}

// checkLLM only reports configuration; free-text fields degrade to a
// clarification when no provider is set.
func checkLLM(d Deps) CheckResult {
	result := CheckResult{Name: "llm"}
	if d.LLMProvider != "" {
		result.Name = "llm_" + d.LLMProvider
	}
	if !d.LLMReady {
		result.Error = "LLM_API_KEY not set"
		return result
	}
	result.OK = true
	return result
}

func checkPinger(ctx context.Context, name string, p Pinger) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}
	if p == nil {
		result.Error = "not configured"
		return result
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Ping(pctx); err != nil {
		result.Error = err.Error()
	} else {
		result.OK = true
	}
	result.Latency = time.Since(start)
	return result
}
