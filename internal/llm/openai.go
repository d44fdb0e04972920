package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Azure deployments are addressed by name and authenticate with an api-key header.
	AzureDeployment string
	AzureAPIVersion string
}

// OpenAI speaks the chat completions API (OpenAI or Azure OpenAI).
type OpenAI struct {
	cfg   OpenAIConfig
	httpc *http.Client
}

func NewOpenAI(cfg OpenAIConfig, httpc *http.Client) *OpenAI {
	if httpc == nil {
		httpc = &http.Client{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	if cfg.AzureAPIVersion == "" {
		cfg.AzureAPIVersion = "2024-02-15-preview"
	}
	return &OpenAI{cfg: cfg, httpc: httpc}
}

func (o *OpenAI) endpoint() string {
	base := strings.TrimRight(o.cfg.BaseURL, "/")
	if o.cfg.AzureDeployment != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", base, o.cfg.AzureDeployment, o.cfg.AzureAPIVersion)
	}
	return base + "/chat/completions"
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]map[string]any, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.User})
	body := map[string]any{
		"messages": messages,
	}
	if o.cfg.AzureDeployment == "" {
		body["model"] = o.cfg.Model
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint(), bytes.NewReader(reqBytes))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if o.cfg.AzureDeployment != "" {
		hreq.Header.Set("api-key", o.cfg.APIKey)
	} else if o.cfg.APIKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.httpc.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("chat completions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat completions: status=%d body=%s", resp.StatusCode, string(b))
	}

	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return "", fmt.Errorf("chat completions decode: %w", err)
	}
	choices, _ := m["choices"].([]any)
	if len(choices) == 0 {
		return "", ErrEmptyAnswer
	}
	choice, _ := choices[0].(map[string]any)
	msg, _ := choice["message"].(map[string]any)
	return toString(msg["content"]), nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
