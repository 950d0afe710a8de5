package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"ibci/internal/logging"
)

// GeminiProvider implements Provider against Google's Gemini API, grounded
// on the same google.golang.org/genai client construction and timing/
// logging conventions used elsewhere in the toolchain's embedding engine.
type GeminiProvider struct {
	client *genai.Client
	model  string

	mu        sync.Mutex
	retryHint string
	lastInfo  map[string]any
}

// NewGeminiProvider creates a Gemini-backed Provider. model defaults to
// "gemini-2.0-flash" when empty.
func NewGeminiProvider(apiKey, model string) (*GeminiProvider, error) {
	log := logging.Get(logging.CategoryLLM)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx := context.Background()
	start := time.Now()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		log.Error("failed to create genai client after %v: %v", time.Since(start), err)
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	log.Debug("genai client created in %v, model=%s", time.Since(start), model)

	return &GeminiProvider{client: client, model: model, lastInfo: map[string]any{}}, nil
}

// Call implements Provider.
func (p *GeminiProvider) Call(ctx context.Context, system, user, scene string) (string, error) {
	log := logging.Get(logging.CategoryLLM)

	p.mu.Lock()
	hint := p.retryHint
	p.retryHint = ""
	p.mu.Unlock()

	prompt := user
	if hint != "" {
		prompt = prompt + "\n\n(retry hint: " + hint + ")"
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	log.Debug("calling gemini model=%s scene=%s prompt_len=%d", p.model, scene, len(prompt))
	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	latency := time.Since(start)

	if err != nil {
		log.Error("gemini call failed after %v: %v", latency, err)
		return "", fmt.Errorf("gemini call failed: %w", err)
	}

	text := extractText(resp)

	p.mu.Lock()
	p.lastInfo = map[string]any{
		"latency_ms": latency.Milliseconds(),
		"raw_reply":  text,
		"scene":      scene,
		"model":      p.model,
	}
	p.mu.Unlock()

	log.Debug("gemini reply received in %v, %d bytes", latency, len(text))
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out
}

// SetRetryHint implements Provider.
func (p *GeminiProvider) SetRetryHint(hint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retryHint = hint
}

// LastCallInfo implements Provider.
func (p *GeminiProvider) LastCallInfo() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]any, len(p.lastInfo))
	for k, v := range p.lastInfo {
		out[k] = v
	}
	return out
}
