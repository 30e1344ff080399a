// Package llm wraps the hosted text-generation backends used by the
// coordination layer. Exactly one backend is selected at construction by
// probing credentials in a fixed order: Google AI Studio (Gemini) first,
// OpenAI second. With neither credential present the gateway is disabled
// and every Generate call fails fast with ErrProviderUnavailable.
package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/discharge-coordinator/internal/jsonx"
)

// Provider identifies a text-generation backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderNone   Provider = ""
)

const (
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"

	systemInstruction = "You are a healthcare discharge coordination assistant. Always respond with valid JSON."
)

// Config holds gateway configuration.
type Config struct {
	GeminiKey   string
	OpenAIKey   string
	GeminiModel string
	OpenAIModel string

	RequestTimeout time.Duration
}

// ConfigFromEnv builds a Config from environment variables. The credential
// probe order (GOOGLE_AI_API_KEY, then OPENAI_API_KEY) decides the backend.
func ConfigFromEnv() *Config {
	return &Config{
		GeminiKey:      strings.TrimSpace(os.Getenv("GOOGLE_AI_API_KEY")),
		OpenAIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIModel:    getEnvOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		RequestTimeout: 30 * time.Second,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// ResponseCache caches raw completions keyed by prompt hash. Misses and
// cache failures fall through to the live call.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, text string)
}

// Gateway is the single entry point for LLM calls. A call either returns
// text or fails; retry policy is delegated to callers.
type Gateway struct {
	config   *Config
	client   *http.Client
	logger   *zap.Logger
	cache    ResponseCache
	provider Provider
}

// New creates a gateway, probing credentials to select the backend.
func New(cfg *Config, cache ResponseCache, logger *zap.Logger) *Gateway {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	g := &Gateway{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.Named("llm"),
		cache:  cache,
	}

	switch {
	case cfg.GeminiKey != "":
		g.provider = ProviderGemini
	case cfg.OpenAIKey != "":
		g.provider = ProviderOpenAI
	default:
		g.provider = ProviderNone
		g.logger.Warn("no LLM credential configured, gateway disabled; rule-based fallbacks will be used")
	}

	if g.provider != ProviderNone {
		g.logger.Info("LLM gateway initialized", zap.String("provider", string(g.provider)))
	}
	return g
}

// Provider returns the selected backend.
func (g *Gateway) Provider() Provider { return g.provider }

// Enabled reports whether a backend is configured.
func (g *Gateway) Enabled() bool { return g.provider != ProviderNone }

// Generate submits prompt to the configured backend and returns its raw
// text. No retries are performed.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	if g.provider == ProviderNone {
		return "", ErrProviderUnavailable
	}

	key := promptKey(prompt)
	if g.cache != nil {
		if text, ok := g.cache.Get(ctx, key); ok {
			g.logger.Debug("LLM response served from cache", zap.String("key", key))
			return text, nil
		}
	}

	start := time.Now()
	var (
		text string
		err  error
	)
	switch g.provider {
	case ProviderGemini:
		text, err = g.callGemini(ctx, prompt)
	case ProviderOpenAI:
		text, err = g.callOpenAI(ctx, prompt)
	}
	if err != nil {
		g.logger.Warn("LLM call failed",
			zap.String("provider", string(g.provider)),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	g.logger.Debug("LLM call completed",
		zap.String("provider", string(g.provider)),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("response_len", len(text)),
		zap.Duration("duration", time.Since(start)))

	if g.cache != nil {
		g.cache.Set(ctx, key, text)
	}
	return text, nil
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "llm:" + hex.EncodeToString(sum[:])
}

// callGemini calls the Gemini native generateContent API.
func (g *Gateway) callGemini(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]string{
					{"text": systemInstruction + "\n\n" + prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.3,
			"maxOutputTokens": 1024,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		geminiBaseURL, g.config.GeminiModel, g.config.GeminiKey)

	result, err := g.makeRequest(ctx, endpoint, reqBody, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return "", err
	}
	return extractContent(result)
}

// callOpenAI calls the OpenAI chat completions API.
func (g *Gateway) callOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": g.config.OpenAIModel,
		"messages": []map[string]string{
			{"role": "system", "content": systemInstruction},
			{"role": "user", "content": prompt},
		},
		"max_tokens":  1024,
		"temperature": 0.3,
	}

	result, err := g.makeRequest(ctx, openAIEndpoint, reqBody, map[string]string{
		"Authorization": "Bearer " + g.config.OpenAIKey,
		"Content-Type":  "application/json",
	})
	if err != nil {
		return "", err
	}
	return extractContent(result)
}

// makeRequest posts body to url and decodes the JSON response.
func (g *Gateway) makeRequest(ctx context.Context, url string, body map[string]interface{}, headers map[string]string) (map[string]interface{}, error) {
	jsonBody, err := jsonx.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := jsonx.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return result, nil
}

// extractContent pulls the completion text out of a backend response.
func extractContent(result map[string]interface{}) (string, error) {
	// OpenAI chat completions format
	if choices, ok := result["choices"].([]interface{}); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]interface{}); ok {
			if message, ok := choice["message"].(map[string]interface{}); ok {
				if content, ok := message["content"].(string); ok {
					return strings.TrimSpace(content), nil
				}
			}
		}
	}

	// Gemini generateContent format
	if candidates, ok := result["candidates"].([]interface{}); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]interface{}); ok {
			if content, ok := candidate["content"].(map[string]interface{}); ok {
				if parts, ok := content["parts"].([]interface{}); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]interface{}); ok {
						if text, ok := part["text"].(string); ok {
							return strings.TrimSpace(text), nil
						}
					}
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract content from response")
}
