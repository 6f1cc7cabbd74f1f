package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"LedgerChat/internal/backend"
	"LedgerChat/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrUnavailable covers transport failures, non-2xx replies and bodies
	// without a completion.
	ErrUnavailable = errors.New("completion unavailable")
	ErrEmptyPrompt = errors.New("prompt must not be empty")
)

const anthropicMaxTokens = 1024

type defaults struct {
	url   string
	model string
}

var backendDefaults = map[string]defaults{
	config.BackendGroq:      {"https://api.groq.com/openai/v1/chat/completions", "meta-llama/llama-4-scout-17b-16e-instruct"},
	config.BackendOpenAI:    {"https://api.openai.com/v1/chat/completions", "gpt-4o-mini"},
	config.BackendAnthropic: {"https://api.anthropic.com/v1/messages", "claude-sonnet-4-20250514"},
	config.BackendOllama:    {"http://localhost:11434/api/chat", "llama3:latest"},
}

// Client calls a hosted LLM completion endpoint, one request per prompt
type Client struct {
	backend    string
	url        string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	meter      metric.Meter
}

// NewClient creates a completion client for the configured backend.
// A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg config.CompletionConfig, httpClient *http.Client, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	d, ok := backendDefaults[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		backend:    cfg.Backend,
		url:        d.url,
		model:      d.model,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
		tracer:     tracer,
		meter:      meter,
	}
	if cfg.BaseURL != "" {
		c.url = cfg.BaseURL
	}
	if cfg.Model != "" {
		c.model = cfg.Model
	}

	duration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	c.duration = duration

	logger.Info("created completion client", "backend", c.backend, "model", c.model, "url", c.url)
	return c, nil
}

// Complete sends prompt as a single user message and returns the reply text
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	ctx, span := c.tracer.Start(ctx, "completion."+c.backend,
		trace.WithAttributes(attribute.String("llm.model", c.model)))
	defer span.End()

	var (
		text string
		err  error
	)
	switch c.backend {
	case config.BackendAnthropic:
		text, err = c.callAnthropic(ctx, prompt)
	case config.BackendOllama:
		text, err = c.callOllama(ctx, prompt)
	default:
		text, err = c.callOpenAI(ctx, prompt)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("completion failed", "backend", c.backend, "error", err)
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	c.logger.Debug("completion received", "backend", c.backend, "length", len(text))
	return text, nil
}

// callOpenAI calls an OpenAI-compatible chat completions endpoint (OpenAI, Groq)
func (c *Client) callOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := backend.OpenAIRequest{
		Model:    c.model,
		Messages: []backend.ChatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var apiResp backend.OpenAIResponse
	if err := c.post(ctx, reqBody, headers, &apiResp); err != nil {
		return "", err
	}
	c.recordUsage(ctx, apiResp.Usage)

	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from %s", c.backend)
	}
	return apiResp.Choices[0].Message.Content, nil
}

// callAnthropic calls the Anthropic messages API
func (c *Client) callAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := backend.AnthropicRequest{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []backend.ChatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var apiResp backend.AnthropicResponse
	if err := c.post(ctx, reqBody, headers, &apiResp); err != nil {
		return "", err
	}
	c.recordUsage(ctx, apiResp.Usage)

	for _, content := range apiResp.Content {
		if content.Type == "text" && content.Text != "" {
			return content.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from Anthropic")
}

// callOllama calls a local Ollama chat endpoint
func (c *Client) callOllama(ctx context.Context, prompt string) (string, error) {
	reqBody := backend.OllamaRequest{
		Model:    c.model,
		Messages: []backend.ChatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	}

	var apiResp backend.OllamaResponse
	if err := c.post(ctx, reqBody, nil, &apiResp); err != nil {
		return "", err
	}
	if apiResp.Message.Content == "" {
		return "", fmt.Errorf("empty response from Ollama")
	}
	return apiResp.Message.Content, nil
}

// post marshals reqBody, sends it and decodes a 2xx body into out
func (c *Client) post(ctx context.Context, reqBody any, headers map[string]string, out any) error {
	start := time.Now()

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("llm.backend", c.backend),
			attribute.Int("http.response.status_code", resp.StatusCode),
		))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// recordUsage records token counts reported by the vendor
func (c *Client) recordUsage(ctx context.Context, usage map[string]interface{}) {
	for key, value := range usage {
		n, ok := value.(float64)
		if !ok {
			continue
		}
		counter, err := c.meter.Int64Counter(
			fmt.Sprintf("llm.usage.%s", key),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
		)
		if err != nil {
			c.logger.Warn("failed to create counter", "key", key, "error", err)
			continue
		}
		counter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("llm.backend", c.backend)))
	}
}
