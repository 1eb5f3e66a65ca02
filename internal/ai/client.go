package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
	"github.com/KhubaibAhamed/SentinelAI/internal/util"
)

// Classifier scores text for toxicity.
type Classifier interface {
	Classify(ctx context.Context, text string) (moderation.ClassificationResult, error)
}

// Config holds the remote classification service parameters.
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	ModelVersion string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// Client implements Classifier against an OpenAI-compatible chat completions API.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	model        string
	baseURL      string
	modelVersion string
	temperature  float64
	maxTokens    int
}

const systemPrompt = "You are a content moderation classifier. Reply with a strict JSON object with keys scores, spans and explanation. " +
	"scores must contain toxic, severe_toxic, obscene, threat, insult and identity_hate, each a number between 0 and 1 scored independently. " +
	"spans is an array of objects with integer start and end character indices (end exclusive, counting Unicode characters from 0), " +
	"label set to one of the six score keys, and text set to the exact substring between start and end. Return an empty array when nothing is toxic. " +
	"explanation is one or two sentences describing the main risk. Emit nothing outside the JSON object."

// NewClient constructs a Client if the supplied configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(cfg.ModelVersion) == "" {
		cfg.ModelVersion = "sentinel-v2.1-" + cfg.Model
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = 0
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        cfg.Model,
		baseURL:      cfg.BaseURL,
		modelVersion: strings.TrimSpace(cfg.ModelVersion),
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// ModelVersion reports the version string stamped on results.
func (c *Client) ModelVersion() string {
	return c.modelVersion
}

// Classify sends text to the remote service and validates the answer. It never retries;
// every failure is a *ClassificationError.
func (c *Client) Classify(ctx context.Context, text string) (moderation.ClassificationResult, error) {
	if c == nil || c.apiKey == "" {
		return moderation.ClassificationResult{}, &ClassificationError{Cause: ErrDisabled}
	}

	timer := util.StartTimer()
	body, err := json.Marshal(c.buildPayload(text))
	if err != nil {
		return moderation.ClassificationResult{}, classificationErr("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return moderation.ClassificationResult{}, classificationErr("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return moderation.ClassificationResult{}, classificationErr("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return moderation.ClassificationResult{}, classificationErr("classifier status %d: %v", resp.StatusCode, apiErr)
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return moderation.ClassificationResult{}, classificationErr("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return moderation.ClassificationResult{}, protocolErr("choices", "is empty")
	}

	content := normalizeJSONBlock(decoded.Choices[0].Message.Content)
	if content == "" {
		return moderation.ClassificationResult{}, protocolErr("content", "is empty")
	}

	scores, spans, explanation, err := parsePayload(content, text)
	if err != nil {
		return moderation.ClassificationResult{}, err
	}

	result := moderation.ClassificationResult{
		Scores:       scores,
		Spans:        spans,
		ModelVersion: c.modelVersion,
		LatencyMs:    timer.ElapsedMs(),
		Explanation:  explanation,
	}
	logrus.WithFields(logrus.Fields{
		"model":      c.model,
		"latency_ms": result.LatencyMs,
		"spans":      len(spans),
		"text_len":   len([]rune(text)),
	}).Debug("classification completed")
	return result, nil
}

func (c *Client) buildPayload(text string) map[string]any {
	builder := &strings.Builder{}
	builder.WriteString("Analyze the following text for toxicity. ")
	builder.WriteString("Provide scores between 0 and 1 for labels: ")
	for i, category := range moderation.Categories {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(string(category))
	}
	builder.WriteString(". Also identify specific spans (start/end character indices) that trigger these labels.\n")
	fmt.Fprintf(builder, "Text: %q\n", text)

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": builder.String()},
		},
		"temperature":     c.temperature,
		"response_format": map[string]string{"type": "json_object"},
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	return payload
}
