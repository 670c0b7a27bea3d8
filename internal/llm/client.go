// Package llm talks to an OpenAI-compatible chat endpoint to phrase story prompts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/longregen/memoir/internal/adapters/metrics"
	"github.com/longregen/memoir/internal/adapters/retry"
)

var tracer = otel.GetTracerProvider().Tracer("memoir/llm")

// ErrEmptyCompletion is returned when the endpoint answers without any choices
var ErrEmptyCompletion = errors.New("llm returned no choices")

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Retry       retry.BackoffConfig
	HTTPClient  *http.Client
}

// Client wraps the OpenAI client with the defaults every prompt request uses
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float64
	retryConfig retry.BackoffConfig
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry == (retry.BackoffConfig{}) {
		cfg.Retry = retry.LLMConfig()
	}

	openaiCfg := openai.DefaultConfig(cfg.APIKey)
	openaiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		openaiCfg.HTTPClient = cfg.HTTPClient
	} else {
		openaiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		api:         openai.NewClientWithConfig(openaiCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		retryConfig: cfg.Retry,
	}
}

// Complete sends a system and user message and returns the first choice's content.
// Transient failures are retried with backoff.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var content string
	err := retry.WithBackoffIf(ctx, c.retryConfig, isRetryable, func() error {
		resp, err := c.createChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyCompletion
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return content, nil
}

func (c *Client) createChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	ctx, span := tracer.Start(ctx, "llm.chat", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.request.max_tokens", req.MaxTokens),
		attribute.Int("llm.request.messages", len(req.Messages)),
	)

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.LLMRequestDuration.WithLabelValues(req.Model, "error").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, statusError(err)
	}
	metrics.LLMRequestDuration.WithLabelValues(req.Model, "ok").Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.Int("llm.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.usage.output_tokens", resp.Usage.CompletionTokens),
		attribute.Int("llm.response.choices", len(resp.Choices)),
	)
	return resp, nil
}

// statusError lifts the HTTP status out of go-openai's error types so the retry policy can see it
func statusError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &retry.StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &retry.StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrEmptyCompletion) {
		return false
	}
	return retry.IsRetryableError(err)
}
