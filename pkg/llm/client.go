// Package llm wraps the chat-completion provider behind typed JSON contracts
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// Config holds the provider settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  uint64
}

// TokenUsage is the token count of one completion, returned for metering
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client is a JSON-object-mode chat completion client with bounded retries
type Client struct {
	client *openai.Client
	config Config
	logger ectologger.Logger
}

// NewClient creates a new LLM client
func NewClient(config Config, logger ectologger.Logger) *Client {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}
}

// Complete sends one system+user prompt pair plus optional history and
// returns the raw JSON completion. Provider errors are retried with
// exponential backoff; contract errors are not retryable here because the
// caller owns the parse.
func (c *Client) Complete(ctx context.Context, system, user string, history []openai.ChatCompletionMessage) (string, TokenUsage, error) {
	ctx, span := tracing.StartSpan(ctx, "llm.Client.Complete")
	defer span.End()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	messages = append(messages, history...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: float32(c.config.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp openai.ChatCompletionResponse
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	err := backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		var callErr error
		resp, callErr = c.client.CreateChatCompletion(callCtx, req)
		if callErr != nil {
			c.logger.WithContext(ctx).WithError(callErr).WithField("model", c.config.Model).Warn("model request failed")
		}
		return callErr
	}, backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx))

	if err != nil {
		metrics.RecordLLMRequest(c.config.Model, "error", time.Since(start).Seconds())
		return "", TokenUsage{}, httperror.NewHTTPError(http.StatusBadGateway, "model request failed").
			AddMetaValue("code", "LLM_FAILED")
	}

	usage := TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.RecordLLMRequest(c.config.Model, "empty", time.Since(start).Seconds())
		return "", usage, httperror.NewHTTPError(http.StatusInternalServerError, "model returned an empty completion").
			AddMetaValue("code", "LLM_EMPTY")
	}

	metrics.RecordLLMRequest(c.config.Model, "ok", time.Since(start).Seconds())
	return resp.Choices[0].Message.Content, usage, nil
}

// Parse unmarshals and validates a raw completion against the contract T.
// The raw response is logged on failure so bad completions can be inspected.
func Parse[T any](ctx context.Context, logger ectologger.Logger, raw string) (T, error) {
	var result T

	badFormat := func(err error) error {
		logger.WithContext(ctx).WithError(err).WithField("raw_response", raw).Error("model response failed contract validation")
		return httperror.NewHTTPError(http.StatusInternalServerError, "model returned an invalid format").
			AddMetaValue("code", "LLM_BAD_FORMAT")
	}

	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, badFormat(err)
	}

	if _, err := validation.Validate(result); err != nil {
		return result, badFormat(err)
	}

	return result, nil
}
