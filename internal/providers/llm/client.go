// internal/providers/llm/client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	commonhttp "research-workers/internal/common/http"
	"research-workers/internal/common/logger"
	"research-workers/internal/research"
)

const completionsPath = "/chat/completions"

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg    Config
	http   *commonhttp.Client
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Client{
		cfg: cfg,
		// the per-call deadline comes from the context
		http:   commonhttp.NewClient(0),
		logger: log.With(map[string]interface{}{"provider": "llm", "model": cfg.Model}),
	}
}

type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []research.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

// Complete returns the first choice's message content. Failures wrap
// research.ErrGeneration or research.ErrGenerationTimeout.
func (c *Client) Complete(ctx context.Context, messages []research.Message, temperature float64, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + completionsPath

	maxRetries := c.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewExponential(c.cfg.RetryBackoff))

	var content string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		body, err := c.http.PostJSON(ctx, url, payload, headers)
		if err != nil {
			if isRetryable(ctx, err) {
				c.logger.Warn("completion attempt failed, retrying", map[string]interface{}{
					"attempt": attempt,
					"error":   err.Error(),
				})
				return retry.RetryableError(err)
			}
			return err
		}

		result := gjson.GetBytes(body, "choices.0.message.content")
		if !result.Exists() {
			return fmt.Errorf("response has no choices.0.message.content")
		}
		content = strings.TrimSpace(result.String())
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %v", research.ErrGenerationTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", research.ErrGeneration, err)
	}
	return content, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *commonhttp.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
