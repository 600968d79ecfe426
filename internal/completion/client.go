// Package completion talks to an OpenAI-compatible chat completions
// endpoint (OpenRouter by default) and classifies its failures.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"cleanrag/internal/logging"
)

const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "openai/gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1500
)

type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Referer     string
	Title       string
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the raw model output of one completion.
type Result struct {
	Text         string
	Model        string
	FinishReason string
	Usage        Usage
}

type Client struct {
	cfg    Config
	apiKey string
	client *resty.Client
	logger *zap.Logger
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// NewClient reads the API key from cfg.APIKeyEnv once. A missing key is
// reported by Complete, not here.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		client.SetHeader("X-Title", cfg.Title)
	}
	c := &Client{
		cfg:    cfg,
		apiKey: os.Getenv(cfg.APIKeyEnv),
		client: client,
		logger: logging.OrNop(logger),
	}
	c.logger.Debug("completion client configured",
		zap.String("model", cfg.Model),
		zap.Bool("api_key_set", c.apiKey != ""),
	)
	return c
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends userText with the persona prompt, augmented by
// knowledgeContext when it is non-empty. It makes exactly one request.
func (c *Client) Complete(ctx context.Context, userText, knowledgeContext string) (*Result, error) {
	if c.apiKey == "" {
		return nil, &Error{Kind: ErrConfiguration, Message: fmt.Sprintf("environment variable %s is not set", c.cfg.APIKeyEnv)}
	}
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: BuildSystemPrompt(knowledgeContext)},
			{Role: "user", Content: userText},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return nil, &Error{Kind: ErrUpstream, Message: "request failed", Err: err}
	}
	if resp.IsError() {
		raw := string(resp.Body())
		e := &Error{
			Kind:    kindForStatus(resp.StatusCode()),
			Status:  resp.StatusCode(),
			Message: providerMessage(resp.Body()),
			Body:    raw,
		}
		c.logger.Warn("completion rejected",
			zap.Int("status", e.Status),
			zap.String("message", e.Message),
		)
		return nil, e
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &Error{Kind: ErrUpstream, Status: resp.StatusCode(), Message: "undecodable response", Body: string(resp.Body()), Err: err}
	}
	if len(out.Choices) == 0 {
		return nil, &Error{Kind: ErrUpstream, Status: resp.StatusCode(), Message: "no choices returned", Body: string(resp.Body())}
	}
	res := &Result{
		Text:         out.Choices[0].Message.Content,
		Model:        out.Model,
		FinishReason: out.Choices[0].FinishReason,
		Usage:        out.Usage,
	}
	c.logger.Debug("completion received",
		zap.String("model", res.Model),
		zap.Int("total_tokens", res.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// providerMessage reads {"error":{"message":...}}, falling back to the
// trimmed body.
func providerMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Type == gjson.String && msg.String() != "" {
		return msg.String()
	}
	if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String {
		return msg.String()
	}
	s := strings.TrimSpace(string(body))
	if r := []rune(s); len(r) > 200 {
		s = string(r[:200])
	}
	return s
}
