package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/duli1982/aitalentsonardemo-sub003/ai/inference"
	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/internal/util"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
)

const (
	// DefaultModel is the fallback model when none is specified
	// Should match the default in am/defaults.go
	DefaultModel   = "openai/gpt-4o-mini"
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	defaultTimeout = 60 * time.Second
	// Error bodies are cut to this many runes in error messages
	maxErrorBody = 300
)

// Client is an OpenRouter chat completion client. It makes exactly one
// HTTP attempt per call; callers wrap it in pulse/retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds AI client configuration
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       *float64 // nil = use default (0.2)
	MaxTokens         *int     // nil = use default (600)
	RequestsPerMinute int      // 0 = unlimited
	Timeout           time.Duration
	Logger            *zap.SugaredLogger // nil = nop logger
}

// ConfigFromAM converts the inference section of sonar.toml.
func ConfigFromAM(cfg am.InferenceConfig, log *zap.SugaredLogger) Config {
	return Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:            log,
	}
}

// NewClient creates a new OpenRouter client, filling in defaults
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Temperature == nil {
		defaultTemp := 0.2
		config.Temperature = &defaultTemp
	}
	if config.MaxTokens == nil {
		defaultTokens := 600
		config.MaxTokens = &defaultTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if config.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(config.RequestsPerMinute) / 60)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		config:     config,
		logger:     logger.OrNop(config.Logger).Named("openrouter"),
	}
}

// ChatCompletionRequest represents a request to the chat completions endpoint
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat asks the model for a JSON object.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest represents a high-level request to the AI
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	JSON         bool     // request a JSON object response
	Temperature  *float64 // Override default temperature
	MaxTokens    *int     // Override default max tokens
}

// ChatResponse represents the AI response
type ChatResponse struct {
	Content string
	Usage   Usage
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from chat completions
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CreateChatCompletion sends one request. Failures are *inference.Failure:
// network errors, 429 and 5xx are transient and carry any Retry-After hint;
// other statuses and malformed bodies are permanent. Context errors are
// returned unwrapped.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	const op = "openrouter chat"

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, inference.Transient(op, errors.Wrap(err, "rate limiter"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("X-Title", "sonar")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, inference.Transient(op, errors.Wrap(err, "failed to send request"))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, inference.Transient(op, errors.Wrap(err, "failed to read response"))
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := errors.Newf("API request failed with status %d: %s", resp.StatusCode, util.Truncate(string(respBody), maxErrorBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			f := inference.Transient(op, statusErr)
			f.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			return nil, f
		}
		return nil, inference.Permanent(op, statusErr)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, inference.Permanent(op, errors.Wrap(err, "failed to unmarshal response"))
	}
	return &chatResp, nil
}

// Chat sends a system and user prompt and returns the first choice.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, inference.Permanent("openrouter chat", errors.New("OpenRouter API key not configured"))
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	messages := []Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}
	completion := ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSON {
		completion.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	start := time.Now()
	resp, err := c.CreateChatCompletion(ctx, completion)
	if err != nil {
		c.logger.Warnw("OpenRouter request failed",
			logger.FieldOperation, "chat",
			"model", c.config.Model,
			logger.FieldRetryable, isTransient(err),
			logger.FieldError, err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, inference.Permanent("openrouter chat", errors.New("no response choices from OpenRouter"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debugw("OpenRouter response",
		"model", c.config.Model,
		"content_length", len(content),
		"total_tokens", resp.Usage.TotalTokens,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return &ChatResponse{Content: content, Usage: resp.Usage}, nil
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// ParseRetryAfter reads a Retry-After header given as seconds or an HTTP
// date. Unparseable or past values yield 0.
func ParseRetryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func isTransient(err error) bool {
	var f *inference.Failure
	return errors.As(err, &f) && f.Transient
}
