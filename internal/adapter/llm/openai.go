// Package llm provides an OpenAI-compatible chat-completion client.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"docqa/config"
	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.LLM = (*ChatClient)(nil)

// Provider base URLs.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
	LocalBaseURL  = "http://localhost:11434/v1"

	DefaultModel       = "llama-3.1-8b-instant"
	DefaultTemperature = 0.2
	DefaultTimeout     = 60 * time.Second
)

// Options configures a ChatClient.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// ChatClient calls /chat/completions once per request. It never retries.
type ChatClient struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	timeout     time.Duration
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewChatClient(opts Options) (*ChatClient, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("llm: base URL is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	return &ChatClient{
		client:      opts.HTTPClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}, nil
}

// New builds a ChatClient from configuration. The API key is read from the
// environment variable named by cfg.APIKeyEnv; the local provider needs none.
func New(cfg config.LLMConfig) (*ChatClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Provider {
		case "groq":
			baseURL = GroqBaseURL
		case "openai":
			baseURL = OpenAIBaseURL
		case "local":
			baseURL = LocalBaseURL
		default:
			return nil, fmt.Errorf("llm: provider %q needs a base_url", cfg.Provider)
		}
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" && cfg.Provider != "local" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}

	return NewChatClient(Options{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	})
}

func (c *ChatClient) ModelName() string {
	return c.model
}

func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", &domain.LLMError{Reason: domain.LLMReasonBadResponse, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", &domain.LLMError{Reason: domain.LLMReasonNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.LLMError{Reason: transportReason(err), Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.LLMError{Reason: transportReason(err), Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &domain.LLMError{
			Reason:     statusReason(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", preview(body)),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &domain.LLMError{Reason: domain.LLMReasonBadResponse, Err: fmt.Errorf("decode response: %w", err)}
	}
	if chatResp.Error != nil {
		return "", &domain.LLMError{Reason: domain.LLMReasonBadResponse, Err: errors.New(chatResp.Error.Message)}
	}
	if len(chatResp.Choices) == 0 {
		return "", &domain.LLMError{Reason: domain.LLMReasonBadResponse, Err: errors.New("no choices in response")}
	}

	answer := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if answer == "" {
		return "", &domain.LLMError{Reason: domain.LLMReasonBadResponse, Err: errors.New("empty completion")}
	}
	return answer, nil
}

func transportReason(err error) domain.LLMReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.LLMReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.LLMReasonTimeout
	}
	return domain.LLMReasonNetwork
}

func statusReason(code int) domain.LLMReason {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.LLMReasonAuth
	case code == http.StatusTooManyRequests:
		return domain.LLMReasonRateLimit
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return domain.LLMReasonTimeout
	case code >= 500:
		return domain.LLMReasonNetwork
	default:
		return domain.LLMReasonBadResponse
	}
}

func preview(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
