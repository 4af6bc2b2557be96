package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/replitone/replitone/pkg/core/types"
)

const defaultChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// HTTP calls an OpenAI-compatible chat completions endpoint. Transient
// failures (429, 5xx, transport errors) are retried with exponential backoff;
// a final failure surfaces as a ResponderError fault and the engine degrades
// to the apology text.
type HTTP struct {
	Client      *http.Client
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  uint64
}

// NewHTTP creates an HTTP responder for the given endpoint and model.
func NewHTTP(baseURL, apiKey, model string) *HTTP {
	return &HTTP{
		Client:      &http.Client{Timeout: 30 * time.Second},
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   500,
		Temperature: 0.7,
		MaxRetries:  2,
	}
}

// Name returns the capability identifier.
func (h *HTTP) Name() string { return "http" }

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the history to the endpoint and returns the first choice.
func (h *HTTP) Generate(ctx context.Context, history []types.Message) (string, error) {
	url := strings.TrimSpace(h.BaseURL)
	if url == "" {
		url = defaultChatCompletionsURL
	}
	model := strings.TrimSpace(h.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    history,
		Temperature: h.Temperature,
		MaxTokens:   h.MaxTokens,
	})
	if err != nil {
		return "", types.WrapFault(types.FaultResponderError, "encode request", err)
	}

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	backoff := retry.WithMaxRetries(h.MaxRetries, retry.NewExponential(500*time.Millisecond))

	var text string
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if h.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.APIKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return retry.RetryableError(fmt.Errorf("responder endpoint returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("responder endpoint returned %d", resp.StatusCode)
		}

		var parsed chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("responder returned no choices")
		}
		text = parsed.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", types.WrapFault(types.FaultResponderError, "generate reply", err)
	}
	return text, nil
}
