package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yegors/rbx-watch/internal/ai"
	"github.com/yegors/rbx-watch/pkg/logger"
)

const defaultBaseURL = "https://api.openai.com"

// Client implements ai.ChatProvider on top of the OpenAI chat completions
// API. Also works against compatible servers via OPENAI_API_BASE.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, log *logger.Logger) *Client {
	base := defaultBaseURL
	if env := os.Getenv("OPENAI_API_BASE"); env != "" {
		base = strings.TrimRight(env, "/")
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: log.Named("openai"),
	}
}

// ChatCompletion sends the conversation to the model and returns its reply
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	reqMessages := make([]message, len(messages))
	for i, msg := range messages {
		reqMessages[i] = message{Role: msg.Role, Content: msg.Content}
	}

	reqBody := struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
		Temperature float64   `json:"temperature"`
	}{
		Model:       config.Model,
		Messages:    reqMessages,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Sending chat completion request",
		logger.String("model", config.Model),
		logger.Int("messages", len(reqMessages)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat completion failed: %s %s", resp.Status, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode chat completion response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return result.Choices[0].Message.Content, nil
}
