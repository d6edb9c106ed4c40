package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/yegors/rbx-watch/internal/ai"
	"github.com/yegors/rbx-watch/pkg/logger"
)

// Client implements ai.ChatProvider on top of the Gemini API
type Client struct {
	client *genai.Client
	logger *logger.Logger
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, log *logger.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client: client,
		logger: log.Named("gemini"),
	}, nil
}

// ChatCompletion sends the conversation to the model and returns its reply.
// A "system" role message becomes the system instruction, "assistant"
// messages map to the model role, everything else is sent as the user.
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	var system string
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if config.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(config.Temperature))
	}
	if config.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(config.MaxTokens)
	}

	c.logger.Debug("Sending chat completion request",
		logger.String("model", config.Model),
		logger.Int("messages", len(contents)),
	)

	resp, err := c.client.Models.GenerateContent(ctx, config.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}

	return text, nil
}
