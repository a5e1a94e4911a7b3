// Package openai generates optional flavour text for event messages.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/sashabaranov/go-openai"
)

// requestTimeout caps a single completion so message rendering never stalls
const requestTimeout = 15 * time.Second

// maxLineLength bounds generated text embedded in a message
const maxLineLength = 200

// Client represents an OpenAI API client
type Client struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// New creates a new OpenAI client
func New(apiKey, apiBase, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		config.BaseURL = apiBase
	}

	client := openai.NewClientWithConfig(config)
	return &Client{
		client: client,
		model:  model,
		logger: logger.New("openai"),
	}
}

// GenerateChatMessage generates a one-line chat message for a specific intent
func (c *Client) GenerateChatMessage(ctx context.Context, intent string, contextData map[string]interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	contextJSON, err := json.Marshal(contextData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}

	prompt := fmt.Sprintf(`
You are the herald of a gaming guild's Discord or Telegram channel. Write one short, rousing line for the following intent: "%s".
Use the context provided below. Keep it under 20 words and add at most two emojis.

Context:
%s

Return only the line, no explanations, no quotes.
`, intent, string(contextJSON))

	c.logger.Debug("Generating chat message for intent: %s", intent)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.9,
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI API")
	}

	line := cleanLine(resp.Choices[0].Message.Content)
	if line == "" {
		return "", fmt.Errorf("empty response from OpenAI API")
	}
	return line, nil
}

// cleanLine keeps the first non-empty line, without wrapping quotes
func cleanLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'`")
		line = strings.TrimSpace(line)
		if line != "" {
			return truncateString(line, maxLineLength)
		}
	}
	return ""
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
