package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for an OpenAI-compatible chat completions API (Ollama, llama.cpp).
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds a single Chat call. Zero means no limit beyond ctx.
	Timeout time.Duration
	client  *http.Client
}

// NewClient creates a new LLM client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Timeout: timeout,
		client:  http.DefaultClient,
	}
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents the request payload for chat completions.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// ChatChoice represents a single choice in the chat response.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse represents the response from the chat completions API.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Choices []ChatChoice `json:"choices"`
}

// Chat sends a system prompt and a user message and returns the assistant reply.
// Deadline errors unwrap to context.DeadlineExceeded.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: user})

	var chatResp ChatResponse
	if err := postJSON(ctx, c.client, c.BaseURL, "/v1/chat/completions", c.APIKey, ChatRequest{Model: c.Model, Messages: messages}, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// Ping checks that the LLM server answers the models endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := listModels(ctx, c.client, c.BaseURL, c.APIKey)
	return err
}

// ModelAvailable reports whether the configured model is served.
func (c *Client) ModelAvailable(ctx context.Context) (bool, error) {
	return modelServed(ctx, c.client, c.BaseURL, c.APIKey, c.Model)
}
