package groq

import (
	"context"
	"fmt"

	"github.com/conneroisu/groq-go"

	"deckcast/internal/llm"
)

var _ llm.Client = (*Client)(nil)

type Client struct {
	client   *groq.Client
	model    groq.ChatModel
	jsonMode bool
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL  string
	jsonMode bool
}

// WithBaseURL points the client at a Groq-compatible endpoint. The URL must
// end with a slash.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithJSONMode asks the service to constrain replies to a JSON object.
func WithJSONMode() Option {
	return func(o *clientOptions) { o.jsonMode = true }
}

func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		client *groq.Client
		err    error
	)
	if o.baseURL != "" {
		client, err = groq.NewClient(apiKey, groq.WithBaseURL(o.baseURL))
	} else {
		client, err = groq.NewClient(apiKey)
	}
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}

	return &Client{
		client:   client,
		model:    groq.ChatModel(model),
		jsonMode: o.jsonMode,
	}, nil
}

func (c *Client) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	var messages []groq.ChatCompletionMessage
	if prompt.System != "" {
		messages = append(messages, groq.ChatCompletionMessage{Role: groq.RoleSystem, Content: prompt.System})
	}
	messages = append(messages, groq.ChatCompletionMessage{Role: groq.RoleUser, Content: prompt.User})

	req := groq.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if c.jsonMode {
		req.ResponseFormat = &groq.ChatResponseFormat{Type: "json_object"}
	}

	resp, err := c.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.ErrNoResponse
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", llm.ErrEmptyResponse
	}

	return content, nil
}
