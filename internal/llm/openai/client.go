package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"deckcast/internal/llm"
)

var _ llm.Client = (*Client)(nil)

// Client talks to the chat completions API of OpenAI or any compatible
// endpoint.
type Client struct {
	client   openai.Client
	model    string
	jsonMode bool
}

type Option func(*clientOptions)

type clientOptions struct {
	requestOpts []option.RequestOption
	jsonMode    bool
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.requestOpts = append(o.requestOpts, option.WithBaseURL(url))
	}
}

func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *clientOptions) {
		o.requestOpts = append(o.requestOpts, opts...)
	}
}

func WithJSONMode() Option {
	return func(o *clientOptions) { o.jsonMode = true }
}

func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if model == "" {
		return nil, errors.New("openai model is required")
	}

	// Retries are owned by the caller.
	o := clientOptions{
		requestOpts: []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		client:   openai.NewClient(o.requestOpts...),
		model:    model,
		jsonMode: o.jsonMode,
	}, nil
}

func (c *Client) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}
	if c.jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
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
