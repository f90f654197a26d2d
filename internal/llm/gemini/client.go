package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"deckcast/internal/llm"
)

const defaultVertexLocation = "us-central1"

var _ llm.Client = (*Client)(nil)

type Client struct {
	client   *genai.Client
	model    string
	jsonMode bool
}

// Config selects the backend: an API key targets the Gemini API, otherwise
// Project routes calls through Vertex AI with application default
// credentials.
type Config struct {
	APIKey   string
	Project  string
	Location string
	Model    string
	BaseURL  string
	JSONMode bool
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	clientCfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	}

	switch {
	case cfg.APIKey != "":
		clientCfg.APIKey = cfg.APIKey
		clientCfg.Backend = genai.BackendGeminiAPI
	case cfg.Project != "":
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
		if clientCfg.Location == "" {
			clientCfg.Location = defaultVertexLocation
		}
		clientCfg.Backend = genai.BackendVertexAI
	default:
		return nil, errors.New("gemini requires an API key or a GCP project")
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		client:   client,
		model:    cfg.Model,
		jsonMode: cfg.JSONMode,
	}, nil
}

func (c *Client) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	config := &genai.GenerateContentConfig{}
	if prompt.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		}
	}
	if c.jsonMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt.User), config)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", llm.ErrNoResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", llm.ErrEmptyResponse
	}

	return sb.String(), nil
}
