package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"deckcast/internal/speech"
	"deckcast/pkg/httputil"
)

const (
	baseURL      = "https://api.elevenlabs.io/v1"
	timeout      = 120 * time.Second
	defaultModel = "eleven_multilingual_v2"
	outputFormat = "mp3_44100_128"
)

var _ speech.Provider = (*Client)(nil)

type Client struct {
	apiKeys    []string
	keyIndex   uint64
	httpClient *httputil.RetryClient
	voiceID    string
	model      string
	baseURL    string
	stability  float64
	similarity float64
}

// Config holds one or more API keys. Keys are used round-robin and a key
// that runs out of quota hands the request to the next one.
type Config struct {
	APIKeys    []string
	VoiceID    string
	Model      string
	Stability  float64
	Similarity float64
	Retry      httputil.RetryConfig
}

type option func(*Client)

func withBaseURL(url string) option {
	return func(c *Client) {
		c.baseURL = url
	}
}

func withHTTPClient(client *http.Client, retry httputil.RetryConfig) option {
	return func(c *Client) {
		c.httpClient = httputil.NewRetryClient(client, retry)
	}
}

func NewClient(cfg Config) *Client {
	return newClient(cfg)
}

func newClient(cfg Config, opts ...option) *Client {
	keys := cfg.APIKeys
	if len(keys) == 0 {
		keys = []string{""}
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	c := &Client{
		apiKeys:    keys,
		httpClient: httputil.NewRetryClient(&http.Client{Timeout: timeout}, cfg.Retry),
		voiceID:    cfg.VoiceID,
		model:      model,
		baseURL:    baseURL,
		stability:  cfg.Stability,
		similarity: cfg.Similarity,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Format() speech.Format { return speech.FormatMP3 }

func (c *Client) Speak(ctx context.Context, text, lang string) ([]byte, error) {
	payload, err := c.buildPayload(text, lang)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", c.baseURL, c.voiceID, outputFormat)

	// Fallback offsets are relative to this request's start key, not the
	// shared index.
	start := c.nextKeyIndex()

	var lastErr error
	for offset := range len(c.apiKeys) {
		audio, err := c.doRequestWithKey(ctx, url, payload, c.keyAt(start, offset))
		if err == nil {
			return audio, nil
		}
		if !isQuotaError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (c *Client) nextKeyIndex() uint64 {
	if len(c.apiKeys) == 1 {
		return 0
	}
	return atomic.AddUint64(&c.keyIndex, 1)
}

func (c *Client) keyAt(start uint64, offset int) string {
	return c.apiKeys[(start+uint64(offset))%uint64(len(c.apiKeys))]
}

func (c *Client) buildPayload(text, lang string) ([]byte, error) {
	payload := map[string]any{
		"text":     text,
		"model_id": c.model,
	}
	if lang != "" && !strings.HasPrefix(c.model, "eleven_multilingual") {
		payload["language_code"] = lang
	}
	if c.stability > 0 || c.similarity > 0 {
		payload["voice_settings"] = map[string]any{
			"stability":        c.stability,
			"similarity_boost": c.similarity,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return data, nil
}

func (c *Client) doRequestWithKey(ctx context.Context, url string, payload []byte, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: %s - %s", resp.Status, string(body))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio")
	}

	return body, nil
}

func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "quota_exceeded") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "429")
}
