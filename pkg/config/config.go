package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath      = "config.yaml"
	defaultAddr            = ":8080"
	defaultOutputDir       = "./static/outputs"
	defaultOutputURLPath   = "/outputs"
	defaultRetention       = 24 * time.Hour
	defaultLLMProvider     = "gemini"
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultGroqModel       = "llama-3.3-70b-versatile"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultLLMTimeout      = 60 * time.Second
	defaultSpeechProvider  = "gtts"
	defaultLanguage        = "en"
	defaultSpeechTimeout   = 30 * time.Second
	defaultElevenLabsVoice = "JBFqnCBsd6RMkjVDRZzb"
	defaultElevenLabsModel = "eleven_flash_v2_5"
	defaultParallelism     = 2
	defaultSlideCount      = 5
	defaultSubtitle        = "AI-Generated Presentation"
	defaultScrapeTimeout   = 20 * time.Second
	defaultUserAgent       = "Mozilla/5.0"
	defaultScrapeMaxBytes  = 5 << 20
	defaultInitialDelay    = 500 * time.Millisecond
	defaultMaxDelay        = 5 * time.Second
	defaultGCSPrefix       = "decks"
	defaultSecretsProvider = "none"
)

type Config struct {
	GeminiAPIKey     string `yaml:"-"`
	GroqAPIKey       string `yaml:"-"`
	OpenAIAPIKey     string `yaml:"-"`
	ElevenLabsAPIKey string `yaml:"-"`
	GCPProject       string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Speech    SpeechConfig    `yaml:"speech"`
	Narration NarrationConfig `yaml:"narration"`
	Deck      DeckConfig      `yaml:"deck"`
	Output    OutputConfig    `yaml:"output"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Retry     RetryConfig     `yaml:"retry"`
	GCS       GCSConfig       `yaml:"gcs"`
	Secrets   SecretsConfig   `yaml:"secrets"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BaseURL is prepended to download links; empty yields host-relative links.
	BaseURL string `yaml:"base_url"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"` // "gemini", "groq" or "openai"
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SpeechConfig struct {
	Provider string        `yaml:"provider"` // "gtts", "elevenlabs" or "stub"
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
	VoiceID  string        `yaml:"voice_id"`
	Model    string        `yaml:"model"`
}

type NarrationConfig struct {
	Disabled    bool `yaml:"disabled"`
	Parallelism int  `yaml:"parallelism"`
}

type DeckConfig struct {
	SlideCount   int    `yaml:"slide_count"`
	Subtitle     string `yaml:"subtitle"`
	DisableMedia bool   `yaml:"disable_media"`
}

type OutputConfig struct {
	Dir       string        `yaml:"dir"`
	URLPath   string        `yaml:"url_path"`
	Retention time.Duration `yaml:"retention"`
}

type ScrapeConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	MaxBytes  int64         `yaml:"max_bytes"`
}

// RetryConfig governs retries of upstream calls. MaxRetries of zero keeps the
// single-attempt behavior.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type GCSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

type SecretsConfig struct {
	Provider string `yaml:"provider"` // "none", "gcp" or "aws"
	// Prefix is prepended to secret names, e.g. "deckcast-" or "/deckcast/".
	Prefix string `yaml:"prefix"`
}

func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, defaultConfigPath)
}

func LoadFrom(ctx context.Context, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := loadYAMLConfig(cfg, path); err != nil {
		return nil, err
	}
	loadEnv(cfg)
	applyDefaults(cfg)

	if err := resolveSecrets(ctx, cfg); err != nil {
		return nil, fmt.Errorf("resolve secrets: %w", err)
	}

	return cfg, nil
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No config file found, using defaults", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	cfg.GeminiAPIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	cfg.GCPProject = os.Getenv("GOOGLE_CLOUD_PROJECT")

	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		cfg.GCS.Bucket = bucket
	}
	if dir := os.Getenv("DECKCAST_OUTPUT_DIR"); dir != "" {
		cfg.Output.Dir = dir
	}
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(cfg)
	applyLLMDefaults(cfg)
	applySpeechDefaults(cfg)
	applyNarrationDefaults(cfg)
	applyDeckDefaults(cfg)
	applyOutputDefaults(cfg)
	applyScrapeDefaults(cfg)
	applyRetryDefaults(cfg)
	applyGCSDefaults(cfg)
	applySecretsDefaults(cfg)
}

func applyServerDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
}

func applyLLMDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = defaultLLMProvider
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "groq":
			cfg.LLM.Model = defaultGroqModel
		case "openai":
			cfg.LLM.Model = defaultOpenAIModel
		default:
			cfg.LLM.Model = defaultGeminiModel
		}
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = defaultLLMTimeout
	}
}

func applySpeechDefaults(cfg *Config) {
	if cfg.Speech.Provider == "" {
		cfg.Speech.Provider = defaultSpeechProvider
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = defaultLanguage
	}
	if cfg.Speech.Timeout == 0 {
		cfg.Speech.Timeout = defaultSpeechTimeout
	}
	if cfg.Speech.VoiceID == "" {
		cfg.Speech.VoiceID = defaultElevenLabsVoice
	}
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = defaultElevenLabsModel
	}
}

func applyNarrationDefaults(cfg *Config) {
	if cfg.Narration.Parallelism <= 0 {
		cfg.Narration.Parallelism = defaultParallelism
	}
}

func applyDeckDefaults(cfg *Config) {
	if cfg.Deck.SlideCount <= 0 {
		cfg.Deck.SlideCount = defaultSlideCount
	}
	if cfg.Deck.Subtitle == "" {
		cfg.Deck.Subtitle = defaultSubtitle
	}
}

func applyOutputDefaults(cfg *Config) {
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = defaultOutputDir
	}
	if cfg.Output.URLPath == "" {
		cfg.Output.URLPath = defaultOutputURLPath
	}
	if cfg.Output.Retention == 0 {
		cfg.Output.Retention = defaultRetention
	}
}

func applyScrapeDefaults(cfg *Config) {
	if cfg.Scrape.Timeout == 0 {
		cfg.Scrape.Timeout = defaultScrapeTimeout
	}
	if cfg.Scrape.UserAgent == "" {
		cfg.Scrape.UserAgent = defaultUserAgent
	}
	if cfg.Scrape.MaxBytes == 0 {
		cfg.Scrape.MaxBytes = defaultScrapeMaxBytes
	}
}

func applyRetryDefaults(cfg *Config) {
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = defaultInitialDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = defaultMaxDelay
	}
}

func applyGCSDefaults(cfg *Config) {
	if cfg.GCS.Prefix == "" {
		cfg.GCS.Prefix = defaultGCSPrefix
	}
}

func applySecretsDefaults(cfg *Config) {
	if cfg.Secrets.Provider == "" {
		cfg.Secrets.Provider = defaultSecretsProvider
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
