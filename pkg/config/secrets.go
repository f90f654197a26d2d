package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretSource looks up API keys that were not supplied through the environment.
type SecretSource interface {
	Secret(ctx context.Context, name string) (string, error)
	Close() error
}

var newSecretSource = func(ctx context.Context, cfg *Config) (SecretSource, error) {
	switch cfg.Secrets.Provider {
	case "none":
		return nil, nil
	case "gcp":
		return NewGCPSecrets(ctx, cfg.GCPProject, cfg.Secrets.Prefix)
	case "aws":
		return NewSSMSecrets(ctx, cfg.Secrets.Prefix)
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", cfg.Secrets.Provider)
	}
}

func resolveSecrets(ctx context.Context, cfg *Config) error {
	wanted := missingSecrets(cfg)
	if len(wanted) == 0 {
		return nil
	}

	source, err := newSecretSource(ctx, cfg)
	if err != nil {
		return err
	}
	if source == nil {
		return nil
	}
	defer func() { _ = source.Close() }()

	for name, target := range wanted {
		value, err := source.Secret(ctx, name)
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		*target = strings.TrimSpace(value)
	}
	return nil
}

// missingSecrets returns only the keys the configured providers need.
func missingSecrets(cfg *Config) map[string]*string {
	wanted := make(map[string]*string)

	switch cfg.LLM.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			wanted["GEMINI_API_KEY"] = &cfg.GeminiAPIKey
		}
	case "groq":
		if cfg.GroqAPIKey == "" {
			wanted["GROQ_API_KEY"] = &cfg.GroqAPIKey
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			wanted["OPENAI_API_KEY"] = &cfg.OpenAIAPIKey
		}
	}

	if cfg.Speech.Provider == "elevenlabs" && cfg.ElevenLabsAPIKey == "" {
		wanted["ELEVENLABS_API_KEY"] = &cfg.ElevenLabsAPIKey
	}

	return wanted
}

type GCPSecrets struct {
	client  *secretmanager.Client
	project string
	prefix  string
}

func NewGCPSecrets(ctx context.Context, project, prefix string) (*GCPSecrets, error) {
	if project == "" {
		return nil, errors.New("GOOGLE_CLOUD_PROJECT is required for gcp secrets")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}

	return &GCPSecrets{client: client, project: project, prefix: prefix}, nil
}

func (s *GCPSecrets) Secret(ctx context.Context, name string) (string, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s%s/versions/latest", s.project, s.prefix, name),
	})
	if err != nil {
		return "", fmt.Errorf("access secret: %w", err)
	}
	if resp.GetPayload() == nil {
		return "", errors.New("secret has no payload")
	}
	return string(resp.GetPayload().GetData()), nil
}

func (s *GCPSecrets) Close() error {
	return s.client.Close()
}

type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SSMSecrets struct {
	api    ssmAPI
	prefix string
}

func NewSSMSecrets(ctx context.Context, prefix string) (*SSMSecrets, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SSMSecrets{api: ssm.NewFromConfig(awsCfg), prefix: prefix}, nil
}

func (s *SSMSecrets) Secret(ctx context.Context, name string) (string, error) {
	fullName := s.prefix + name

	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(fullName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %q: %w", fullName, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %q has no value", fullName)
	}
	return aws.ToString(out.Parameter.Value), nil
}

func (s *SSMSecrets) Close() error { return nil }
