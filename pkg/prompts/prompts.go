package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const defaultPromptsPath = "prompts.yaml"

//go:embed default.yaml
var defaultPrompts []byte

// Variant selects the instruction that opens the outline prompt.
type Variant string

const (
	VariantTopic     Variant = "topic"
	VariantSummarize Variant = "summarize"
)

type Prompts struct {
	System  SystemPrompts  `yaml:"system"`
	Outline OutlinePrompts `yaml:"outline"`
}

type SystemPrompts struct {
	Outline string `yaml:"outline"`
}

// OutlinePrompts holds one shared template plus the per-variant instruction
// lines it is parameterized with.
type OutlinePrompts struct {
	Topic     string `yaml:"topic"`
	Summarize string `yaml:"summarize"`
	Template  string `yaml:"template"`
}

type OutlineParams struct {
	Variant    Variant
	Topic      string
	Text       string
	SlideCount int
}

type outlineData struct {
	OutlineParams
	Instruction string
}

// Load reads prompts.yaml from the working directory, falling back to the
// built-in prompts when the file does not exist.
func Load() (*Prompts, error) {
	p, err := LoadFrom(defaultPromptsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default()
	}
	return p, err
}

func LoadFrom(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	return parse(data)
}

func Default() (*Prompts, error) {
	return parse(defaultPrompts)
}

func parse(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}
	return &p, nil
}

func (p *Prompts) RenderOutline(params OutlineParams) (string, error) {
	var instruction string
	switch params.Variant {
	case VariantTopic:
		instruction = p.Outline.Topic
	case VariantSummarize:
		instruction = p.Outline.Summarize
	default:
		return "", fmt.Errorf("unknown prompt variant %q", params.Variant)
	}

	rendered, err := render(instruction, params)
	if err != nil {
		return "", err
	}

	return render(p.Outline.Template, outlineData{
		OutlineParams: params,
		Instruction:   strings.TrimSpace(rendered),
	})
}

func render(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
