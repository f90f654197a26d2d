package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFallsBackToDefault(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	p, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Outline.Template == "" {
		t.Error("default outline template is empty")
	}
	if p.System.Outline == "" {
		t.Error("default system prompt is empty")
	}
}

func TestLoadFrom(t *testing.T) {
	tmpDir := t.TempDir()
	promptsPath := filepath.Join(tmpDir, "custom.yaml")

	promptsContent := `
system:
  outline: "Custom system"
outline:
  topic: "About {{.Topic}}"
  summarize: "Summarize"
  template: "{{.Instruction}} in {{.SlideCount}}"
`
	if err := os.WriteFile(promptsPath, []byte(promptsContent), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFrom(promptsPath)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if p.System.Outline != "Custom system" {
		t.Errorf("System.Outline = %q, want %q", p.System.Outline, "Custom system")
	}

	got, err := p.RenderOutline(OutlineParams{Variant: VariantTopic, Topic: "Go", SlideCount: 3})
	if err != nil {
		t.Fatalf("RenderOutline() error = %v", err)
	}
	if got != "About Go in 3" {
		t.Errorf("RenderOutline() = %q, want %q", got, "About Go in 3")
	}
}

func TestLoadFromMissing(t *testing.T) {
	_, err := LoadFrom("/nonexistent/path.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRenderOutlineVariants(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	tests := []struct {
		name        string
		params      OutlineParams
		contains    []string
		notContains []string
	}{
		{
			name:        "topic",
			params:      OutlineParams{Variant: VariantTopic, Topic: "Photosynthesis", SlideCount: 5},
			contains:    []string{`5-slide presentation about "Photosynthesis"`, `"slides"`, `"title"`, `"content"`},
			notContains: []string{"TEXT:"},
		},
		{
			name:     "summarize",
			params:   OutlineParams{Variant: VariantSummarize, Text: "Plants convert light.", SlideCount: 5},
			contains: []string{"Convert the following text into a 5-slide presentation", "TEXT:", "Plants convert light.", `"slides"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.RenderOutline(tt.params)
			if err != nil {
				t.Fatalf("RenderOutline() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("prompt missing %q:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("prompt unexpectedly contains %q", unwanted)
				}
			}
		})
	}
}

func TestRenderOutlineUnknownVariant(t *testing.T) {
	p, _ := Default()
	if _, err := p.RenderOutline(OutlineParams{Variant: "poem"}); err == nil {
		t.Error("expected error for unknown variant")
	}
}
