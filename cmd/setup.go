package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	envPath    = ".env"
	configPath = "config.yaml"
	outputDir  = "static/outputs"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// envOrder fixes the order of keys written to .env.
var envOrder = []string{
	"GEMINI_API_KEY",
	"GROQ_API_KEY",
	"OPENAI_API_KEY",
	"ELEVENLABS_API_KEY",
	"GOOGLE_CLOUD_PROJECT",
	"GCS_BUCKET",
}

var llmKeys = map[string]struct{ env, url string }{
	"gemini": {"GEMINI_API_KEY", "https://aistudio.google.com/apikey"},
	"groq":   {"GROQ_API_KEY", "https://console.groq.com/keys"},
	"openai": {"OPENAI_API_KEY", "https://platform.openai.com/api-keys"},
}

type setupChoices struct {
	LLMProvider    string
	SpeechProvider string
	Bucket         string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for Deckcast",
	Long:  `Choose providers, store API keys in .env, and write a starter config.yaml.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("Deckcast Setup"))

	if err := createDirectories(); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	env := make(map[string]string)
	choices, err := chooseProviders(env)
	if err != nil {
		return fmt.Errorf("choosing providers: %w", err)
	}

	if err := configureGCP(env, choices); err != nil {
		return fmt.Errorf("configuring google cloud: %w", err)
	}

	if err := confirmOverwrite(envPath); err != nil {
		return err
	}
	if err := writeEnvFile(envPath, env); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Wrote " + envPath))

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := writeConfigFile(configPath, choices); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Wrote " + configPath))
	} else {
		fmt.Println(infoStyle.Render("Kept existing " + configPath))
	}

	printNextSteps()
	return nil
}

func createDirectories() error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", outputDir, err)
	}
	fmt.Println(successStyle.Render("✓ Created " + outputDir))
	return nil
}

func chooseProviders(env map[string]string) (*setupChoices, error) {
	choices := &setupChoices{}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language model").
				Options(
					huh.NewOption("Gemini (default)", "gemini"),
					huh.NewOption("Groq", "groq"),
					huh.NewOption("OpenAI", "openai"),
				).
				Value(&choices.LLMProvider),
			huh.NewSelect[string]().
				Title("Narration voice").
				Options(
					huh.NewOption("Google Translate TTS (no key)", "gtts"),
					huh.NewOption("ElevenLabs", "elevenlabs"),
					huh.NewOption("Silent placeholder audio", "stub"),
				).
				Value(&choices.SpeechProvider),
		),
	).Run(); err != nil {
		return nil, err
	}

	key := llmKeys[choices.LLMProvider]
	var llmKey string
	if err := huh.NewInput().
		Title(key.env).
		Description(key.url).
		EchoMode(huh.EchoModePassword).
		Value(&llmKey).
		Validate(required(key.env)).
		Run(); err != nil {
		return nil, err
	}
	env[key.env] = strings.TrimSpace(llmKey)

	if choices.SpeechProvider == "elevenlabs" {
		var elevenKey string
		if err := huh.NewInput().
			Title("ElevenLabs API Key").
			Description("Several keys may be separated by commas").
			EchoMode(huh.EchoModePassword).
			Value(&elevenKey).
			Validate(required("ElevenLabs API Key")).
			Run(); err != nil {
			return nil, err
		}
		env["ELEVENLABS_API_KEY"] = strings.TrimSpace(elevenKey)
	}

	return choices, nil
}

func configureGCP(env map[string]string, choices *setupChoices) error {
	var publish bool
	if err := huh.NewConfirm().
		Title("Publish decks to Google Cloud Storage?").
		Description("Download links will point at the bucket instead of this server").
		Value(&publish).
		Run(); err != nil {
		return err
	}
	if !publish {
		return nil
	}

	if project := getActiveProject(); project != "" {
		env["GOOGLE_CLOUD_PROJECT"] = project
	} else {
		fmt.Println(warnStyle.Render("gcloud has no active project; set GOOGLE_CLOUD_PROJECT later"))
	}

	if err := huh.NewInput().
		Title("Bucket name").
		Value(&choices.Bucket).
		Validate(required("Bucket name")).
		Run(); err != nil {
		return err
	}
	env["GCS_BUCKET"] = strings.TrimSpace(choices.Bucket)

	if project := env["GOOGLE_CLOUD_PROJECT"]; project != "" && commandExists("gcloud") {
		if err := enableGCPAPIs(project); err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("API enablement failed: %v", err)))
		}
	}
	return nil
}

func getActiveProject() string {
	if !commandExists("gcloud") {
		return ""
	}
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func enableGCPAPIs(project string) error {
	apis := []string{
		"storage.googleapis.com",
		"secretmanager.googleapis.com",
	}

	return runWithSpinner("Enabling APIs", func() error {
		args := append([]string{"services", "enable"}, apis...)
		args = append(args, "--project", project)
		return runSetupCmd("gcloud", args...)
	})
}

func confirmOverwrite(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	var overwrite bool
	if err := huh.NewConfirm().
		Title("Found existing " + path).
		Description("Overwrite?").
		Value(&overwrite).
		Run(); err != nil {
		return err
	}
	if !overwrite {
		return fmt.Errorf("kept existing %s", path)
	}
	return nil
}

func writeEnvFile(path string, env map[string]string) error {
	var buf bytes.Buffer
	for _, key := range envOrder {
		if val, ok := env[key]; ok && val != "" {
			_, _ = fmt.Fprintf(&buf, "%s=%s\n", key, val)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeConfigFile(path string, choices *setupChoices) error {
	doc := map[string]any{
		"llm":    map[string]any{"provider": choices.LLMProvider},
		"speech": map[string]any{"provider": choices.SpeechProvider, "language": "en"},
		"output": map[string]any{"dir": "./" + outputDir, "url_path": "/outputs", "retention": "24h"},
	}
	if choices.Bucket != "" {
		doc["gcs"] = map[string]any{"enabled": true, "bucket": choices.Bucket}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println(`  1. Run: deckcast once -t "your topic"`)
	fmt.Println("  2. Or start the API: deckcast serve")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runSetupCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, stderr.String())
	}
	return nil
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
