package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"deckcast/internal/app"
	"deckcast/internal/deck/pptx"
	"deckcast/pkg/config"
)

var (
	onceTopic string
	onceText  string
	onceURL   string
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Generate a single deck",
	Long:  `Generate a single deck from a topic, a block of text, or a URL and print where it was written.`,
	RunE:  runOnce,
}

func init() {
	onceCmd.Flags().StringVarP(&onceTopic, "topic", "t", "", "Topic to present")
	onceCmd.Flags().StringVar(&onceText, "text", "", "Text to summarize into slides")
	onceCmd.Flags().StringVarP(&onceURL, "url", "u", "", "Web page to summarize into slides")
	onceCmd.MarkFlagsMutuallyExclusive("topic", "text", "url")
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	if onceTopic == "" && onceText == "" && onceURL == "" {
		return errors.New("please provide --topic, --text or --url")
	}

	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	service, err := app.BuildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	pipeline := app.NewPipeline(service)

	var result *app.Result
	switch {
	case onceURL != "":
		result, err = pipeline.FromURL(ctx, onceURL)
	case onceText != "":
		result, err = pipeline.FromText(ctx, onceText)
	default:
		result, err = pipeline.FromTopic(ctx, onceTopic)
	}
	if err != nil {
		if kind, ok := app.KindOf(err); ok && kind.Retryable() {
			slog.Info("The model timed out; running the command again may succeed")
		}
		return err
	}

	slog.Info("Deck generated",
		"title", result.Title,
		"path", result.DeckPath,
		"slides", result.SlideCount,
		"narrated", result.NarratedSlides,
	)

	slides, err := pptx.Inspect(result.DeckPath)
	if err != nil {
		return fmt.Errorf("inspect deck: %w", err)
	}
	for i, s := range slides {
		marker := " "
		if len(s.Media) > 0 {
			marker = "♪"
		}
		fmt.Printf("%2d %s %s\n", i+1, marker, s.Title)
	}
	fmt.Printf("\nDeck:    %s\nPreview: %s\n", result.DeckPath, result.PreviewPath)
	if result.DownloadURL != "" {
		fmt.Printf("URL:     %s\n", result.DownloadURL)
	}

	return nil
}
