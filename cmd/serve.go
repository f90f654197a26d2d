package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deckcast/internal/app"
	"deckcast/internal/server"
	"deckcast/pkg/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deck generation HTTP API",
	Long: `Start the HTTP API. POST /generate, /generate-from-text and /generate-from-url
build a deck and answer with its download URL; generated files are served under the
configured output path.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	service, err := app.BuildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	srv := server.New(app.NewPipeline(service), server.Config{
		OutputDir: cfg.Output.Dir,
		URLPath:   cfg.Output.URLPath,
	})

	if cfg.Output.Retention > 0 {
		go cleanPeriodically(ctx, service.Storage(), cfg.Output.Retention)
	}

	return srv.Run(ctx, cfg.Server.Addr)
}
