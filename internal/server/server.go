package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"deckcast/internal/app"
)

const shutdownTimeout = 10 * time.Second

// Generator produces decks from the three supported inputs.
type Generator interface {
	FromTopic(ctx context.Context, topic string) (*app.Result, error)
	FromText(ctx context.Context, text string) (*app.Result, error)
	FromURL(ctx context.Context, url string) (*app.Result, error)
}

type Config struct {
	OutputDir string
	URLPath   string
}

type Server struct {
	generator Generator
	router    *gin.Engine
}

func New(generator Generator, cfg Config) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	_ = router.SetTrustedProxies(nil)

	s := &Server{generator: generator, router: router}
	s.registerRoutes(cfg)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes(cfg Config) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.POST("/generate", s.generateFromTopic)
	s.router.POST("/generate-from-text", s.generateFromText)
	s.router.POST("/generate-from-url", s.generateFromURL)

	if cfg.OutputDir != "" {
		urlPath := "/" + strings.Trim(cfg.URLPath, "/")
		s.router.Static(urlPath, cfg.OutputDir)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

func (s *Server) generateFromTopic(c *gin.Context) {
	var req topicRequest
	if !bindInput(c, &req, func() string { return req.Topic }, "topic") {
		return
	}
	s.respond(c, func(ctx context.Context) (*app.Result, error) {
		return s.generator.FromTopic(ctx, req.Topic)
	})
}

func (s *Server) generateFromText(c *gin.Context) {
	var req textRequest
	if !bindInput(c, &req, func() string { return req.Text }, "text") {
		return
	}
	s.respond(c, func(ctx context.Context) (*app.Result, error) {
		return s.generator.FromText(ctx, req.Text)
	})
}

func (s *Server) generateFromURL(c *gin.Context) {
	var req urlRequest
	if !bindInput(c, &req, func() string { return req.URL }, "url") {
		return
	}
	s.respond(c, func(ctx context.Context) (*app.Result, error) {
		return s.generator.FromURL(ctx, req.URL)
	})
}

// bindInput decodes the JSON body and rejects a missing or blank field.
func bindInput(c *gin.Context, req any, field func() string, name string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		slog.Debug("Rejected request body", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "request body must be JSON"})
		return false
	}
	if strings.TrimSpace(field()) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: name + " is required"})
		return false
	}
	return true
}

func (s *Server) respond(c *gin.Context, run func(context.Context) (*app.Result, error)) {
	result, err := run(c.Request.Context())
	if err != nil {
		status, message := errorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Generation failed", "path", c.FullPath(), "status", status, "error", err)
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: message})
		return
	}

	c.JSON(http.StatusOK, generateResponse{
		DownloadURL: result.DownloadURL,
		PreviewURL:  result.PreviewURL,
		RunID:       result.RunID,
	})
}

// errorStatus maps a pipeline failure to a status code and a message that
// never carries upstream details.
func errorStatus(err error) (int, string) {
	kind, ok := app.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal error"
	}

	switch kind {
	case app.KindInvalidInput:
		return http.StatusBadRequest, "input is required"
	case app.KindUpstreamTimeout:
		return http.StatusGatewayTimeout, "the language model timed out, please retry"
	case app.KindUpstreamRejected:
		return http.StatusBadGateway, "the language model rejected the request"
	case app.KindNormalization, app.KindValidation:
		return http.StatusBadGateway, "the language model returned an unusable outline"
	case app.KindScrape:
		return http.StatusBadGateway, "could not read content from the URL"
	case app.KindInternal:
		return http.StatusInternalServerError, "internal error"
	default:
		return http.StatusInternalServerError, "failed to build the presentation"
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	}
}
