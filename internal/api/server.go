package api

import (
	"context"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/filament/internal/inference"
	"github.com/samcharles93/filament/internal/logger"
	"github.com/samcharles93/filament/internal/tokenizer"
)

// Engine is the slice of the inference engine the HTTP surface needs;
// narrowed so tests can fake generation.
type Engine interface {
	TextCompletion(ctx context.Context, prompts []string, opts inference.GenerateOptions) ([]inference.CompletionPrediction, error)
	ChatCompletion(ctx context.Context, dialogs []tokenizer.Dialog, opts inference.GenerateOptions) ([]inference.ChatPrediction, error)
}

// Server hosts OpenAI-style completion endpoints over one engine.
type Server struct {
	engine    Engine
	log       logger.Logger
	modelName string
	clock     func() time.Time
}

func NewServer(engine Engine, log logger.Logger, modelName string) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if modelName == "" {
		modelName = "filament"
	}
	return &Server{
		engine:    engine,
		log:       log,
		modelName: modelName,
		clock:     time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/completions", s.handleCompletions)
	e.POST("/v1/chat/completions", s.handleChatCompletions)
	e.GET("/v1/models", s.handleListModels)
}

func (s *Server) handleListModels(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{{
			"id":       s.modelName,
			"object":   "model",
			"created":  s.clock().Unix(),
			"owned_by": "local",
		}},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func writeJSON(c *echo.Context, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.JSONBlob(status, b)
}
