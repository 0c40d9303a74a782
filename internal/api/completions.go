package api

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/filament/internal/inference"
)

// CompletionRequest is an OpenAI-compatible text completion request.
type CompletionRequest struct {
	Model       string      `json:"model"`
	Prompt      PromptValue `json:"prompt"`
	MaxTokens   *int        `json:"max_tokens,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	TopP        *float64    `json:"top_p,omitempty"`
	Seed        *int64      `json:"seed,omitempty"`
	Logprobs    bool        `json:"logprobs,omitempty"`
	Echo        bool        `json:"echo,omitempty"`
}

// PromptValue accepts either a single prompt string or an array of them.
type PromptValue struct {
	Prompts []string
}

func (v *PromptValue) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		v.Prompts = nil
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		v.Prompts = []string{s}
		return nil
	case '[':
		var ss []string
		if err := json.Unmarshal(b, &ss); err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		v.Prompts = ss
		return nil
	default:
		return fmt.Errorf("prompt: expected string or array of strings")
	}
}

func (v PromptValue) MarshalJSON() ([]byte, error) {
	if len(v.Prompts) == 1 {
		return json.Marshal(v.Prompts[0])
	}
	return json.Marshal(v.Prompts)
}

type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

type CompletionChoice struct {
	Index        int                 `json:"index"`
	Text         string              `json:"text"`
	Logprobs     *CompletionLogprobs `json:"logprobs"`
	FinishReason string              `json:"finish_reason"`
}

type CompletionLogprobs struct {
	Tokens        []string  `json:"tokens"`
	TokenLogprobs []float64 `json:"token_logprobs"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (s *Server) handleCompletions(c *echo.Context) error {
	req, err := decodeJSON[CompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Prompt.Prompts) == 0 {
		return writeBadRequest(c, "prompt is required and must not be empty")
	}

	opts := inference.GenerateOptions{
		MaxGenLen:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Seed:        req.Seed,
		Logprobs:    req.Logprobs,
		Echo:        req.Echo,
	}

	preds, err := s.engine.TextCompletion(c.Request().Context(), req.Prompt.Prompts, opts)
	if err != nil {
		s.log.Error("text completion failed", "error", err)
		return writeEngineError(c, err)
	}

	choices := make([]CompletionChoice, len(preds))
	var usage Usage
	for i, p := range preds {
		choices[i] = CompletionChoice{
			Index:        i,
			Text:         p.Generation,
			FinishReason: "stop",
		}
		if req.Logprobs {
			choices[i].Logprobs = &CompletionLogprobs{
				Tokens:        p.Tokens,
				TokenLogprobs: p.Logprobs,
			}
		}
		usage.PromptTokens += p.PromptTokens
		usage.CompletionTokens += p.GeneratedTokens
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	model := req.Model
	if model == "" {
		model = s.modelName
	}
	return writeJSON(c, http.StatusOK, CompletionResponse{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: s.clock().Unix(),
		Model:   model,
		Choices: choices,
		Usage:   usage,
	})
}
