package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/filament/internal/inference"
	"github.com/samcharles93/filament/internal/tokenizer"
)

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []tokenizer.Message `json:"messages"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	Seed        *int64              `json:"seed,omitempty"`
	Logprobs    bool                `json:"logprobs,omitempty"`
}

type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

type ChatChoice struct {
	Index        int                 `json:"index"`
	Message      tokenizer.Message   `json:"message"`
	Logprobs     *CompletionLogprobs `json:"logprobs,omitempty"`
	FinishReason string              `json:"finish_reason"`
}

func (s *Server) handleChatCompletions(c *echo.Context) error {
	req, err := decodeJSON[ChatCompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Messages) == 0 {
		return writeBadRequest(c, "messages is required and must not be empty")
	}
	for _, msg := range req.Messages {
		if msg.Role == "" {
			return writeBadRequest(c, "message role must not be empty")
		}
	}

	opts := inference.GenerateOptions{
		MaxGenLen:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Seed:        req.Seed,
		Logprobs:    req.Logprobs,
	}

	dialogs := []tokenizer.Dialog{tokenizer.Dialog(req.Messages)}
	preds, err := s.engine.ChatCompletion(c.Request().Context(), dialogs, opts)
	if err != nil {
		s.log.Error("chat completion failed", "error", err)
		return writeEngineError(c, err)
	}

	choices := make([]ChatChoice, len(preds))
	var usage Usage
	for i, p := range preds {
		choices[i] = ChatChoice{
			Index:        i,
			Message:      p.Generation,
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
	return writeJSON(c, http.StatusOK, ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: s.clock().Unix(),
		Model:   model,
		Choices: choices,
		Usage:   usage,
	})
}
