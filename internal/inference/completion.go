package inference

import (
	"context"
	"fmt"

	"github.com/samcharles93/filament/internal/tokenizer"
)

// CompletionPrediction is the decoded output for one text-completion prompt.
// Tokens and Logprobs are parallel slices, populated only when logprob
// tracking was requested. The token counts are always populated.
type CompletionPrediction struct {
	Generation string    `json:"generation"`
	Tokens     []string  `json:"tokens,omitempty"`
	Logprobs   []float64 `json:"logprobs,omitempty"`

	PromptTokens    int `json:"-"`
	GeneratedTokens int `json:"-"`
}

// ChatPrediction is the assistant reply for one dialog.
type ChatPrediction struct {
	Generation tokenizer.Message `json:"generation"`
	Tokens     []string          `json:"tokens,omitempty"`
	Logprobs   []float64         `json:"logprobs,omitempty"`

	PromptTokens    int `json:"-"`
	GeneratedTokens int `json:"-"`
}

// TextCompletion tokenizes raw prompt strings, runs one batched generation,
// and decodes the outputs.
func (e *Engine) TextCompletion(ctx context.Context, prompts []string, opts GenerateOptions) ([]CompletionPrediction, error) {
	promptTokens := make([][]int, len(prompts))
	for i, p := range prompts {
		ids, err := e.tok.Encode(p)
		if err != nil {
			return nil, fmt.Errorf("inference: encode prompt %d: %w", i, err)
		}
		promptTokens[i] = ids
	}

	result, err := e.Generate(ctx, promptTokens, opts)
	if err != nil {
		return nil, err
	}

	out := make([]CompletionPrediction, len(result.Tokens))
	for i, toks := range result.Tokens {
		text, err := e.tok.Decode(toks)
		if err != nil {
			return nil, fmt.Errorf("inference: decode output %d: %w", i, err)
		}
		generated := len(toks)
		if opts.Echo && generated >= len(promptTokens[i]) {
			generated -= len(promptTokens[i])
		}
		out[i] = CompletionPrediction{
			Generation:      text,
			PromptTokens:    len(promptTokens[i]),
			GeneratedTokens: generated,
		}
		if opts.Logprobs {
			out[i].Tokens, err = e.decodeEach(toks)
			if err != nil {
				return nil, err
			}
			out[i].Logprobs = result.Logprobs[i]
		}
	}
	return out, nil
}

// ChatCompletion renders each dialog through the chat format, runs one
// batched generation, and returns assistant-role replies.
func (e *Engine) ChatCompletion(ctx context.Context, dialogs []tokenizer.Dialog, opts GenerateOptions) ([]ChatPrediction, error) {
	promptTokens := make([][]int, len(dialogs))
	for i, d := range dialogs {
		ids, err := e.chat.EncodeDialogPrompt(d)
		if err != nil {
			return nil, fmt.Errorf("inference: render dialog %d: %w", i, err)
		}
		promptTokens[i] = ids
	}

	// The chat wrapper never echoes: the rendered prompt carries template
	// markup that is not part of the reply.
	opts.Echo = false

	result, err := e.Generate(ctx, promptTokens, opts)
	if err != nil {
		return nil, err
	}

	out := make([]ChatPrediction, len(result.Tokens))
	for i, toks := range result.Tokens {
		text, err := e.tok.Decode(toks)
		if err != nil {
			return nil, fmt.Errorf("inference: decode output %d: %w", i, err)
		}
		out[i] = ChatPrediction{
			Generation:      tokenizer.Message{Role: "assistant", Content: text},
			PromptTokens:    len(promptTokens[i]),
			GeneratedTokens: len(toks),
		}
		if opts.Logprobs {
			out[i].Tokens, err = e.decodeEach(toks)
			if err != nil {
				return nil, err
			}
			out[i].Logprobs = result.Logprobs[i]
		}
	}
	return out, nil
}

// decodeEach decodes token ids one at a time for per-token output.
func (e *Engine) decodeEach(toks []int) ([]string, error) {
	out := make([]string, len(toks))
	for i, id := range toks {
		s, err := e.tok.Decode([]int{id})
		if err != nil {
			return nil, fmt.Errorf("inference: decode token %d: %w", id, err)
		}
		out[i] = s
	}
	return out, nil
}
