package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/samcharles93/filament/internal/logger"
	"github.com/samcharles93/filament/internal/logits"
	"github.com/samcharles93/filament/internal/model"
	"github.com/samcharles93/filament/internal/tokenizer"
)

// Stats summarizes one generation call.
type Stats struct {
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// GenerateResult holds the trimmed per-sequence outputs of one Generate
// call. Logprobs is nil unless log-probability tracking was requested; when
// present it is parallel to Tokens.
type GenerateResult struct {
	Tokens   [][]int
	Logprobs [][]float64
	Stats    Stats
}

// Engine drives batched autoregressive decoding over a causal Model and a
// Tokenizer. It owns no cross-call state: every Generate call allocates its
// own buffers and resets the model's incremental cache before the first
// forward pass. A single Engine must not run concurrent Generate calls
// against the same model instance.
type Engine struct {
	model model.Model
	tok   tokenizer.Tokenizer
	chat  *tokenizer.ChatFormat
	log   logger.Logger
}

// New builds an Engine and verifies the model/tokenizer pairing. When the
// tokenizer reports its vocabulary size, a mismatch with the model is
// rejected up front as ErrInvalidInput.
func New(m model.Model, tok tokenizer.Tokenizer, log logger.Logger) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("inference: model is required")
	}
	if tok == nil {
		return nil, fmt.Errorf("inference: tokenizer is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if sized, ok := tok.(tokenizer.Sized); ok {
		if sized.VocabSize() != m.VocabSize() {
			return nil, newInvalidInput("inference: tokenizer vocab %d does not match model vocab %d",
				sized.VocabSize(), m.VocabSize())
		}
	}
	return &Engine{
		model: m,
		tok:   tok,
		chat:  tokenizer.NewChatFormat(tok),
		log:   log,
	}, nil
}

// Generate advances a batch of tokenized prompts token-by-token until every
// sequence hits a stop token or its generation budget. Prompts of different
// lengths share one grid and one position cursor; shorter prompts replay
// their remaining prompt tokens while longer rows are still prefilling.
func (e *Engine) Generate(ctx context.Context, promptTokens [][]int, opts GenerateOptions) (*GenerateResult, error) {
	if err := e.validatePrompts(promptTokens); err != nil {
		return nil, err
	}
	params := resolveOptions(opts, e.model.MaxSeqLen())
	if params.maxGenLen < 0 {
		return nil, newInvalidInput("inference: max generation length %d is negative", params.maxGenLen)
	}

	if r, ok := e.model.(model.Resettable); ok {
		r.Reset()
	}

	maxPromptLen := 0
	for _, p := range promptTokens {
		if len(p) > maxPromptLen {
			maxPromptLen = len(p)
		}
	}
	totalLen := e.model.MaxSeqLen()
	if n := params.maxGenLen + maxPromptLen; n < totalLen {
		totalLen = n
	}

	state := newBatchState(promptTokens, totalLen, e.tok.PadID(), e.tok.StopTokens(), params.logprobs)
	sampler := logits.NewSampler(logits.SamplerConfig{
		Seed:        params.seed,
		Temperature: params.temperature,
		TopP:        params.topP,
	})

	start := time.Now()
	minPromptLen := state.minPromptLen()

	if minPromptLen == totalLen {
		// Every prompt already fills the grid: nothing to generate,
		// one full forward pass purely for logprob bookkeeping.
		if err := e.primeLogprobs(ctx, state); err != nil {
			return nil, err
		}
	} else if err := e.decodeLoop(ctx, state, sampler, minPromptLen, params.progress); err != nil {
		return nil, err
	}

	result := &GenerateResult{
		Tokens: make([][]int, len(promptTokens)),
	}
	if params.logprobs {
		result.Logprobs = make([][]float64, len(promptTokens))
	}
	for i := range promptTokens {
		toks, lps := state.trimRow(i, params.maxGenLen, params.echo)
		result.Tokens[i] = toks
		if params.logprobs {
			result.Logprobs[i] = lps
		}
		generated := len(toks)
		if params.echo && generated >= state.promptLens[i] {
			generated -= state.promptLens[i]
		}
		result.Stats.TokensGenerated += generated
	}
	result.Stats.Duration = time.Since(start)
	if secs := result.Stats.Duration.Seconds(); secs > 0 {
		result.Stats.TPS = float64(result.Stats.TokensGenerated) / secs
	}

	e.log.Debug("generation complete",
		"batch", len(promptTokens),
		"tokens", result.Stats.TokensGenerated,
		"duration", result.Stats.Duration)
	return result, nil
}

// decodeLoop runs the shared-cursor decode from minPromptLen to the end of
// the grid. Each step feeds the model only the newly produced span plus its
// starting offset; spans are strictly increasing and never overlap.
func (e *Engine) decodeLoop(ctx context.Context, state *batchState, sampler *logits.Sampler, minPromptLen int, progress bool) error {
	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.NewOptions(state.totalLen-minPromptLen,
			progressbar.OptionSetDescription("decoding"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
		)
		defer bar.Finish()
	}

	prevPos := 0
	candidates := make([]int, len(state.tokens))
	for curPos := minPromptLen; curPos < state.totalLen; curPos++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lg, err := e.model.Forward(state.span(prevPos, curPos), prevPos)
		if err != nil {
			return fmt.Errorf("inference: forward at position %d: %w", curPos, err)
		}

		width := curPos - prevPos
		for i := range candidates {
			candidates[i] = sampler.Sample(lg[i][width-1])
		}

		written := state.applyNext(curPos, candidates)

		if state.logprobs != nil {
			// Logits at span offset j predict the token at absolute
			// position prevPos+j+1, covering (prevPos, curPos].
			for i := range state.tokens {
				for j := 0; j < width; j++ {
					pos := prevPos + 1 + j
					target := state.tokens[i][pos]
					if target == state.padID {
						continue
					}
					state.logprobs[i][pos] = logits.LogProb(lg[i][j], target)
				}
			}
		}

		state.updateStopMask(curPos, written)
		prevPos = curPos

		if bar != nil {
			_ = bar.Add(1)
		}
		if state.allStopped() {
			break
		}
	}
	return nil
}

// primeLogprobs handles the degenerate batch where every prompt fills the
// grid: a single full-sequence forward pass scores the prompt tokens in
// place, pad positions excluded.
func (e *Engine) primeLogprobs(ctx context.Context, state *batchState) error {
	if state.logprobs == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	lg, err := e.model.Forward(state.span(0, state.totalLen), 0)
	if err != nil {
		return fmt.Errorf("inference: priming forward: %w", err)
	}
	for i := range state.tokens {
		for pos := 0; pos < state.totalLen; pos++ {
			target := state.tokens[i][pos]
			if target == state.padID {
				continue
			}
			state.logprobs[i][pos] = logits.LogProb(lg[i][pos], target)
		}
	}
	return nil
}

func (e *Engine) validatePrompts(promptTokens [][]int) error {
	bsz := len(promptTokens)
	if bsz < 1 {
		return newInvalidInput("inference: empty batch")
	}
	if max := e.model.MaxBatchSize(); bsz > max {
		return newInvalidInput("inference: batch size %d exceeds model limit %d", bsz, max)
	}
	for i, p := range promptTokens {
		if len(p) < 1 {
			return newInvalidInput("inference: prompt %d is empty", i)
		}
		if max := e.model.MaxSeqLen(); len(p) > max {
			return newInvalidInput("inference: prompt %d length %d exceeds max sequence length %d", i, len(p), max)
		}
	}
	return nil
}
