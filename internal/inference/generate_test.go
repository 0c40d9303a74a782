package inference

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/samcharles93/filament/internal/logger"
)

// successorModel is a scripted stand-in for a causal model: the logits at
// every position put all the mass on lastToken+1 (mod vocab). It records the
// spans it was fed so tests can check the incremental-decoding contract.
type successorModel struct {
	vocab    int
	maxSeq   int
	maxBatch int

	resets     int
	forwards   int
	startPos   []int
	spanWidths []int
}

func (m *successorModel) Forward(tokens [][]int, startPos int) ([][][]float32, error) {
	m.forwards++
	m.startPos = append(m.startPos, startPos)
	m.spanWidths = append(m.spanWidths, len(tokens[0]))

	out := make([][][]float32, len(tokens))
	for i, row := range tokens {
		out[i] = make([][]float32, len(row))
		for j, tok := range row {
			logits := make([]float32, m.vocab)
			logits[(tok+1)%m.vocab] = 10
			out[i][j] = logits
		}
	}
	return out, nil
}

func (m *successorModel) MaxSeqLen() int    { return m.maxSeq }
func (m *successorModel) MaxBatchSize() int { return m.maxBatch }
func (m *successorModel) VocabSize() int    { return m.vocab }
func (m *successorModel) Reset()            { m.resets++ }

// idTokenizer maps every byte of the input to its own id. PadID 0 never
// collides because prompts in these tests use ids >= 1.
type idTokenizer struct {
	padID int
	stops []int
	vocab int
}

func (t idTokenizer) Encode(text string) ([]int, error) {
	ids := make([]int, len(text))
	for i := range text {
		ids[i] = int(text[i])
	}
	return ids, nil
}

func (t idTokenizer) Decode(ids []int) (string, error) {
	b := make([]byte, len(ids))
	for i, id := range ids {
		b[i] = byte(id)
	}
	return string(b), nil
}

func (t idTokenizer) PadID() int        { return t.padID }
func (t idTokenizer) StopTokens() []int { return t.stops }

type sizedTokenizer struct {
	idTokenizer
}

func (t sizedTokenizer) VocabSize() int { return t.vocab }

func newTestEngine(t *testing.T, m *successorModel, stops []int) *Engine {
	t.Helper()
	eng, err := New(m, idTokenizer{padID: 0, stops: stops}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func intPtr(n int) *int          { return &n }
func floatPtr(f float64) *float64 { return &f }

// TestGenerateGreedyVariableLengths is the shared-cursor scenario: prompts
// [1 2 3] and [1 2] with a two-token budget give a five-wide grid; the short
// row's column 2 starts as pad and must be overwritten by the argmax choice,
// never returned as pad.
func TestGenerateGreedyVariableLengths(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 16, maxBatch: 4}
	eng := newTestEngine(t, m, []int{31})

	res, err := eng.Generate(context.Background(), [][]int{{1, 2, 3}, {1, 2}}, GenerateOptions{
		MaxGenLen:   intPtr(2),
		Temperature: floatPtr(0),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := [][]int{{4, 5}, {3, 4}}
	if !reflect.DeepEqual(res.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", res.Tokens, want)
	}
	for _, row := range res.Tokens {
		for _, id := range row {
			if id == 0 {
				t.Fatal("pad id leaked into trimmed output")
			}
		}
	}
	if res.Logprobs != nil {
		t.Fatal("logprobs returned without being requested")
	}
	if res.Stats.TokensGenerated != 4 {
		t.Fatalf("TokensGenerated = %d, want 4", res.Stats.TokensGenerated)
	}
}

// TestGenerateDeterministic verifies greedy decoding is reproducible.
func TestGenerateDeterministic(t *testing.T) {
	prompts := [][]int{{5, 6, 7}, {9}}
	opts := GenerateOptions{MaxGenLen: intPtr(4), Temperature: floatPtr(0)}

	var first [][]int
	for i := 0; i < 3; i++ {
		m := &successorModel{vocab: 64, maxSeq: 32, maxBatch: 4}
		eng := newTestEngine(t, m, []int{63})
		res, err := eng.Generate(context.Background(), prompts, opts)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if first == nil {
			first = res.Tokens
			continue
		}
		if !reflect.DeepEqual(res.Tokens, first) {
			t.Fatalf("run %d produced %v, want %v", i, res.Tokens, first)
		}
	}
}

// TestGenerateStopTokenTrims checks per-row early stop: the row that hits
// the stop token at its second generated position is trimmed to one token
// while the other row runs to its full budget.
func TestGenerateStopTokenTrims(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 32, maxBatch: 4}
	eng := newTestEngine(t, m, []int{13})

	res, err := eng.Generate(context.Background(), [][]int{{1, 2}, {10, 11}}, GenerateOptions{
		MaxGenLen:   intPtr(3),
		Temperature: floatPtr(0),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := [][]int{{3, 4, 5}, {12}}
	if !reflect.DeepEqual(res.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", res.Tokens, want)
	}
}

// TestGenerateAllStoppedEndsEarly: when every row stops, the loop must not
// keep calling the model for the remaining positions.
func TestGenerateAllStoppedEndsEarly(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 32, maxBatch: 4}
	eng := newTestEngine(t, m, []int{6})

	_, err := eng.Generate(context.Background(), [][]int{{5}, {5}}, GenerateOptions{
		MaxGenLen:   intPtr(10),
		Temperature: floatPtr(0),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// One step generates the stop token for both rows.
	if m.forwards != 1 {
		t.Fatalf("model called %d times after all rows stopped, want 1", m.forwards)
	}
}

func TestGenerateEcho(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 32, maxBatch: 4}
	eng := newTestEngine(t, m, []int{31})

	prompts := [][]int{{1, 2, 3}, {1, 2}}
	res, err := eng.Generate(context.Background(), prompts, GenerateOptions{
		MaxGenLen:   intPtr(2),
		Temperature: floatPtr(0),
		Echo:        true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i, row := range res.Tokens {
		if len(row) < len(prompts[i]) {
			t.Fatalf("row %d shorter than its prompt", i)
		}
		if !reflect.DeepEqual(row[:len(prompts[i])], prompts[i]) {
			t.Fatalf("row %d prefix = %v, want prompt %v", i, row[:len(prompts[i])], prompts[i])
		}
	}
}

// TestGenerateIncrementalContract asserts the model only ever sees strictly
// increasing, contiguous, non-overlapping spans, and that its cache is reset
// once per call.
func TestGenerateIncrementalContract(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 32, maxBatch: 4}
	eng := newTestEngine(t, m, []int{31})

	_, err := eng.Generate(context.Background(), [][]int{{1, 2, 3, 4}, {1, 2}}, GenerateOptions{
		MaxGenLen:   intPtr(3),
		Temperature: floatPtr(0),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if m.resets != 1 {
		t.Fatalf("model reset %d times, want once per call", m.resets)
	}
	if m.startPos[0] != 0 {
		t.Fatalf("first span starts at %d, want 0", m.startPos[0])
	}
	for i := 1; i < len(m.startPos); i++ {
		if m.startPos[i] <= m.startPos[i-1] {
			t.Fatalf("startPos not strictly increasing: %v", m.startPos)
		}
		if m.startPos[i] != m.startPos[i-1]+m.spanWidths[i-1] {
			t.Fatalf("span %d overlaps or skips: starts %v widths %v", i, m.startPos, m.spanWidths)
		}
	}
}

func TestGenerateInvalidInput(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 8, maxBatch: 2}
	eng := newTestEngine(t, m, []int{31})

	cases := []struct {
		name    string
		prompts [][]int
	}{
		{"empty-batch", nil},
		{"batch-too-large", [][]int{{1}, {1}, {1}}},
		{"empty-prompt", [][]int{{}}},
		{"prompt-too-long", [][]int{{1, 2, 3, 4, 5, 6, 7, 8, 9}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.Generate(context.Background(), tc.prompts, GenerateOptions{MaxGenLen: intPtr(2)})
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if m.forwards != 0 {
		t.Fatalf("model called %d times for invalid input, want 0", m.forwards)
	}
}

// TestGenerateNegativeMaxGenLen: a negative budget must be rejected up
// front, not shrink the grid below the prompt length and blow up in
// trimming.
func TestGenerateNegativeMaxGenLen(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 16, maxBatch: 4}
	eng := newTestEngine(t, m, []int{31})

	_, err := eng.Generate(context.Background(), [][]int{{1, 2, 3}}, GenerateOptions{
		MaxGenLen:   intPtr(-1),
		Temperature: floatPtr(0),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if m.forwards != 0 {
		t.Fatalf("model called %d times for negative budget, want 0", m.forwards)
	}
}

func TestNewVocabMismatch(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 8, maxBatch: 2}
	tok := sizedTokenizer{idTokenizer{padID: 0, stops: []int{31}, vocab: 64}}
	_, err := New(m, tok, logger.Nop())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGenerateLogprobs(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 32, maxBatch: 4}
	eng := newTestEngine(t, m, []int{31})

	res, err := eng.Generate(context.Background(), [][]int{{1, 2, 3}, {1, 2}}, GenerateOptions{
		MaxGenLen:   intPtr(2),
		Temperature: floatPtr(0),
		Logprobs:    true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Logprobs == nil {
		t.Fatal("logprobs requested but nil")
	}
	for i, lps := range res.Logprobs {
		if len(lps) != len(res.Tokens[i]) {
			t.Fatalf("row %d: %d logprobs for %d tokens", i, len(lps), len(res.Tokens[i]))
		}
		for j, lp := range lps {
			if lp > 0 {
				t.Fatalf("row %d pos %d: positive log-probability %v", i, j, lp)
			}
			// The successor model concentrates nearly all mass on
			// the chosen token, so its logprob is close to zero.
			if lp < -1 {
				t.Fatalf("row %d pos %d: logprob %v too small for near-certain token", i, j, lp)
			}
		}
	}
}

// TestGeneratePrimingPass covers the no-headroom batch: prompts fill the
// grid, so a single full forward pass populates logprobs and no tokens are
// generated.
func TestGeneratePrimingPass(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 4, maxBatch: 4}
	eng := newTestEngine(t, m, []int{31})

	prompts := [][]int{{1, 2, 3, 4}, {5, 6, 7, 8}}

	res, err := eng.Generate(context.Background(), prompts, GenerateOptions{
		MaxGenLen:   intPtr(2),
		Temperature: floatPtr(0),
		Logprobs:    true,
		Echo:        true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if m.forwards != 1 {
		t.Fatalf("model called %d times, want exactly one priming pass", m.forwards)
	}
	if m.spanWidths[0] != 4 || m.startPos[0] != 0 {
		t.Fatalf("priming pass saw span width %d start %d, want full sequence from 0",
			m.spanWidths[0], m.startPos[0])
	}
	if !reflect.DeepEqual(res.Tokens, prompts) {
		t.Fatalf("echoed tokens = %v, want the prompts unchanged", res.Tokens)
	}
	for i, lps := range res.Logprobs {
		if len(lps) != len(prompts[i]) {
			t.Fatalf("row %d logprob length = %d, want %d", i, len(lps), len(prompts[i]))
		}
	}

	// Without echo there is nothing to return.
	res, err = eng.Generate(context.Background(), prompts, GenerateOptions{
		MaxGenLen:   intPtr(2),
		Temperature: floatPtr(0),
		Logprobs:    true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := range res.Tokens {
		if len(res.Tokens[i]) != 0 {
			t.Fatalf("row %d generated %v with no headroom", i, res.Tokens[i])
		}
	}
}

func TestGenerateContextCancelled(t *testing.T) {
	m := &successorModel{vocab: 32, maxSeq: 32, maxBatch: 4}
	eng := newTestEngine(t, m, []int{31})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Generate(ctx, [][]int{{1, 2}}, GenerateOptions{MaxGenLen: intPtr(4)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// TestGenerateNucleusSampled runs a positive temperature through the whole
// loop: outputs must come from the model's vocabulary and be reproducible
// for a fixed seed.
func TestGenerateNucleusSampled(t *testing.T) {
	prompts := [][]int{{1, 2, 3}}
	opts := GenerateOptions{
		MaxGenLen:   intPtr(4),
		Temperature: floatPtr(0.8),
		TopP:        floatPtr(0.9),
		Seed:        int64Ptr(1234),
	}

	var first [][]int
	for i := 0; i < 2; i++ {
		m := &successorModel{vocab: 32, maxSeq: 32, maxBatch: 4}
		eng := newTestEngine(t, m, []int{31})
		res, err := eng.Generate(context.Background(), prompts, opts)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		for _, id := range res.Tokens[0] {
			if id < 0 || id >= m.vocab {
				t.Fatalf("sampled id %d outside vocabulary", id)
			}
		}
		if first == nil {
			first = res.Tokens
		} else if !reflect.DeepEqual(res.Tokens, first) {
			t.Fatalf("seeded runs differ: %v vs %v", res.Tokens, first)
		}
	}
}

func int64Ptr(n int64) *int64 { return &n }
