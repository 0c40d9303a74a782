// Package toy provides a tiny deterministic language model and tokenizer for
// tests, benchmarks and the demo server. The model is a bigram scorer: the
// logits at a position depend only on the token at that position, so the
// incremental-decoding contract holds trivially and outputs are reproducible
// from the seed alone.
package toy

import (
	"fmt"
	"math/rand"
)

type Model struct {
	vocab    int
	hidden   int
	maxSeq   int
	maxBatch int

	emb [][]float32 // [vocab][hidden]
	w   [][]float32 // [hidden][vocab]
}

// NewModel constructs a model whose weights are filled deterministically
// from the seed.
func NewModel(vocab, hidden, maxSeq, maxBatch int, seed int64) *Model {
	rng := rand.New(rand.NewSource(seed))
	m := &Model{
		vocab:    vocab,
		hidden:   hidden,
		maxSeq:   maxSeq,
		maxBatch: maxBatch,
		emb:      fillRand(rng, vocab, hidden),
		w:        fillRand(rng, hidden, vocab),
	}
	return m
}

func fillRand(rng *rand.Rand, rows, cols int) [][]float32 {
	out := make([][]float32, rows)
	for i := range out {
		row := make([]float32, cols)
		for j := range row {
			row[j] = float32(rng.NormFloat64())
		}
		out[i] = row
	}
	return out
}

// Forward scores every position of the span for every row. Token ids outside
// the vocabulary (including pad fillers) are wrapped modulo the vocabulary;
// their logits are computed but carry no meaning, mirroring how a real model
// produces garbage at padded positions.
func (m *Model) Forward(tokens [][]int, startPos int) ([][][]float32, error) {
	if len(tokens) == 0 || len(tokens) > m.maxBatch {
		return nil, fmt.Errorf("toy: batch size %d out of range [1, %d]", len(tokens), m.maxBatch)
	}
	width := len(tokens[0])
	if startPos < 0 || startPos+width > m.maxSeq {
		return nil, fmt.Errorf("toy: span [%d, %d) exceeds max sequence length %d", startPos, startPos+width, m.maxSeq)
	}

	out := make([][][]float32, len(tokens))
	for i, row := range tokens {
		if len(row) != width {
			return nil, fmt.Errorf("toy: ragged batch: row %d has width %d, want %d", i, len(row), width)
		}
		out[i] = make([][]float32, width)
		for j, tok := range row {
			out[i][j] = m.score(tok)
		}
	}
	return out, nil
}

// score computes emb[tok] x w.
func (m *Model) score(tok int) []float32 {
	tok %= m.vocab
	if tok < 0 {
		tok += m.vocab
	}
	h := m.emb[tok]
	logits := make([]float32, m.vocab)
	for i, hv := range h {
		wr := m.w[i]
		for j := range logits {
			logits[j] += hv * wr[j]
		}
	}
	return logits
}

func (m *Model) MaxSeqLen() int    { return m.maxSeq }
func (m *Model) MaxBatchSize() int { return m.maxBatch }
func (m *Model) VocabSize() int    { return m.vocab }
