package logits

import (
	"math"
	"math/rand"
	"sort"
)

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed        int64
	Temperature float64
	TopP        float64
}

// Sampler draws token ids from logits vectors using temperature-scaled
// nucleus (top-p) sampling. A Sampler with Temperature <= 0 is greedy and
// always returns the argmax. Sampler is not safe for concurrent use; the
// scratch buffers are reused between calls.
type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	idx    []int
	prob   []float64
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
	}
}

// Greedy reports whether the sampler always returns the argmax.
func (s *Sampler) Greedy() bool {
	return s.greedy
}

// Sample draws a single vocabulary index from the provided logits vector:
//
//  1. If Temperature <= 0 the argmax is returned (greedy decode).
//  2. Otherwise the logits are scaled by the inverse temperature and a
//     softmax is computed with max subtraction for numerical stability.
//  3. Probabilities are sorted descending and the nucleus is selected: an
//     entry is dropped when the cumulative mass before it already exceeds
//     TopP, so the kept set is the smallest prefix reaching TopP and the
//     entry crossing the threshold always survives.
//  4. One index is drawn from the renormalized nucleus and mapped back to
//     its original vocabulary position.
//
// The top entry can never be dropped: its cumulative-before mass is zero,
// which is <= TopP for any positive TopP, so the nucleus is never empty.
func (s *Sampler) Sample(logits []float32) int {
	if s.greedy {
		return Argmax(logits)
	}

	prob := s.softmax(logits)

	if cap(s.idx) < len(prob) {
		s.idx = make([]int, len(prob))
	}
	idx := s.idx[:len(prob)]
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return prob[idx[a]] > prob[idx[b]]
	})

	cut := len(idx)
	var kept float64
	for i, id := range idx {
		if kept > s.cfg.TopP {
			cut = i
			break
		}
		kept += prob[id]
	}
	if cut == 0 {
		cut = 1
	}

	var nucleus float64
	for _, id := range idx[:cut] {
		nucleus += prob[id]
	}

	r := s.rng.Float64() * nucleus
	var c float64
	for _, id := range idx[:cut] {
		c += prob[id]
		if r <= c {
			return id
		}
	}
	return idx[cut-1]
}

// softmax fills the scratch probability buffer with the temperature-scaled
// softmax of logits.
func (s *Sampler) softmax(logits []float32) []float64 {
	if cap(s.prob) < len(logits) {
		s.prob = make([]float64, len(logits))
	}
	prob := s.prob[:len(logits)]

	invTemp := 1.0 / s.cfg.Temperature
	maxv := math.Inf(-1)
	for _, l := range logits {
		v := float64(l) * invTemp
		if v > maxv {
			maxv = v
		}
	}

	var sum float64
	for i, l := range logits {
		e := math.Exp(float64(l)*invTemp - maxv)
		prob[i] = e
		sum += e
	}
	invSum := 1.0 / sum
	for i := range prob {
		prob[i] *= invSum
	}
	return prob
}

// Argmax returns the index of the maximum value in the slice. If the slice is
// empty it panics.
func Argmax(x []float32) int {
	if len(x) == 0 {
		panic("logits: argmax of empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// LogProb returns the log-probability that a softmax over logits assigns to
// the token at index id.
func LogProb(logits []float32, id int) float64 {
	maxv := float64(logits[0])
	for _, l := range logits[1:] {
		if float64(l) > maxv {
			maxv = float64(l)
		}
	}
	var sum float64
	for _, l := range logits {
		sum += math.Exp(float64(l) - maxv)
	}
	return float64(logits[id]) - maxv - math.Log(sum)
}
