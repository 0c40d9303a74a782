package model

// Model represents a causal language model capable of batched incremental
// inference. Forward receives only the newly added token span for every row
// of the batch, together with the absolute position of the first column of
// that span, and returns logits of shape [batch][span][vocab].
//
// Implementations must support resuming from startPos using only the given
// span; any cache needed to remember earlier positions is the
// implementation's concern. Within one generation call the engine guarantees
// strictly increasing, non-overlapping spans and never issues concurrent
// Forward calls against the same instance.
type Model interface {
	Forward(tokens [][]int, startPos int) ([][][]float32, error)

	MaxSeqLen() int
	MaxBatchSize() int
	VocabSize() int
}

// Resettable is implemented by models that carry incremental state across
// Forward calls. The inference engine resets such models at the start of
// every generation call so cache state never leaks between calls.
type Resettable interface {
	Reset()
}
