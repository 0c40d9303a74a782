package tokenizer

// Tokenizer is the encoding collaborator consumed by the inference engine.
// Implementations own vocabulary, byte-pair encoding and special token
// handling; the engine only moves token ids around.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)

	// PadID is the filler id for unused batch cells. It must not collide
	// with any id Encode can produce.
	PadID() int

	// StopTokens returns the ids whose generation ends a sequence.
	StopTokens() []int
}

// Sized is implemented by tokenizers that know their vocabulary size. When
// available, the engine verifies it against the model's vocabulary and
// rejects mismatched pairs before generating.
type Sized interface {
	VocabSize() int
}
