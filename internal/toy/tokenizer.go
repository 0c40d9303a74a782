package toy

// Tokenizer is a byte-level tokenizer: every input byte maps to its own id,
// shifted past the reserved specials. It pairs with Model for end-to-end
// runs without any external vocabulary.
type Tokenizer struct{}

const (
	padID      = 0
	bosID      = 1
	eotID      = 2
	numSpecial = 3
)

// VocabSize covers all byte values plus the reserved specials. A matching
// Model should be built with at least this vocabulary.
const VocabSize = 256 + numSpecial

func (Tokenizer) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text)+1)
	ids = append(ids, bosID)
	for i := 0; i < len(text); i++ {
		ids = append(ids, int(text[i])+numSpecial)
	}
	return ids, nil
}

func (Tokenizer) Decode(ids []int) (string, error) {
	b := make([]byte, 0, len(ids))
	for _, id := range ids {
		if id < numSpecial || id >= VocabSize {
			continue
		}
		b = append(b, byte(id-numSpecial))
	}
	return string(b), nil
}

func (Tokenizer) PadID() int        { return padID }
func (Tokenizer) StopTokens() []int { return []int{eotID} }
func (Tokenizer) VocabSize() int    { return VocabSize }
