package inference

// batchState owns the per-call decoding buffers: the rectangular token grid,
// the prompt mask, the per-row stop flags and the optional logprob grid. All
// buffers live for exactly one Generate call.
type batchState struct {
	promptLens []int
	totalLen   int
	padID      int
	stopSet    map[int]struct{}

	// tokens is [batch][totalLen], padID everywhere except prompt
	// prefixes and columns already decoded.
	tokens [][]int

	// inputTextMask marks the cells that held prompt tokens at
	// construction time. It is computed once from the pad-filled grid and
	// never updated, so columns a generated token later fills stay false.
	inputTextMask [][]bool

	// eosReached goes from false to true once per row and never resets.
	eosReached []bool

	// logprobs is nil unless log-probability tracking was requested.
	logprobs [][]float64
}

func newBatchState(prompts [][]int, totalLen, padID int, stopTokens []int, wantLogprobs bool) *batchState {
	bsz := len(prompts)
	s := &batchState{
		promptLens:    make([]int, bsz),
		totalLen:      totalLen,
		padID:         padID,
		stopSet:       make(map[int]struct{}, len(stopTokens)),
		tokens:        make([][]int, bsz),
		inputTextMask: make([][]bool, bsz),
		eosReached:    make([]bool, bsz),
	}
	for _, id := range stopTokens {
		s.stopSet[id] = struct{}{}
	}
	for i, p := range prompts {
		s.promptLens[i] = len(p)
		row := make([]int, totalLen)
		for j := range row {
			row[j] = padID
		}
		copy(row, p)
		s.tokens[i] = row

		mask := make([]bool, totalLen)
		for j, id := range row {
			mask[j] = id != padID
		}
		s.inputTextMask[i] = mask
	}
	if wantLogprobs {
		s.logprobs = make([][]float64, bsz)
		for i := range s.logprobs {
			s.logprobs[i] = make([]float64, totalLen)
		}
	}
	return s
}

// minPromptLen returns the shortest prompt length in the batch.
func (s *batchState) minPromptLen() int {
	min := s.promptLens[0]
	for _, n := range s.promptLens[1:] {
		if n < min {
			min = n
		}
	}
	return min
}

// span returns per-row views of the token grid over [from, to). The views
// alias the underlying grid; the model must not mutate them.
func (s *batchState) span(from, to int) [][]int {
	out := make([][]int, len(s.tokens))
	for i, row := range s.tokens {
		out[i] = row[from:to]
	}
	return out
}

// applyNext writes one column of the grid: rows whose mask marks col as
// prompt keep their original token (prompt replay takes precedence over
// whatever the model proposed), everything else takes the candidate. The
// values actually written are returned for stop-mask bookkeeping.
func (s *batchState) applyNext(col int, candidates []int) []int {
	written := make([]int, len(s.tokens))
	for i, row := range s.tokens {
		if s.inputTextMask[i][col] {
			written[i] = row[col]
			continue
		}
		row[col] = candidates[i]
		written[i] = candidates[i]
	}
	return written
}

// updateStopMask marks rows stopped when the token written at col was
// genuinely generated (not prompt replay) and belongs to the stop set.
func (s *batchState) updateStopMask(col int, written []int) {
	for i := range s.eosReached {
		if s.eosReached[i] || s.inputTextMask[i][col] {
			continue
		}
		if _, ok := s.stopSet[written[i]]; ok {
			s.eosReached[i] = true
		}
	}
}

// allStopped reports whether every row has hit a stop token. It only gates
// early loop exit; per-row trimming is independent of it.
func (s *batchState) allStopped() bool {
	for _, stopped := range s.eosReached {
		if !stopped {
			return false
		}
	}
	return true
}
