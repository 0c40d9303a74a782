package inference

// trimRow extracts one row's output: the generated span (or the whole row
// when echoing), clipped to the row's own generation budget and truncated at
// the first stop token. The logprob slice, when present, is cut identically.
func (s *batchState) trimRow(row int, maxGenLen int, echo bool) ([]int, []float64) {
	start := s.promptLens[row]
	if echo {
		start = 0
	}
	end := s.promptLens[row] + maxGenLen
	if end > s.totalLen {
		end = s.totalLen
	}

	toks := append([]int(nil), s.tokens[row][start:end]...)
	var lps []float64
	if s.logprobs != nil {
		lps = append([]float64(nil), s.logprobs[row][start:end]...)
	}

	if idx := firstStopIndex(toks, s.stopSet); idx >= 0 {
		toks = toks[:idx]
		if lps != nil {
			lps = lps[:idx]
		}
	}
	return toks, lps
}

// firstStopIndex returns the index of the first stop token in toks, or -1
// when none occurs.
func firstStopIndex(toks []int, stopSet map[int]struct{}) int {
	for i, id := range toks {
		if _, ok := stopSet[id]; ok {
			return i
		}
	}
	return -1
}
