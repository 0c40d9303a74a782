package inference

import "time"

// GenerateOptions carries per-call sampling parameters. All knobs are
// pointers so callers can distinguish "not set" from zero values; unset
// fields fall back to the defaults below.
type GenerateOptions struct {
	// MaxGenLen caps the number of generated tokens per sequence.
	// Defaults to the model's max sequence length minus one; negative
	// values are rejected.
	MaxGenLen *int

	// Temperature controls sampling randomness; zero selects greedy
	// decoding. Defaults to 0.6.
	Temperature *float64

	// TopP is the nucleus sampling threshold. Defaults to 0.9.
	TopP *float64

	// Seed fixes the sampling RNG. Defaults to the current time.
	Seed *int64

	// Logprobs requests per-token log-probability bookkeeping.
	Logprobs bool

	// Echo includes the prompt tokens in the returned output.
	Echo bool

	// Progress renders a progress bar over decode positions.
	Progress bool
}

const (
	defaultTemperature = 0.6
	defaultTopP        = 0.9
)

type genParams struct {
	maxGenLen   int
	temperature float64
	topP        float64
	seed        int64
	logprobs    bool
	echo        bool
	progress    bool
}

func resolveOptions(opts GenerateOptions, maxSeqLen int) genParams {
	p := genParams{
		maxGenLen:   maxSeqLen - 1,
		temperature: defaultTemperature,
		topP:        defaultTopP,
		seed:        time.Now().UnixNano(),
		logprobs:    opts.Logprobs,
		echo:        opts.Echo,
		progress:    opts.Progress,
	}
	if opts.MaxGenLen != nil {
		p.maxGenLen = *opts.MaxGenLen
	}
	if opts.Temperature != nil {
		p.temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		p.topP = *opts.TopP
	}
	if opts.Seed != nil {
		p.seed = *opts.Seed
	}
	return p
}
