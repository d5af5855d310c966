package providers

import "fmt"

// DecodingMethod selects the provider's decoding strategy.
type DecodingMethod string

const (
	DecodingGreedy DecodingMethod = "greedy"
	DecodingSample DecodingMethod = "sample"
)

// Parameters are the generation settings forwarded to a backend. Sampling
// knobs are ignored under greedy decoding.
type Parameters struct {
	DecodingMethod    DecodingMethod `json:"decoding_method" mapstructure:"decoding_method" yaml:"decoding_method"`
	MaxNewTokens      int            `json:"max_new_tokens" mapstructure:"max_new_tokens" yaml:"max_new_tokens"`
	Temperature       float64        `json:"temperature,omitempty" mapstructure:"temperature" yaml:"temperature"`
	TopP              float64        `json:"top_p,omitempty" mapstructure:"top_p" yaml:"top_p"`
	TopK              int            `json:"top_k,omitempty" mapstructure:"top_k" yaml:"top_k"`
	RepetitionPenalty float64        `json:"repetition_penalty,omitempty" mapstructure:"repetition_penalty" yaml:"repetition_penalty"`
	StopSequences     []string       `json:"stop_sequences,omitempty" mapstructure:"stop_sequences" yaml:"stop_sequences,omitempty"`
	Seed              int64          `json:"seed,omitempty" mapstructure:"seed" yaml:"seed"`
}

// DefaultParameters returns the settings used when configuration does not
// override them: greedy decoding with room for a full structured record.
func DefaultParameters() Parameters {
	return Parameters{
		DecodingMethod: DecodingGreedy,
		MaxNewTokens:   1024,
	}
}

// Validate checks parameter ranges before any provider call.
func (p Parameters) Validate() error {
	switch p.DecodingMethod {
	case DecodingGreedy, DecodingSample:
	default:
		return fmt.Errorf("unknown decoding method %q (want greedy or sample)", p.DecodingMethod)
	}
	if p.MaxNewTokens <= 0 {
		return fmt.Errorf("max_new_tokens must be positive, got %d", p.MaxNewTokens)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %g", p.Temperature)
	}
	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("top_p must be in [0, 1], got %g", p.TopP)
	}
	return nil
}

// Sampling reports whether sampling knobs apply.
func (p Parameters) Sampling() bool {
	return p.DecodingMethod == DecodingSample
}
