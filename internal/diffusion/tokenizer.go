package diffusion

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer turns a caption into token ids for the text encoder.
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

// NewTikToken returns a BPE tokenizer backed by the named tiktoken encoding.
func NewTikToken(encoding string) (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return tikTokenizer{enc: enc}, nil
}

type tikTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t tikTokenizer) Encode(text string) ([]int, error) {
	return t.enc.Encode(text, nil, nil), nil
}
