package diffusion

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Conditioning carries everything the denoiser needs beyond the latent:
// the padded caption/null token batch with its mask, the encoded caption
// features, the guidance scale, and the resolution-extrapolation knobs.
type Conditioning struct {
	// Tokens holds two right-padded rows: the caption and the null caption.
	Tokens [][]int
	// Mask flags the real (non-padding) positions of each row.
	Mask [][]bool
	// Features is the text-encoder output, shape [2, seqlen, dim].
	Features *tensor.Dense
	// CFGScale is the classifier-free guidance strength.
	CFGScale float64
	// ProportionalAttn enables attention rescaling for extrapolated
	// resolutions; BaseSeqLen is the training sequence length it refers to.
	ProportionalAttn bool
	BaseSeqLen       int
	// NTKFactor rescales rotary frequencies; 1 means no extrapolation.
	NTKFactor float64
}

// CondParams are the per-request inputs to conditioning construction.
type CondParams struct {
	Caption   string
	CFGScale  float64
	Width     int // output width in pixels
	Height    int // output height in pixels
	ImageSize int // base training resolution in pixels

	NTKScaling       bool
	ProportionalAttn bool
}

// BuildConditioning tokenizes the caption and the empty null caption,
// right-pads both to a common length with a boolean mask, encodes the batch,
// and derives the resolution-dependent scaling factors.
func BuildConditioning(tok Tokenizer, enc TextEncoder, p CondParams) (*Conditioning, error) {
	capTok, err := tok.Encode(p.Caption)
	if err != nil {
		return nil, fmt.Errorf("tokenize caption: %w", err)
	}
	nullTok, err := tok.Encode("")
	if err != nil {
		return nil, fmt.Errorf("tokenize null caption: %w", err)
	}
	width := len(capTok)
	if len(nullTok) > width {
		width = len(nullTok)
	}
	if width == 0 {
		width = 1
	}
	tokens := [][]int{make([]int, width), make([]int, width)}
	mask := [][]bool{make([]bool, width), make([]bool, width)}
	copy(tokens[0], capTok)
	copy(tokens[1], nullTok)
	for i := range capTok {
		mask[0][i] = true
	}
	for i := range nullTok {
		mask[1][i] = true
	}

	feats, err := enc.Encode(tokens, mask)
	if err != nil {
		return nil, fmt.Errorf("encode caption: %w", err)
	}

	c := &Conditioning{
		Tokens:    tokens,
		Mask:      mask,
		Features:  feats,
		CFGScale:  p.CFGScale,
		NTKFactor: 1,
	}
	base := p.ImageSize / 16
	if p.ProportionalAttn {
		c.ProportionalAttn = true
		c.BaseSeqLen = base*base + 2*base
	}
	if p.NTKScaling && base > 0 {
		c.NTKFactor = float64((p.Width/16)*(p.Height/16)) / float64(base*base)
	}
	return c, nil
}
