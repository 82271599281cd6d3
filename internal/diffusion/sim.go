package diffusion

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"

	"gorgonia.org/tensor"
)

// NewSimBackend builds the deterministic reference backend. It plays the
// role the real DiT/LLM/VAE stack plays in production: the denoiser is an
// analytic velocity field whose fixed point is a smooth pattern derived
// from the conditioning, so sampled images are reproducible for a seed and
// solver trajectories actually converge.
func NewSimBackend(vae string) *Backend {
	return &Backend{
		Denoiser:    simDenoiser{},
		TextEncoder: simTextEncoder{dim: 16},
		Decoder:     simDecoder{factor: VAEScaleFactor(vae)},
	}
}

// tokenSeed folds a token row into a stable 64-bit pattern seed.
func tokenSeed(tokens []int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, tok := range tokens {
		v := uint64(tok)
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	return h.Sum64()
}

type simDenoiser struct{}

// target evaluates the attractor latent for one conditioning row.
func (simDenoiser) target(seed uint64, feat float64, ntk float64, ch, i, j, h, w int) float32 {
	fx := (1 + float64(seed%7)) * math.Pi / float64(h) / ntk
	fy := (1 + float64((seed>>8)%5)) * math.Pi / float64(w) / ntk
	phase := float64(seed%360) / 180 * math.Pi
	amp := 0.6 + 0.4*math.Tanh(feat)
	return float32(amp * math.Sin(fx*float64(i+1)+phase+float64(ch)) * math.Cos(fy*float64(j+1)))
}

func (d simDenoiser) Velocity(x *tensor.Dense, t float64, c *Conditioning) (*tensor.Dense, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[0] != 2 || shape[1] != LatentChannels {
		return nil, fmt.Errorf("sim denoiser: unexpected latent shape %v", shape)
	}
	h, w := shape[2], shape[3]
	xb := x.Data().([]float32)
	out := make([]float32, len(xb))
	// Pulling toward the target along the remaining time makes the linear
	// interpolation path exact; the clamp keeps the field finite at t=1.
	remain := 1 - t
	if remain < 1e-3 {
		remain = 1e-3
	}
	inv := float32(1 / remain)
	half := len(xb) / 2
	for row := 0; row < 2; row++ {
		seed := tokenSeed(c.Tokens[row])
		feat := featureMean(c.Features, row)
		for ch := 0; ch < LatentChannels; ch++ {
			for i := 0; i < h; i++ {
				for j := 0; j < w; j++ {
					idx := row*half + ch*h*w + i*w + j
					tgt := d.target(seed, feat, c.NTKFactor, ch, i, j, h, w)
					out[idx] = (tgt - xb[idx]) * inv
				}
			}
		}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(out)), nil
}

// featureMean averages one row of the encoded caption features.
func featureMean(feats *tensor.Dense, row int) float64 {
	if feats == nil {
		return 0
	}
	shape := feats.Shape()
	if len(shape) != 3 || row >= shape[0] {
		return 0
	}
	b := feats.Data().([]float32)
	rowLen := shape[1] * shape[2]
	sum := 0.0
	for i := 0; i < rowLen; i++ {
		sum += float64(b[row*rowLen+i])
	}
	return sum / float64(rowLen)
}

type simTextEncoder struct {
	dim int
}

func (e simTextEncoder) Encode(tokens [][]int, mask [][]bool) (*tensor.Dense, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("sim encoder: empty token batch")
	}
	rows, seqlen := len(tokens), len(tokens[0])
	b := make([]float32, rows*seqlen*e.dim)
	for r := 0; r < rows; r++ {
		for l := 0; l < seqlen; l++ {
			if !mask[r][l] {
				continue
			}
			tok := float64(tokens[r][l])
			for d := 0; d < e.dim; d++ {
				b[(r*seqlen+l)*e.dim+d] = float32(math.Sin(tok * 0.01 * float64(d+1)))
			}
		}
	}
	return tensor.New(tensor.WithShape(rows, seqlen, e.dim), tensor.WithBacking(b)), nil
}

type simDecoder struct {
	factor float64
}

// Decode maps a [1,4,h,w] latent to an RGB image: the latent is unscaled by
// the VAE factor, upsampled by the VAE stride, shifted from [-1,1] to [0,1]
// and clamped, mirroring the pixel post-processing of the real decode path.
func (d simDecoder) Decode(latent *tensor.Dense) (image.Image, error) {
	shape := latent.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != LatentChannels {
		return nil, fmt.Errorf("sim decoder: unexpected latent shape %v", shape)
	}
	lh, lw := shape[2], shape[3]
	b := latent.Data().([]float32)
	plane := lh * lw
	at := func(ch, i, j int) float64 {
		return float64(b[ch*plane+i*lw+j]) / d.factor
	}
	px := func(v float64) uint8 {
		v = (v + 1) / 2
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint8(math.Round(v * 255))
	}
	img := image.NewRGBA(image.Rect(0, 0, lw*LatentDownsample, lh*LatentDownsample))
	for i := 0; i < lh; i++ {
		for j := 0; j < lw; j++ {
			lum := at(3, i, j) * 0.25
			c := color.RGBA{
				R: px(at(0, i, j) + lum),
				G: px(at(1, i, j) + lum),
				B: px(at(2, i, j) + lum),
				A: 255,
			}
			for di := 0; di < LatentDownsample; di++ {
				for dj := 0; dj < LatentDownsample; dj++ {
					img.SetRGBA(j*LatentDownsample+dj, i*LatentDownsample+di, c)
				}
			}
		}
	}
	return img, nil
}
