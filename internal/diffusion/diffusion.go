// Package diffusion defines the narrow interfaces through which the sampling
// loop consumes the pretrained model stack: the denoiser network, the caption
// text encoder, and the VAE latent decoder. Their internals are external to
// this daemon; a deterministic reference backend (sim.go) implements all
// three so the daemon and its tests run without accelerator hardware.
package diffusion

import (
	"image"

	"gorgonia.org/tensor"
)

// LatentChannels is the channel count of the VAE latent space.
const LatentChannels = 4

// LatentDownsample is the pixel-to-latent spatial reduction of the VAE.
const LatentDownsample = 8

// Denoiser evaluates the velocity field of the flow model on a CFG-doubled
// latent batch of shape [2, 4, h, w]. Row 0 of the conditioning is the
// caption branch, row 1 the null branch.
type Denoiser interface {
	Velocity(x *tensor.Dense, t float64, c *Conditioning) (*tensor.Dense, error)
}

// TextEncoder produces caption features for a padded token batch. The
// returned tensor has shape [rows, seqlen, dim].
type TextEncoder interface {
	Encode(tokens [][]int, mask [][]bool) (*tensor.Dense, error)
}

// Decoder maps a single latent [1, 4, h, w] to pixels, applying the VAE
// scale factor internally.
type Decoder interface {
	Decode(latent *tensor.Dense) (image.Image, error)
}

// Backend bundles the three collaborators a worker owns.
type Backend struct {
	Denoiser    Denoiser
	TextEncoder TextEncoder
	Decoder     Decoder
}

// VAEScaleFactor returns the latent scaling constant for a VAE variant
// ("ema"/"mse" use the SD value, "sdxl" its own).
func VAEScaleFactor(vae string) float64 {
	if vae == "sdxl" {
		return 0.13025
	}
	return 0.18215
}
