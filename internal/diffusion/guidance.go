package diffusion

import (
	"fmt"

	"gorgonia.org/tensor"

	"luminad/internal/transport"
)

// CFGField wraps a denoiser into a classifier-free-guided vector field over
// a doubled latent batch: the conditional and unconditional halves are
// combined as v_u + scale*(v_c - v_u) and the combined velocity is written
// back into both halves, so the batch stays coherent through the solver.
func CFGField(d Denoiser, c *Conditioning) transport.VectorField {
	return func(x *tensor.Dense, t float64) (*tensor.Dense, error) {
		out, err := d.Velocity(x, t, c)
		if err != nil {
			return nil, err
		}
		b := out.Data().([]float32)
		if len(b)%2 != 0 {
			return nil, fmt.Errorf("cfg field: odd batch length %d", len(b))
		}
		half := len(b) / 2
		scale := float32(c.CFGScale)
		for i := 0; i < half; i++ {
			vc, vu := b[i], b[half+i]
			combined := vu + scale*(vc-vu)
			b[i] = combined
			b[half+i] = combined
		}
		return out, nil
	}
}
