package transport

import (
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/tensor"
)

// SDEMethod names a stochastic integrator.
type SDEMethod string

const (
	SDEEuler SDEMethod = "Euler"
	SDEHeun  SDEMethod = "Heun"
)

// ParseSDEMethod validates an SDE sampling method name.
func ParseSDEMethod(s string) (SDEMethod, error) {
	switch SDEMethod(s) {
	case SDEEuler, SDEHeun:
		return SDEMethod(s), nil
	case "":
		return SDEEuler, nil
	}
	return "", fmt.Errorf("unknown SDE sampling method: %q", s)
}

// DiffusionForm shapes the diffusion coefficient w(t) of the sampling SDE.
type DiffusionForm string

const (
	DiffConstant      DiffusionForm = "constant"
	DiffSBDM          DiffusionForm = "SBDM"
	DiffSigma         DiffusionForm = "sigma"
	DiffLinear        DiffusionForm = "linear"
	DiffDecreasing    DiffusionForm = "decreasing"
	DiffIncDecreasing DiffusionForm = "increasing-decreasing"
)

// ParseDiffusionForm validates a diffusion form name.
func ParseDiffusionForm(s string) (DiffusionForm, error) {
	switch DiffusionForm(s) {
	case DiffConstant, DiffSBDM, DiffSigma, DiffLinear, DiffDecreasing, DiffIncDecreasing:
		return DiffusionForm(s), nil
	case "":
		return DiffSigma, nil
	}
	return "", fmt.Errorf("unknown diffusion form: %q", s)
}

// LastStep selects how the final interval [1-lastStepSize, 1] is closed.
type LastStep string

const (
	LastNone    LastStep = ""
	LastMean    LastStep = "Mean"
	LastTweedie LastStep = "Tweedie"
	LastEuler   LastStep = "Euler"
)

// ParseLastStep validates a last-step form. "None" and the empty string both
// mean no dedicated last step.
func ParseLastStep(s string) (LastStep, error) {
	switch s {
	case "", "None":
		return LastNone, nil
	case string(LastMean), string(LastTweedie), string(LastEuler):
		return LastStep(s), nil
	}
	return "", fmt.Errorf("unknown last step form: %q", s)
}

// SDEOptions mirrors the SDE flag group plus the shared grid parameters.
type SDEOptions struct {
	Method        SDEMethod
	Steps         int
	DiffusionForm DiffusionForm
	DiffusionNorm float64
	LastStep      LastStep
	LastStepSize  float64
	TimeShift     float64
	RNG           *rand.Rand
}

// SampleSDE returns a sampling function for the configured stochastic solver.
func (s *Sampler) SampleSDE(opts SDEOptions) (SampleFn, error) {
	method, err := ParseSDEMethod(string(opts.Method))
	if err != nil {
		return nil, err
	}
	form, err := ParseDiffusionForm(string(opts.DiffusionForm))
	if err != nil {
		return nil, err
	}
	last, err := ParseLastStep(string(opts.LastStep))
	if err != nil {
		return nil, err
	}
	if form == DiffSBDM && s.tr.pathType != PathVP {
		return nil, fmt.Errorf("diffusion form SBDM requires the VP path, got %s", s.tr.pathType)
	}
	if opts.Steps < 1 || opts.Steps > 1000 {
		return nil, fmt.Errorf("num sampling steps out of range: %d", opts.Steps)
	}
	norm := opts.DiffusionNorm
	if norm <= 0 {
		norm = 1
	}
	lastSize := opts.LastStepSize
	if lastSize <= 0 {
		lastSize = 0.04
	}
	if opts.RNG == nil {
		return nil, fmt.Errorf("sde sampling requires a seeded RNG")
	}
	tr := s.tr
	t0, t1 := tr.interval(true, lastSize)
	grid := timeGrid(t0, t1, opts.Steps, opts.TimeShift, false)

	return func(x *tensor.Dense, field VectorField, progress func(step, total int)) (*tensor.Dense, int, error) {
		state := append([]float32(nil), backingOf(x)...)
		cur := denseLike(x, state)
		total := len(grid) - 1
		for i := 0; i < total; i++ {
			t, dt := grid[i], grid[i+1]-grid[i]
			var err error
			switch method {
			case SDEHeun:
				err = stepHeun(tr, cur, state, field, t, dt, form, norm, opts.RNG)
			default:
				err = stepEulerMaruyama(tr, cur, state, field, t, dt, form, norm, opts.RNG)
			}
			if err != nil {
				return nil, i, err
			}
			if progress != nil {
				progress(i+1, total+1)
			}
		}
		if err := applyLastStep(tr, cur, state, field, grid[total], lastSize, last, form, norm); err != nil {
			return nil, total, err
		}
		if progress != nil {
			progress(total+1, total+1)
		}
		return cur, total + 1, nil
	}, nil
}

// diffusion evaluates w(t) for the configured form.
func (tr *Transport) diffusion(form DiffusionForm, norm, t float64) float64 {
	switch form {
	case DiffConstant:
		return norm
	case DiffSBDM:
		vp := tr.plan.(vpPlan)
		return norm * vp.Diffusion(t)
	case DiffLinear:
		return norm * (1 - t)
	case DiffDecreasing:
		c := norm*math.Cos(math.Pi*t) + 1
		return 0.25 * c * c
	case DiffIncDecreasing:
		s := math.Sin(math.Pi * t)
		return norm * s * s
	default: // sigma
		sig, _ := tr.plan.Sigma(t)
		return norm * sig
	}
}

// sdeDrift evaluates v(x,t) + w(t)*score(x,t) from one model call.
func sdeDrift(tr *Transport, x *tensor.Dense, field VectorField, t, w float64) ([]float32, error) {
	out, err := field(x, t)
	if err != nil {
		return nil, err
	}
	xb := backingOf(x)
	ob := backingOf(out)
	if len(ob) != len(xb) {
		return nil, fmt.Errorf("field output length %d != state length %d", len(ob), len(xb))
	}
	v := make([]float32, len(xb))
	sc := make([]float32, len(xb))
	tr.velocity(xb, ob, t, v)
	tr.score(xb, ob, t, sc)
	wf := float32(w)
	for i := range v {
		v[i] += wf * sc[i]
	}
	return v, nil
}

func stepEulerMaruyama(tr *Transport, x *tensor.Dense, state []float32, field VectorField, t, dt float64, form DiffusionForm, norm float64, rng *rand.Rand) error {
	w := tr.diffusion(form, norm, t)
	drift, err := sdeDrift(tr, x, field, t, w)
	if err != nil {
		return err
	}
	h := float32(dt)
	noiseScale := float32(math.Sqrt(2 * w * dt))
	for i := range state {
		state[i] += h*drift[i] + noiseScale*float32(rng.NormFloat64())
	}
	return nil
}

func stepHeun(tr *Transport, x *tensor.Dense, state []float32, field VectorField, t, dt float64, form DiffusionForm, norm float64, rng *rand.Rand) error {
	w := tr.diffusion(form, norm, t)
	noiseScale := float32(math.Sqrt(2 * w * dt))
	// Noise is injected up front; the two drift evaluations are averaged.
	xhat := make([]float32, len(state))
	for i := range xhat {
		xhat[i] = state[i] + noiseScale*float32(rng.NormFloat64())
	}
	k1, err := sdeDrift(tr, denseLike(x, xhat), field, t, w)
	if err != nil {
		return err
	}
	xp := make([]float32, len(state))
	h := float32(dt)
	for i := range xp {
		xp[i] = xhat[i] + h*k1[i]
	}
	w2 := tr.diffusion(form, norm, t+dt)
	k2, err := sdeDrift(tr, denseLike(x, xp), field, t+dt, w2)
	if err != nil {
		return err
	}
	h2 := float32(dt / 2)
	for i := range state {
		state[i] = xhat[i] + h2*(k1[i]+k2[i])
	}
	return nil
}

// applyLastStep closes the trajectory over the final lastStepSize interval.
func applyLastStep(tr *Transport, x *tensor.Dense, state []float32, field VectorField, t, h float64, last LastStep, form DiffusionForm, norm float64) error {
	switch last {
	case LastNone:
		return nil
	case LastMean:
		w := tr.diffusion(form, norm, t)
		drift, err := sdeDrift(tr, x, field, t, w)
		if err != nil {
			return err
		}
		hf := float32(h)
		for i := range state {
			state[i] += hf * drift[i]
		}
		return nil
	case LastEuler:
		v, err := evalVelocity(tr, x, field, t)
		if err != nil {
			return err
		}
		hf := float32(h)
		for i := range state {
			state[i] += hf * v[i]
		}
		return nil
	case LastTweedie:
		out, err := field(x, t)
		if err != nil {
			return err
		}
		sc := make([]float32, len(state))
		tr.score(state, backingOf(out), t, sc)
		a, _ := tr.plan.Alpha(t)
		sig, _ := tr.plan.Sigma(t)
		ca := float32(1 / a)
		cs := float32(sig * sig / a)
		for i := range state {
			state[i] = ca*state[i] + cs*sc[i]
		}
		return nil
	}
	return fmt.Errorf("unknown last step form: %q", last)
}
