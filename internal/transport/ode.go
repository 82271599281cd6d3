package transport

import (
	"fmt"
	"math"

	"gorgonia.org/tensor"
)

// SolverMethod names an ODE integrator.
type SolverMethod string

const (
	SolverEuler    SolverMethod = "euler"
	SolverMidpoint SolverMethod = "midpoint"
	SolverRK4      SolverMethod = "rk4"
	SolverDopri5   SolverMethod = "dopri5"
)

// ParseSolverMethod validates an ODE solver name.
func ParseSolverMethod(s string) (SolverMethod, error) {
	switch SolverMethod(s) {
	case SolverEuler, SolverMidpoint, SolverRK4, SolverDopri5:
		return SolverMethod(s), nil
	case "":
		return SolverEuler, nil
	}
	return "", fmt.Errorf("unknown solver: %q", s)
}

// ODEOptions selects the deterministic integrator and its tuning.
type ODEOptions struct {
	Method    SolverMethod
	Steps     int
	ATol      float64
	RTol      float64
	Reverse   bool
	TimeShift float64
}

// SampleFn integrates a latent from noise to data under the given field.
// It returns the final state and the number of accepted solver steps.
// progress may be nil; for adaptive solvers it is called with total=0.
type SampleFn func(x *tensor.Dense, field VectorField, progress func(step, total int)) (*tensor.Dense, int, error)

// Sampler builds sampling functions from a configured transport.
type Sampler struct {
	tr *Transport
}

func NewSampler(tr *Transport) *Sampler { return &Sampler{tr: tr} }

// SampleODE returns a sampling function for the configured ODE solver.
func (s *Sampler) SampleODE(opts ODEOptions) (SampleFn, error) {
	method, err := ParseSolverMethod(string(opts.Method))
	if err != nil {
		return nil, err
	}
	if opts.Steps < 1 || opts.Steps > 1000 {
		return nil, fmt.Errorf("num sampling steps out of range: %d", opts.Steps)
	}
	atol, rtol := opts.ATol, opts.RTol
	if atol <= 0 {
		atol = 1e-6
	}
	if rtol <= 0 {
		rtol = 1e-3
	}
	tr := s.tr
	t0, t1 := tr.interval(false, 0)
	grid := timeGrid(t0, t1, opts.Steps, opts.TimeShift, opts.Reverse)

	if method == SolverDopri5 {
		return func(x *tensor.Dense, field VectorField, progress func(step, total int)) (*tensor.Dense, int, error) {
			return dopri5(tr, x, field, grid[0], grid[len(grid)-1], opts.Steps, atol, rtol, progress)
		}, nil
	}

	return func(x *tensor.Dense, field VectorField, progress func(step, total int)) (*tensor.Dense, int, error) {
		state := append([]float32(nil), backingOf(x)...)
		cur := denseLike(x, state)
		total := len(grid) - 1
		for i := 0; i < total; i++ {
			t, dt := grid[i], grid[i+1]-grid[i]
			var err error
			switch method {
			case SolverMidpoint:
				err = stepMidpoint(tr, cur, state, field, t, dt)
			case SolverRK4:
				err = stepRK4(tr, cur, state, field, t, dt)
			default:
				err = stepEuler(tr, cur, state, field, t, dt)
			}
			if err != nil {
				return nil, i, err
			}
			if progress != nil {
				progress(i+1, total)
			}
		}
		return cur, total, nil
	}, nil
}

// evalVelocity runs the model field and converts its output to velocity.
func evalVelocity(tr *Transport, x *tensor.Dense, field VectorField, t float64) ([]float32, error) {
	out, err := field(x, t)
	if err != nil {
		return nil, err
	}
	ob := backingOf(out)
	xb := backingOf(x)
	if len(ob) != len(xb) {
		return nil, fmt.Errorf("field output length %d != state length %d", len(ob), len(xb))
	}
	v := make([]float32, len(xb))
	tr.velocity(xb, ob, t, v)
	return v, nil
}

func stepEuler(tr *Transport, x *tensor.Dense, state []float32, field VectorField, t, dt float64) error {
	v, err := evalVelocity(tr, x, field, t)
	if err != nil {
		return err
	}
	h := float32(dt)
	for i := range state {
		state[i] += h * v[i]
	}
	return nil
}

func stepMidpoint(tr *Transport, x *tensor.Dense, state []float32, field VectorField, t, dt float64) error {
	k1, err := evalVelocity(tr, x, field, t)
	if err != nil {
		return err
	}
	mid := make([]float32, len(state))
	h2 := float32(dt / 2)
	for i := range mid {
		mid[i] = state[i] + h2*k1[i]
	}
	k2, err := evalVelocity(tr, denseLike(x, mid), field, t+dt/2)
	if err != nil {
		return err
	}
	h := float32(dt)
	for i := range state {
		state[i] += h * k2[i]
	}
	return nil
}

func stepRK4(tr *Transport, x *tensor.Dense, state []float32, field VectorField, t, dt float64) error {
	n := len(state)
	stage := func(k []float32, frac float64) *tensor.Dense {
		y := make([]float32, n)
		h := float32(dt * frac)
		for i := range y {
			y[i] = state[i] + h*k[i]
		}
		return denseLike(x, y)
	}
	k1, err := evalVelocity(tr, x, field, t)
	if err != nil {
		return err
	}
	k2, err := evalVelocity(tr, stage(k1, 0.5), field, t+dt/2)
	if err != nil {
		return err
	}
	k3, err := evalVelocity(tr, stage(k2, 0.5), field, t+dt/2)
	if err != nil {
		return err
	}
	k4, err := evalVelocity(tr, stage(k3, 1), field, t+dt)
	if err != nil {
		return err
	}
	h := float32(dt / 6)
	for i := range state {
		state[i] += h * (k1[i] + 2*k2[i] + 2*k3[i] + k4[i])
	}
	return nil
}

// Dormand-Prince 5(4) coefficients.
var (
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	dpC  = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpB5 = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0}
	dpB4 = [7]float64{5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640, -92097.0 / 339200, 187.0 / 2100, 1.0 / 40}
)

const dopri5MaxSteps = 100000

// dopri5 integrates with adaptive step size control. nominalSteps seeds the
// initial step; atol/rtol bound the local error estimate.
func dopri5(tr *Transport, x *tensor.Dense, field VectorField, t0, t1 float64, nominalSteps int, atol, rtol float64, progress func(step, total int)) (*tensor.Dense, int, error) {
	n := len(backingOf(x))
	state := append([]float32(nil), backingOf(x)...)
	cur := denseLike(x, state)

	dir := 1.0
	if t1 < t0 {
		dir = -1.0
	}
	h := dir * math.Abs(t1-t0) / float64(nominalSteps)
	t := t0
	accepted := 0

	var k [7][]float32
	// FSAL: k[0] of the next step reuses k[6] of the accepted one.
	k1, err := evalVelocity(tr, cur, field, t)
	if err != nil {
		return nil, 0, err
	}
	k[0] = k1

	for attempts := 0; dir*(t1-t) > 1e-12; attempts++ {
		if attempts > dopri5MaxSteps {
			return nil, accepted, fmt.Errorf("dopri5: step limit exceeded at t=%g", t)
		}
		if dir*(t+h) > dir*t1 {
			h = t1 - t
		}
		for s := 1; s < 7; s++ {
			y := make([]float32, n)
			for i := 0; i < n; i++ {
				acc := float64(state[i])
				for j := 0; j < s; j++ {
					acc += h * dpA[s][j] * float64(k[j][i])
				}
				y[i] = float32(acc)
			}
			ks, err := evalVelocity(tr, denseLike(x, y), field, t+dpC[s]*h)
			if err != nil {
				return nil, accepted, err
			}
			k[s] = ks
		}
		// 5th order solution and embedded error estimate.
		ynew := make([]float32, n)
		errNorm := 0.0
		for i := 0; i < n; i++ {
			y5 := float64(state[i])
			y4 := float64(state[i])
			for s := 0; s < 7; s++ {
				y5 += h * dpB5[s] * float64(k[s][i])
				y4 += h * dpB4[s] * float64(k[s][i])
			}
			ynew[i] = float32(y5)
			sc := atol + rtol*math.Max(math.Abs(float64(state[i])), math.Abs(y5))
			e := (y5 - y4) / sc
			errNorm += e * e
		}
		errNorm = math.Sqrt(errNorm / float64(n))

		if errNorm <= 1 {
			t += h
			copy(state, ynew)
			k[0] = k[6]
			accepted++
			if progress != nil {
				progress(accepted, 0)
			}
		}
		// Step size update with the usual safety clamps.
		factor := 0.9
		if errNorm > 0 {
			factor = 0.9 * math.Pow(errNorm, -0.2)
		} else {
			factor = 5
		}
		factor = math.Min(5, math.Max(0.2, factor))
		h *= factor
	}
	return cur, accepted, nil
}
