// Package transport implements the flow-matching sampling contract: path
// schedules, model-prediction conversions, time grids, and the ODE/SDE
// integrators that drive the denoising trajectory.
package transport

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Prediction is the quantity the denoiser network was trained to output.
type Prediction string

const (
	PredVelocity Prediction = "velocity"
	PredScore    Prediction = "score"
	PredNoise    Prediction = "noise"
)

// ParsePrediction validates a prediction name.
func ParsePrediction(s string) (Prediction, error) {
	switch Prediction(s) {
	case PredVelocity, PredScore, PredNoise:
		return Prediction(s), nil
	case "":
		return PredVelocity, nil
	}
	return "", fmt.Errorf("unknown prediction type: %q", s)
}

// LossWeight is carried for CLI parity with training; inference only
// validates it.
type LossWeight string

const (
	WeightNone       LossWeight = ""
	WeightVelocity   LossWeight = "velocity"
	WeightLikelihood LossWeight = "likelihood"
)

// ParseLossWeight validates a loss weighting name. "None" and the empty
// string both mean unweighted.
func ParseLossWeight(s string) (LossWeight, error) {
	switch s {
	case "", "None":
		return WeightNone, nil
	case string(WeightVelocity), string(WeightLikelihood):
		return LossWeight(s), nil
	}
	return "", fmt.Errorf("unknown loss weight: %q", s)
}

// Config mirrors the transport flag group.
type Config struct {
	PathType   PathType
	Prediction Prediction
	LossWeight LossWeight
	TrainEps   float64
	SampleEps  float64
}

// VectorField evaluates the raw model output at state x and flow time t.
// The state carries the CFG-doubled batch; guidance combination happens
// inside the field.
type VectorField func(x *tensor.Dense, t float64) (*tensor.Dense, error)

// Transport converts between the model's prediction type and the velocity
// and score fields the integrators consume.
type Transport struct {
	pathType   PathType
	prediction Prediction
	lossWeight LossWeight
	sampleEps  float64
	plan       plan
}

// New builds a Transport, applying the schedule-dependent epsilon default
// when SampleEps is unset.
func New(cfg Config) (*Transport, error) {
	pt, err := ParsePathType(string(cfg.PathType))
	if err != nil {
		return nil, err
	}
	pred, err := ParsePrediction(string(cfg.Prediction))
	if err != nil {
		return nil, err
	}
	lw, err := ParseLossWeight(string(cfg.LossWeight))
	if err != nil {
		return nil, err
	}
	eps := cfg.SampleEps
	if eps <= 0 {
		eps = 1e-3
	}
	return &Transport{
		pathType:   pt,
		prediction: pred,
		lossWeight: lw,
		sampleEps:  eps,
		plan:       planFor(pt),
	}, nil
}

func (tr *Transport) PathType() PathType     { return tr.pathType }
func (tr *Transport) Prediction() Prediction { return tr.prediction }

// interval returns the integration bounds. Velocity models on Linear/GVP
// paths are regular on the closed interval; score and noise conversions
// divide by alpha or sigma, which vanish at the endpoints, so the interval
// shrinks by sampleEps. SDE sampling additionally stops lastStepSize short
// of t=1 and finishes with a dedicated last step.
func (tr *Transport) interval(sde bool, lastStepSize float64) (t0, t1 float64) {
	t0, t1 = 0, 1
	if tr.prediction != PredVelocity || tr.pathType == PathVP || sde {
		t0 = tr.sampleEps
		t1 = 1 - tr.sampleEps
	}
	if sde && lastStepSize > 0 {
		t1 = 1 - lastStepSize
	}
	return t0, t1
}

// timeGrid builds the step grid over [t0,t1], warped by the time-shifting
// factor s via t <- t / (t + s - s*t). shift=1 leaves the grid linear.
func timeGrid(t0, t1 float64, steps int, shift float64, reverse bool) []float64 {
	if steps < 1 {
		steps = 1
	}
	grid := make([]float64, steps+1)
	for i := 0; i <= steps; i++ {
		t := t0 + (t1-t0)*float64(i)/float64(steps)
		if shift > 0 && shift != 1 {
			t = t / (t + shift - shift*t)
		}
		grid[i] = t
	}
	if reverse {
		for i, j := 0, len(grid)-1; i < j; i, j = i+1, j-1 {
			grid[i], grid[j] = grid[j], grid[i]
		}
	}
	return grid
}

// velocity converts raw model output into the probability-flow velocity.
func (tr *Transport) velocity(x, out []float32, t float64, dst []float32) {
	switch tr.prediction {
	case PredVelocity:
		copy(dst, out)
	case PredNoise:
		a, da := tr.plan.Alpha(t)
		s, ds := tr.plan.Sigma(t)
		// v = (da/a)x + (ds - da*s/a) eps
		cx := float32(da / a)
		ce := float32(ds - da*s/a)
		for i := range dst {
			dst[i] = cx*x[i] + ce*out[i]
		}
	case PredScore:
		a, da := tr.plan.Alpha(t)
		s, ds := tr.plan.Sigma(t)
		// eps = -sigma * score
		cx := float32(da / a)
		ce := float32(-s * (ds - da*s/a))
		for i := range dst {
			dst[i] = cx*x[i] + ce*out[i]
		}
	}
}

// score converts raw model output into the score function.
func (tr *Transport) score(x, out []float32, t float64, dst []float32) {
	a, da := tr.plan.Alpha(t)
	s, ds := tr.plan.Sigma(t)
	switch tr.prediction {
	case PredScore:
		copy(dst, out)
	case PredNoise:
		inv := float32(-1 / s)
		for i := range dst {
			dst[i] = inv * out[i]
		}
	case PredVelocity:
		// eps = (a*v - da*x) / (a*ds - s*da); score = -eps/sigma
		den := a*ds - s*da
		cv := float32(-a / (den * s))
		cx := float32(da / (den * s))
		for i := range dst {
			dst[i] = cv*out[i] + cx*x[i]
		}
	}
}

// denseLike wraps a float32 backing slice in a tensor with x's shape.
func denseLike(x *tensor.Dense, backing []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(x.Shape()...), tensor.WithBacking(backing))
}

func backingOf(x *tensor.Dense) []float32 {
	return x.Data().([]float32)
}
