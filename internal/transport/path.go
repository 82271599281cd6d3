package transport

import (
	"fmt"
	"math"
)

// PathType selects the interpolation schedule between noise and data.
type PathType string

const (
	PathLinear PathType = "Linear"
	PathGVP    PathType = "GVP"
	PathVP     PathType = "VP"
)

// ParsePathType validates a path type name.
func ParsePathType(s string) (PathType, error) {
	switch PathType(s) {
	case PathLinear, PathGVP, PathVP:
		return PathType(s), nil
	case "":
		return PathLinear, nil
	}
	return "", fmt.Errorf("unknown path type: %q", s)
}

// plan provides the schedule coefficients for x_t = alpha(t)*x1 + sigma(t)*x0,
// where t=0 is pure noise and t=1 is data. Alpha and Sigma return the
// coefficient and its time derivative.
type plan interface {
	Alpha(t float64) (alpha, dalpha float64)
	Sigma(t float64) (sigma, dsigma float64)
}

func planFor(p PathType) plan {
	switch p {
	case PathGVP:
		return gvpPlan{}
	case PathVP:
		return newVPPlan(0.1, 20.0)
	default:
		return linearPlan{}
	}
}

// linearPlan: alpha=t, sigma=1-t (rectified flow / linear interpolant).
type linearPlan struct{}

func (linearPlan) Alpha(t float64) (float64, float64) { return t, 1 }
func (linearPlan) Sigma(t float64) (float64, float64) { return 1 - t, -1 }

// gvpPlan: generalized variance-preserving, alpha=sin(pi/2 t), sigma=cos(pi/2 t).
type gvpPlan struct{}

func (gvpPlan) Alpha(t float64) (float64, float64) {
	return math.Sin(math.Pi / 2 * t), math.Pi / 2 * math.Cos(math.Pi/2*t)
}

func (gvpPlan) Sigma(t float64) (float64, float64) {
	return math.Cos(math.Pi / 2 * t), -math.Pi / 2 * math.Sin(math.Pi/2*t)
}

// vpPlan: variance-preserving schedule with linear beta. The diffusion
// convention runs in reverse flow time (s = 1-t), so noise dominates at t=0.
type vpPlan struct {
	betaMin, betaMax float64
}

func newVPPlan(betaMin, betaMax float64) vpPlan {
	return vpPlan{betaMin: betaMin, betaMax: betaMax}
}

// beta evaluates the forward-diffusion rate at reverse time s in [0,1].
func (p vpPlan) beta(s float64) float64 {
	return p.betaMin + s*(p.betaMax-p.betaMin)
}

func (p vpPlan) logAlpha(t float64) float64 {
	s := 1 - t
	return -0.25*s*s*(p.betaMax-p.betaMin) - 0.5*s*p.betaMin
}

func (p vpPlan) Alpha(t float64) (float64, float64) {
	a := math.Exp(p.logAlpha(t))
	// d(log alpha)/dt = 0.5 * beta(1-t)
	return a, a * 0.5 * p.beta(1-t)
}

func (p vpPlan) Sigma(t float64) (float64, float64) {
	a, da := p.Alpha(t)
	s2 := 1 - a*a
	if s2 < 1e-12 {
		s2 = 1e-12
	}
	s := math.Sqrt(s2)
	return s, -a * da / s
}

// Diffusion is the squared diffusion coefficient of the matching forward SDE
// expressed in flow time, used by the SBDM diffusion form.
func (p vpPlan) Diffusion(t float64) float64 {
	return 0.5 * p.beta(1-t)
}
