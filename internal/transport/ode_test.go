package transport

import (
	"errors"
	"math"
	"testing"

	"gorgonia.org/tensor"
)

func newState(vals ...float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(len(vals)), tensor.WithBacking(vals))
}

func velocityTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := New(Config{PathType: PathLinear, Prediction: PredVelocity})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

// constant field: dx/dt = c, so x(1) = x(0) + c exactly for every solver.
func constantField(c float32) VectorField {
	return func(x *tensor.Dense, t float64) (*tensor.Dense, error) {
		b := make([]float32, len(x.Data().([]float32)))
		for i := range b {
			b[i] = c
		}
		return tensor.New(tensor.WithShape(x.Shape()...), tensor.WithBacking(b)), nil
	}
}

// exponential field: dx/dt = x, so x(1) = x(0) * e.
func exponentialField() VectorField {
	return func(x *tensor.Dense, t float64) (*tensor.Dense, error) {
		src := x.Data().([]float32)
		b := append([]float32(nil), src...)
		return tensor.New(tensor.WithShape(x.Shape()...), tensor.WithBacking(b)), nil
	}
}

func TestParseSolverMethod(t *testing.T) {
	for _, ok := range []string{"euler", "midpoint", "rk4", "dopri5", ""} {
		if _, err := ParseSolverMethod(ok); err != nil {
			t.Fatalf("ParseSolverMethod(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"dopri8", "Euler", "heun"} {
		if _, err := ParseSolverMethod(bad); err == nil {
			t.Fatalf("ParseSolverMethod(%q): expected error", bad)
		}
	}
}

func TestSampleODERejectsBadSteps(t *testing.T) {
	s := NewSampler(velocityTransport(t))
	if _, err := s.SampleODE(ODEOptions{Method: SolverEuler, Steps: 0}); err == nil {
		t.Fatalf("expected error for steps=0")
	}
	if _, err := s.SampleODE(ODEOptions{Method: SolverEuler, Steps: 1001}); err == nil {
		t.Fatalf("expected error for steps>1000")
	}
}

func TestFixedGridSolversExactOnConstantField(t *testing.T) {
	s := NewSampler(velocityTransport(t))
	for _, method := range []SolverMethod{SolverEuler, SolverMidpoint, SolverRK4} {
		fn, err := s.SampleODE(ODEOptions{Method: method, Steps: 7, TimeShift: 1})
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		out, steps, err := fn(newState(1, -2), constantField(3), nil)
		if err != nil {
			t.Fatalf("%s sample: %v", method, err)
		}
		if steps != 7 {
			t.Fatalf("%s steps = %d, want 7", method, steps)
		}
		got := out.Data().([]float32)
		if math.Abs(float64(got[0])-4) > 1e-5 || math.Abs(float64(got[1])-1) > 1e-5 {
			t.Fatalf("%s result = %v, want [4 1]", method, got)
		}
	}
}

func TestRK4ConvergesOnExponential(t *testing.T) {
	s := NewSampler(velocityTransport(t))
	fn, err := s.SampleODE(ODEOptions{Method: SolverRK4, Steps: 40, TimeShift: 1})
	if err != nil {
		t.Fatalf("SampleODE: %v", err)
	}
	out, _, err := fn(newState(1), exponentialField(), nil)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	got := float64(out.Data().([]float32)[0])
	if math.Abs(got-math.E) > 1e-4 {
		t.Fatalf("rk4 exp(1) = %g, want %g", got, math.E)
	}
}

func TestEulerFirstOrderError(t *testing.T) {
	s := NewSampler(velocityTransport(t))
	errAt := func(steps int) float64 {
		fn, err := s.SampleODE(ODEOptions{Method: SolverEuler, Steps: steps, TimeShift: 1})
		if err != nil {
			t.Fatalf("SampleODE: %v", err)
		}
		out, _, err := fn(newState(1), exponentialField(), nil)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		return math.Abs(float64(out.Data().([]float32)[0]) - math.E)
	}
	e10, e100 := errAt(10), errAt(100)
	if e100 >= e10 {
		t.Fatalf("euler error did not shrink with more steps: %g vs %g", e10, e100)
	}
}

func TestDopri5MatchesExponential(t *testing.T) {
	s := NewSampler(velocityTransport(t))
	fn, err := s.SampleODE(ODEOptions{Method: SolverDopri5, Steps: 10, ATol: 1e-7, RTol: 1e-6, TimeShift: 1})
	if err != nil {
		t.Fatalf("SampleODE: %v", err)
	}
	var accepted int
	out, steps, err := fn(newState(1), exponentialField(), func(step, total int) {
		if total != 0 {
			t.Fatalf("adaptive progress total = %d, want 0", total)
		}
		accepted = step
	})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if steps != accepted {
		t.Fatalf("returned steps %d != last progress %d", steps, accepted)
	}
	got := float64(out.Data().([]float32)[0])
	if math.Abs(got-math.E) > 1e-4 {
		t.Fatalf("dopri5 exp(1) = %g, want %g", got, math.E)
	}
}

func TestSolverReportsFieldError(t *testing.T) {
	s := NewSampler(velocityTransport(t))
	fn, err := s.SampleODE(ODEOptions{Method: SolverEuler, Steps: 4, TimeShift: 1})
	if err != nil {
		t.Fatalf("SampleODE: %v", err)
	}
	boom := errors.New("boom")
	_, _, err = fn(newState(1), func(x *tensor.Dense, t float64) (*tensor.Dense, error) {
		return nil, boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected field error, got %v", err)
	}
}

func TestProgressCallbackCounts(t *testing.T) {
	s := NewSampler(velocityTransport(t))
	fn, err := s.SampleODE(ODEOptions{Method: SolverEuler, Steps: 5, TimeShift: 1})
	if err != nil {
		t.Fatalf("SampleODE: %v", err)
	}
	var calls []int
	_, _, err = fn(newState(0), constantField(1), func(step, total int) {
		if total != 5 {
			t.Fatalf("total = %d, want 5", total)
		}
		calls = append(calls, step)
	})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(calls) != 5 || calls[0] != 1 || calls[4] != 5 {
		t.Fatalf("unexpected progress calls: %v", calls)
	}
}

// Reverse integration undoes forward integration for a time-symmetric field.
func TestReverseFlipsDirection(t *testing.T) {
	s := NewSampler(velocityTransport(t))
	fwd, err := s.SampleODE(ODEOptions{Method: SolverRK4, Steps: 20, TimeShift: 1})
	if err != nil {
		t.Fatalf("SampleODE fwd: %v", err)
	}
	rev, err := s.SampleODE(ODEOptions{Method: SolverRK4, Steps: 20, TimeShift: 1, Reverse: true})
	if err != nil {
		t.Fatalf("SampleODE rev: %v", err)
	}
	mid, _, err := fwd(newState(1), exponentialField(), nil)
	if err != nil {
		t.Fatalf("fwd: %v", err)
	}
	back, _, err := rev(mid, exponentialField(), nil)
	if err != nil {
		t.Fatalf("rev: %v", err)
	}
	got := float64(back.Data().([]float32)[0])
	if math.Abs(got-1) > 1e-3 {
		t.Fatalf("round trip = %g, want 1", got)
	}
}
