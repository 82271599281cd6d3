package transport

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestParsePathType(t *testing.T) {
	cases := []struct {
		in   string
		want PathType
		err  bool
	}{
		{"Linear", PathLinear, false},
		{"GVP", PathGVP, false},
		{"VP", PathVP, false},
		{"", PathLinear, false},
		{"linear", "", true},
		{"bogus", "", true},
	}
	for _, c := range cases {
		got, err := ParsePathType(c.in)
		if c.err {
			if err == nil {
				t.Fatalf("ParsePathType(%q): expected error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("ParsePathType(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
	}
}

func TestGVPPlanIdentity(t *testing.T) {
	p := gvpPlan{}
	for _, tt := range []float64{0, 0.1, 0.25, 0.5, 0.9, 1} {
		a, _ := p.Alpha(tt)
		s, _ := p.Sigma(tt)
		if !almostEqual(a*a+s*s, 1, 1e-12) {
			t.Fatalf("GVP alpha^2+sigma^2 != 1 at t=%g: %g", tt, a*a+s*s)
		}
	}
}

func TestLinearPlanBoundaries(t *testing.T) {
	p := linearPlan{}
	a0, _ := p.Alpha(0)
	s0, _ := p.Sigma(0)
	a1, _ := p.Alpha(1)
	s1, _ := p.Sigma(1)
	if a0 != 0 || s0 != 1 || a1 != 1 || s1 != 0 {
		t.Fatalf("linear plan boundaries wrong: a0=%g s0=%g a1=%g s1=%g", a0, s0, a1, s1)
	}
}

func TestVPPlanBoundaries(t *testing.T) {
	p := newVPPlan(0.1, 20)
	a1, _ := p.Alpha(1)
	if !almostEqual(a1, 1, 1e-12) {
		t.Fatalf("VP alpha(1) = %g, want 1", a1)
	}
	a0, _ := p.Alpha(0)
	if a0 >= 0.01 {
		t.Fatalf("VP alpha(0) = %g, want near zero", a0)
	}
	// alpha monotonically increasing
	prev := -1.0
	for tt := 0.0; tt <= 1.0; tt += 0.05 {
		a, _ := p.Alpha(tt)
		if a <= prev {
			t.Fatalf("VP alpha not increasing at t=%g", tt)
		}
		prev = a
	}
}

func TestPlanDerivatives(t *testing.T) {
	// finite-difference check of the analytical derivatives
	const h = 1e-6
	for name, p := range map[string]plan{"linear": linearPlan{}, "gvp": gvpPlan{}, "vp": newVPPlan(0.1, 20)} {
		for _, tt := range []float64{0.2, 0.5, 0.8} {
			a1, da := p.Alpha(tt)
			a2, _ := p.Alpha(tt + h)
			if !almostEqual(da, (a2-a1)/h, 1e-3*(1+math.Abs(da))) {
				t.Fatalf("%s dalpha mismatch at t=%g: analytic %g fd %g", name, tt, da, (a2-a1)/h)
			}
			s1, ds := p.Sigma(tt)
			s2, _ := p.Sigma(tt + h)
			if !almostEqual(ds, (s2-s1)/h, 1e-3*(1+math.Abs(ds))) {
				t.Fatalf("%s dsigma mismatch at t=%g: analytic %g fd %g", name, tt, ds, (s2-s1)/h)
			}
		}
	}
}

// For x = alpha*x1 + sigma*x0 the true velocity is dalpha*x1 + dsigma*x0,
// the noise is x0 and the score is -x0/sigma. All prediction conversions
// must agree with those closed forms.
func TestPredictionConversions(t *testing.T) {
	const x0, x1, tt = 0.7, -1.3, 0.4
	for _, pathType := range []PathType{PathLinear, PathGVP, PathVP} {
		p := planFor(pathType)
		a, da := p.Alpha(tt)
		s, ds := p.Sigma(tt)
		x := a*x1 + s*x0
		trueV := da*x1 + ds*x0
		trueScore := -x0 / s

		for pred, out := range map[Prediction]float64{
			PredVelocity: trueV,
			PredNoise:    x0,
			PredScore:    trueScore,
		} {
			tr, err := New(Config{PathType: pathType, Prediction: pred})
			if err != nil {
				t.Fatalf("New(%s/%s): %v", pathType, pred, err)
			}
			dst := make([]float32, 1)
			tr.velocity([]float32{float32(x)}, []float32{float32(out)}, tt, dst)
			if !almostEqual(float64(dst[0]), trueV, 1e-3*(1+math.Abs(trueV))) {
				t.Fatalf("%s/%s velocity = %g, want %g", pathType, pred, dst[0], trueV)
			}
			tr.score([]float32{float32(x)}, []float32{float32(out)}, tt, dst)
			if !almostEqual(float64(dst[0]), trueScore, 1e-3*(1+math.Abs(trueScore))) {
				t.Fatalf("%s/%s score = %g, want %g", pathType, pred, dst[0], trueScore)
			}
		}
	}
}

func TestTimeGridShift(t *testing.T) {
	grid := timeGrid(0, 1, 10, 4, false)
	if len(grid) != 11 {
		t.Fatalf("grid length = %d, want 11", len(grid))
	}
	if grid[0] != 0 || !almostEqual(grid[10], 1, 1e-12) {
		t.Fatalf("grid endpoints wrong: %g..%g", grid[0], grid[10])
	}
	for i := 1; i < len(grid); i++ {
		if grid[i] <= grid[i-1] {
			t.Fatalf("grid not strictly increasing at %d", i)
		}
	}
	// a shift factor > 1 pushes interior points toward zero
	if grid[5] >= 0.5 {
		t.Fatalf("shifted midpoint %g not below linear midpoint", grid[5])
	}
	// shift=1 leaves the grid linear
	lin := timeGrid(0, 1, 10, 1, false)
	if !almostEqual(lin[5], 0.5, 1e-12) {
		t.Fatalf("unshifted midpoint = %g, want 0.5", lin[5])
	}
}

func TestTimeGridReverse(t *testing.T) {
	grid := timeGrid(0, 1, 4, 1, true)
	if grid[0] != 1 || grid[len(grid)-1] != 0 {
		t.Fatalf("reversed grid endpoints wrong: %g..%g", grid[0], grid[len(grid)-1])
	}
}

func TestIntervalShrinksForNonVelocity(t *testing.T) {
	trV, _ := New(Config{PathType: PathLinear, Prediction: PredVelocity})
	t0, t1 := trV.interval(false, 0)
	if t0 != 0 || t1 != 1 {
		t.Fatalf("velocity ODE interval = [%g,%g], want [0,1]", t0, t1)
	}
	trN, _ := New(Config{PathType: PathLinear, Prediction: PredNoise})
	t0, t1 = trN.interval(false, 0)
	if t0 <= 0 || t1 >= 1 {
		t.Fatalf("noise ODE interval = [%g,%g], want open", t0, t1)
	}
	t0, t1 = trV.interval(true, 0.04)
	if t0 <= 0 || !almostEqual(t1, 0.96, 1e-12) {
		t.Fatalf("SDE interval = [%g,%g], want [eps,0.96]", t0, t1)
	}
}

func TestParseLossWeight(t *testing.T) {
	for _, ok := range []string{"", "None", "velocity", "likelihood"} {
		if _, err := ParseLossWeight(ok); err != nil {
			t.Fatalf("ParseLossWeight(%q): %v", ok, err)
		}
	}
	if _, err := ParseLossWeight("huber"); err == nil {
		t.Fatalf("expected error for unknown loss weight")
	}
}
