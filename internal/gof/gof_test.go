package gof

import (
	"math"
	"testing"

	"overcount/internal/glm"
)

func onesCol(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 1
	}
	return x
}

func fitPoisson(t *testing.T, y, x []float64) *glm.Results {
	t.Helper()

	data := [][]float64{y, onesCol(len(y)), x}
	names := []string{"y", "icept", "x"}

	cfg := glm.DefaultConfig()
	cfg.Family = glm.NewPoissonFamily()

	model, err := glm.New(data, names, "y", []string{"icept", "x"}, cfg)
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}
	rslt, err := model.Fit()
	if err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	return rslt
}

func TestCompute_PoissonWithSignal(t *testing.T) {
	y := []float64{1, 2, 2, 3, 4, 6, 5, 5}
	x := []float64{0, 0, 0, 0, 1, 1, 1, 1}

	res, err := Compute("poisson", fitPoisson(t, y, x))
	if err != nil {
		t.Fatalf("Failed to compute pseudo-R²: %v", err)
	}

	if res.NullLogLike >= res.LogLike {
		t.Errorf("Null log-likelihood %v is not below the full fit %v", res.NullLogLike, res.LogLike)
	}
	if res.McFadden <= 0 || res.McFadden >= 1 {
		t.Errorf("McFadden = %v, want in (0, 1)", res.McFadden)
	}
	if res.CoxSnell <= 0 || res.CoxSnell >= 1 {
		t.Errorf("CoxSnell = %v, want in (0, 1)", res.CoxSnell)
	}
	if res.Nagelkerke <= res.CoxSnell {
		t.Errorf("Nagelkerke %v should exceed CoxSnell %v", res.Nagelkerke, res.CoxSnell)
	}
	if res.GSquared <= 0 {
		t.Errorf("GSquared = %v, want > 0", res.GSquared)
	}
	if res.Family != "Poisson" {
		t.Errorf("Family = %q, want Poisson", res.Family)
	}
}

func TestCompute_NoSignalIsNearZero(t *testing.T) {
	// Fitting an intercept-only model makes the full fit its own
	// null, so every likelihood based measure collapses to zero.
	y := []float64{2, 3, 1, 4, 2, 5, 3, 2}
	data := [][]float64{y, onesCol(len(y))}
	names := []string{"y", "icept"}

	cfg := glm.DefaultConfig()
	cfg.Family = glm.NewPoissonFamily()

	model, err := glm.New(data, names, "y", []string{"icept"}, cfg)
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}
	rslt, err := model.Fit()
	if err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	res, err := Compute("null-vs-null", rslt)
	if err != nil {
		t.Fatalf("Failed to compute pseudo-R²: %v", err)
	}

	if res.McFadden > 1e-6 {
		t.Errorf("McFadden = %v, want ~0", res.McFadden)
	}
	if math.Abs(res.GSquared) > 1e-6 {
		t.Errorf("GSquared = %v, want ~0", res.GSquared)
	}
}

func TestCompute_NegBinomNullReprofiles(t *testing.T) {
	y := []float64{0, 1, 0, 2, 1, 0, 3, 1, 8, 15, 4, 20, 9, 3, 12, 6}
	x := []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1}
	data := [][]float64{y, onesCol(len(y)), x}
	names := []string{"y", "icept", "x"}

	rslt, _, err := glm.FitNegBinom(data, names, "y", []string{"icept", "x"})
	if err != nil {
		t.Fatalf("Failed to fit negative binomial model: %v", err)
	}

	res, err := Compute("negbinom", rslt)
	if err != nil {
		t.Fatalf("Failed to compute pseudo-R²: %v", err)
	}

	if res.McFadden <= 0 || res.McFadden > 1 {
		t.Errorf("McFadden = %v, want in (0, 1]", res.McFadden)
	}
	if res.NullLogLike >= res.LogLike {
		t.Errorf("Re-profiled null %v is not below the full fit %v", res.NullLogLike, res.LogLike)
	}
	if res.Family != "NegBinom" {
		t.Errorf("Family = %q, want NegBinom", res.Family)
	}
}

func TestComputeAll_LabelMismatch(t *testing.T) {
	if _, err := ComputeAll([]string{"a", "b"}, nil); err == nil {
		t.Error("Expected an error for mismatched labels, got nil")
	}
}

func TestRanked(t *testing.T) {
	in := []Result{
		{Model: "weak", McFadden: 0.05},
		{Model: "strong", McFadden: 0.40},
		{Model: "middle", McFadden: 0.22},
	}

	out := Ranked(in)

	want := []string{"strong", "middle", "weak"}
	for i, name := range want {
		if out[i].Model != name {
			t.Errorf("Rank %d = %s, want %s", i, out[i].Model, name)
		}
	}

	// Input order is untouched.
	if in[0].Model != "weak" {
		t.Errorf("Ranked mutated its input: %+v", in)
	}
}
