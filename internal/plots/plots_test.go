package plots

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"overcount/internal/simulate"
)

func decodePNG(t *testing.T, path string) (width, height int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestCountHistograms(t *testing.T) {
	cfg := simulate.DefaultConfig()
	cfg.N = 500

	ds, err := simulate.Generate(cfg)
	if err != nil {
		t.Fatalf("Failed to generate dataset: %v", err)
	}

	path := filepath.Join(t.TempDir(), "hist.png")
	if err := CountHistograms(ds.Processes(), path); err != nil {
		t.Fatalf("Failed to render histograms: %v", err)
	}

	w, h := decodePNG(t, path)
	if w <= h {
		t.Errorf("Expected a wide three-panel row, got %dx%d", w, h)
	}
}

func TestCountHistograms_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist.png")
	if err := CountHistograms(nil, path); err == nil {
		t.Error("Expected an error for empty input, got nil")
	}
}

func TestCoefficientPanels(t *testing.T) {
	panels := []CoefPanel{
		{
			Param:     "intercept",
			TrueValue: 0.5,
			Estimates: []CoefEstimate{
				{Model: "Poisson", Estimate: 0.52, Lower: 0.45, Upper: 0.59},
				{Model: "NB 0.5", Estimate: 0.48, Lower: 0.33, Upper: 0.63},
				{Model: "NB 0.05", Estimate: 0.55, Lower: 0.22, Upper: 0.88},
			},
		},
		{
			Param:     "slope",
			TrueValue: -1,
			Estimates: []CoefEstimate{
				{Model: "Poisson", Estimate: -0.98, Lower: -1.05, Upper: -0.91},
				{Model: "NB 0.5", Estimate: -1.03, Lower: -1.18, Upper: -0.88},
				{Model: "NB 0.05", Estimate: -0.92, Lower: -1.25, Upper: -0.59},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "coef.png")
	if err := CoefficientPanels(panels, path); err != nil {
		t.Fatalf("Failed to render coefficient panels: %v", err)
	}

	if w, h := decodePNG(t, path); w <= h {
		t.Errorf("Expected a wide two-panel row, got %dx%d", w, h)
	}
}

func TestCoefficientPanels_Validation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coef.png")

	if err := CoefficientPanels(nil, path); err == nil {
		t.Error("Expected an error for no panels, got nil")
	}

	empty := []CoefPanel{{Param: "slope"}}
	if err := CoefficientPanels(empty, path); err == nil {
		t.Error("Expected an error for a panel without estimates, got nil")
	}
}

func TestProfileCurve(t *testing.T) {
	var points [][2]float64
	for a := 0.5; a <= 4.0; a += 0.1 {
		ll := -100 - (a-2)*(a-2)
		points = append(points, [2]float64{a, ll})
	}
	// A failed refit shows up as -Inf and must be skipped.
	points = append(points, [2]float64{4.1, math.Inf(-1)})

	path := filepath.Join(t.TempDir(), "profile.png")
	if err := ProfileCurve("dispersion profile", points, 2.0, path); err != nil {
		t.Fatalf("Failed to render profile curve: %v", err)
	}

	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Errorf("Profile curve file missing or empty: %v", err)
	}

	all := [][2]float64{{1, math.Inf(-1)}}
	if err := ProfileCurve("bad", all, 1, filepath.Join(t.TempDir(), "bad.png")); err == nil {
		t.Error("Expected an error when no profile point is finite, got nil")
	}
}
