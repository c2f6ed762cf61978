// Package gof scores fitted count models against their own
// intercept-only null, producing the likelihood based pseudo-R²
// measures reported alongside the coefficient estimates.
package gof

import (
	"fmt"
	"math"
	"sort"

	"overcount/internal/glm"
)

// Result holds the pseudo-R² measures for one fitted model, together
// with any warnings raised while computing them. Callers decide how
// loudly to surface the warnings; the rendered report does not show
// them at all.
type Result struct {
	Model       string
	Family      string
	McFadden    float64
	CoxSnell    float64
	Nagelkerke  float64
	GSquared    float64
	LogLike     float64
	NullLogLike float64
	Warnings    []string
}

// Compute derives pseudo-R² measures for a fitted model by refitting
// the intercept-only null of the same family. A negative binomial
// null re-profiles its own dispersion rather than inheriting the
// full model's estimate, so the likelihood ratio compares two
// separately maximized fits.
func Compute(label string, rslt *glm.Results) (Result, error) {

	res := Result{
		Model:   label,
		Family:  rslt.Family().Name,
		LogLike: rslt.LogLike(),
	}

	n := rslt.Model().NumObs()
	if n == 0 {
		return res, fmt.Errorf("gof: model has no observations")
	}

	ll0, err := nullLogLike(rslt)
	if err != nil {
		return res, err
	}
	res.NullLogLike = ll0

	ll1 := res.LogLike
	nn := float64(n)

	if !finite(ll1) || !finite(ll0) {
		res.Warnings = append(res.Warnings, "log-likelihood is not finite, pseudo-R² values are unreliable")
	}

	res.GSquared = 2 * (ll1 - ll0)

	if ll0 == 0 {
		res.Warnings = append(res.Warnings, "null log-likelihood is zero, McFadden measure undefined")
	} else {
		res.McFadden = 1 - ll1/ll0
	}
	if res.McFadden < 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("McFadden measure %.3g clipped at zero", res.McFadden))
		res.McFadden = 0
	}

	res.CoxSnell = 1 - math.Exp(2*(ll0-ll1)/nn)

	maxCS := 1 - math.Exp(2*ll0/nn)
	if maxCS <= 0 {
		res.Warnings = append(res.Warnings, "Cox-Snell upper bound is degenerate, Nagelkerke measure undefined")
	} else {
		res.Nagelkerke = res.CoxSnell / maxCS
	}

	return res, nil
}

// ComputeAll scores each fit in order. Labels and fits must align.
func ComputeAll(labels []string, fits []*glm.Results) ([]Result, error) {

	if len(labels) != len(fits) {
		return nil, fmt.Errorf("gof: %d labels for %d fits", len(labels), len(fits))
	}

	out := make([]Result, 0, len(fits))
	for i, rslt := range fits {
		res, err := Compute(labels[i], rslt)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}

	return out, nil
}

// Ranked returns a copy of the results sorted by McFadden pseudo-R²,
// best fitting model first.
func Ranked(results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)
	sort.Slice(out, func(i, j int) bool {
		return out[i].McFadden > out[j].McFadden
	})
	return out
}

// nullLogLike fits the intercept-only model of the same family on
// the same outcome and returns its log-likelihood.
func nullLogLike(rslt *glm.Results) (float64, error) {

	y := rslt.Model().Response()
	icept := make([]float64, len(y))
	for i := range icept {
		icept[i] = 1
	}

	data := [][]float64{y, icept}
	names := []string{"y", "icept"}

	switch rslt.Family().TypeCode {
	case glm.PoissonFamily:
		cfg := glm.DefaultConfig()
		cfg.Family = glm.NewPoissonFamily()
		model, err := glm.New(data, names, "y", []string{"icept"}, cfg)
		if err != nil {
			return 0, fmt.Errorf("gof: null model: %w", err)
		}
		null, err := model.Fit()
		if err != nil {
			return 0, fmt.Errorf("gof: null model fit failed: %w", err)
		}
		return null.LogLike(), nil

	case glm.NegBinomFamily:
		null, _, err := glm.FitNegBinom(data, names, "y", []string{"icept"})
		if err != nil {
			return 0, fmt.Errorf("gof: null model fit failed: %w", err)
		}
		return null.LogLike(), nil

	default:
		return 0, fmt.Errorf("gof: unsupported family %s", rslt.Family().Name)
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
