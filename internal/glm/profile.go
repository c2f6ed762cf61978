package glm

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxBracket bounds the geometric bracket searches below so that a
// profile likelihood that never turns over cannot loop forever.
const maxBracket = 200

// NegBinomProfiler performs profile likelihood analysis on the
// dispersion parameter of a negative binomial GLM.  The coefficients
// are re-estimated at every candidate dispersion value, so the curve
// traced out is the true profile likelihood.
type NegBinomProfiler struct {

	// The profile analysis is done with respect to this fitted model.
	results *Results

	// The MLE of the dispersion parameter.
	dispersionMLE float64

	// The log-likelihood at the dispersion MLE.
	maxLogLike float64

	// A sequence of (dispersion, log-likelihood) values visited
	// during the search, sorted by dispersion.
	Profile [][2]float64

	params []float64
}

// NewNegBinomProfiler profiles the dispersion parameter of a fitted
// negative binomial GLM, locating its MLE.
func NewNegBinomProfiler(result *Results) (*NegBinomProfiler, error) {

	if result.model.fam.TypeCode != NegBinomFamily {
		return nil, fmt.Errorf("glm: dispersion profiling requires a negative binomial fit, got %s", result.model.fam.Name)
	}

	nb := &NegBinomProfiler{
		results: result,
	}

	pa := result.Params()
	nb.params = make([]float64, len(pa))
	copy(nb.params, pa)

	if err := nb.getMLE(); err != nil {
		return nil, err
	}

	return nb, nil
}

// LogLike returns the profile log-likelihood at the given dispersion
// value, refitting the coefficients from the original estimates.  A
// refit failure yields -Inf so the searches treat the point as
// infeasible.
func (nb *NegBinomProfiler) LogLike(alpha float64) float64 {

	m := nb.results.model

	cfg := m.cfg
	cfg.Family = NewNegBinomFamily(alpha)
	cfg.Start = nb.params

	model := &Model{
		y:      m.y,
		xdat:   m.xdat,
		xnames: m.xnames,
		fam:    cfg.Family,
		cfg:    cfg,
	}

	result, err := model.Fit()
	if err != nil {
		return math.Inf(-1)
	}

	return result.LogLike()
}

// DispersionMLE returns the maximum likelihood estimate of the
// dispersion parameter.
func (nb *NegBinomProfiler) DispersionMLE() float64 {
	return nb.dispersionMLE
}

// MaxLogLike returns the log-likelihood at the dispersion MLE.
func (nb *NegBinomProfiler) MaxLogLike() float64 {
	return nb.maxLogLike
}

func (nb *NegBinomProfiler) getMLE() error {

	// Center point
	disp1 := nb.results.model.fam.alpha
	ll1 := nb.LogLike(disp1)
	if math.IsInf(ll1, -1) {
		return fmt.Errorf("glm: dispersion profile refit failed at alpha=%v", disp1)
	}

	// Upper point
	disp2 := 1.2 * disp1
	ll2 := nb.LogLike(disp2)
	for k := 0; ll2 >= ll1; k++ {
		if k > maxBracket {
			return fmt.Errorf("glm: dispersion MLE has no upper bracket below alpha=%v", disp2)
		}
		disp1, ll1 = disp2, ll2
		disp2 *= 1.2
		ll2 = nb.LogLike(disp2)
	}

	// Lower point
	disp0 := 0.8 * disp1
	ll0 := nb.LogLike(disp0)
	for k := 0; ll0 >= ll1; k++ {
		if k > maxBracket {
			return fmt.Errorf("glm: dispersion MLE has no lower bracket above alpha=%v", disp0)
		}
		disp1, ll1 = disp0, ll0
		disp0 *= 0.8
		ll0 = nb.LogLike(disp0)
	}

	var hist [][2]float64
	nb.dispersionMLE, nb.maxLogLike, hist = bisectmax(nb.LogLike, disp0, disp1, disp2, ll1)
	nb.Profile = append(nb.Profile, hist...)
	nb.sortProfile()

	return nil
}

// ConfInt returns dispersion values bracketing a profile likelihood
// confidence interval for the dispersion parameter, e.g. prob=0.95.
// Points visited during the search accumulate in the Profile field.
func (nb *NegBinomProfiler) ConfInt(prob float64) (float64, float64, error) {

	qp := distuv.ChiSquared{K: 1}.Quantile(prob) / 2
	crit := nb.maxLogLike - qp

	// Left side
	disp0 := 0.9 * nb.dispersionMLE
	ll0 := nb.LogLike(disp0)
	for k := 0; ll0 > crit; k++ {
		if k > maxBracket {
			return 0, 0, fmt.Errorf("glm: no lower confidence bound above alpha=%v", disp0)
		}
		disp0 *= 0.9
		ll0 = nb.LogLike(disp0)
		nb.Profile = append(nb.Profile, [2]float64{disp0, ll0})
	}
	disp0, hist, err := bisectroot(nb.LogLike, disp0, nb.dispersionMLE, ll0, nb.maxLogLike, crit)
	if err != nil {
		return 0, 0, err
	}
	nb.Profile = append(nb.Profile, hist...)

	// Right side
	disp1 := 1.1 * nb.dispersionMLE
	ll1 := nb.LogLike(disp1)
	for k := 0; ll1 > crit; k++ {
		if k > maxBracket {
			return 0, 0, fmt.Errorf("glm: no upper confidence bound below alpha=%v", disp1)
		}
		disp1 *= 1.1
		ll1 = nb.LogLike(disp1)
		nb.Profile = append(nb.Profile, [2]float64{disp1, ll1})
	}
	disp1, hist, err = bisectroot(nb.LogLike, nb.dispersionMLE, disp1, nb.maxLogLike, ll1, crit)
	if err != nil {
		return 0, 0, err
	}
	nb.Profile = append(nb.Profile, hist...)

	nb.sortProfile()

	return disp0, disp1, nil
}

func (nb *NegBinomProfiler) sortProfile() {
	sort.Slice(nb.Profile, func(i, j int) bool {
		return nb.Profile[i][0] < nb.Profile[j][0]
	})
}

// bisectmax locates the maximum of f inside the bracket x0 < x1 < x2,
// where y1 = f(x1) exceeds f at both endpoints.
func bisectmax(f func(float64) float64, x0, x1, x2, y1 float64) (float64, float64, [][2]float64) {

	var hist [][2]float64

	for x2-x0 > 1e-4 {
		if x2-x1 > x1-x0 {
			x := (x1 + x2) / 2
			y := f(x)
			hist = append(hist, [2]float64{x, y})
			if y > y1 {
				x0 = x1
				y1 = y
				x1 = x
			} else {
				x2 = x
			}
		} else {
			x := (x0 + x1) / 2
			y := f(x)
			hist = append(hist, [2]float64{x, y})
			if y > y1 {
				x2 = x1
				y1 = y
				x1 = x
			} else {
				x0 = x
			}
		}
	}

	return x1, y1, hist
}

// bisectroot locates x in [x0, x1] with f(x) = yt, given y0 = f(x0)
// and y1 = f(x1) on opposite sides of yt.
func bisectroot(f func(float64) float64, x0, x1, y0, y1, yt float64) (float64, [][2]float64, error) {

	if (y0-yt)*(y1-yt) > 0 {
		return 0, nil, fmt.Errorf("glm: bisection bracket [%v, %v] does not contain the target", x0, x1)
	}

	var hist [][2]float64

	for x1-x0 > 1e-4 {
		x := (x0 + x1) / 2
		y := f(x)
		hist = append(hist, [2]float64{x, y})
		if (y-yt)*(y0-yt) > 0 {
			x0 = x
			y0 = y
		} else {
			x1 = x
		}
	}

	return (x0 + x1) / 2, hist, nil
}

// FitNegBinom fits a negative binomial GLM in which the dispersion
// parameter is estimated by profile maximum likelihood.  The returned
// results condition on the profiled dispersion, and the profiler is
// returned for interval estimation of the dispersion itself.
func FitNegBinom(data [][]float64, names []string, outcome string, predictors []string) (*Results, *NegBinomProfiler, error) {

	var y []float64
	for i, na := range names {
		if na == outcome {
			y = data[i]
		}
	}
	if y == nil {
		return nil, nil, fmt.Errorf("glm: outcome variable %q not found", outcome)
	}

	// Moment estimate of the dispersion to start the profile search.
	mn := stat.Mean(y, nil)
	va := stat.Variance(y, nil)
	alpha := 0.01
	if mn > 0 {
		if a := (va - mn) / (mn * mn); a > alpha {
			alpha = a
		}
	}

	cfg := DefaultConfig()
	cfg.Family = NewNegBinomFamily(alpha)

	model, err := New(data, names, outcome, predictors, cfg)
	if err != nil {
		return nil, nil, err
	}
	rslt, err := model.Fit()
	if err != nil {
		return nil, nil, err
	}

	prof, err := NewNegBinomProfiler(rslt)
	if err != nil {
		return nil, nil, err
	}

	// Refit at the profiled dispersion so the reported coefficients,
	// covariance and likelihood all condition on the dispersion MLE.
	cfg.Family = NewNegBinomFamily(prof.DispersionMLE())
	cfg.Start = rslt.Params()

	model, err = New(data, names, outcome, predictors, cfg)
	if err != nil {
		return nil, nil, err
	}
	rslt, err = model.Fit()
	if err != nil {
		return nil, nil, err
	}

	return rslt, prof, nil
}
