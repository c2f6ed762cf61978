package glm

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Results describes a fitted generalized linear model.
type Results struct {
	model    *Model
	params   []float64
	xnames   []string
	vcov     []float64
	loglike  float64
	deviance float64
	fitted   []float64
	niter    int

	stderr  []float64
	zscores []float64
	pvalues []float64
}

// Model returns the model that produced the results.
func (rslt *Results) Model() *Model {
	return rslt.model
}

// Family returns the family of the fitted model.
func (rslt *Results) Family() *Family {
	return rslt.model.fam
}

// Names returns the coefficient names.
func (rslt *Results) Names() []string {
	return rslt.xnames
}

// Params returns the fitted coefficients.
func (rslt *Results) Params() []float64 {
	return rslt.params
}

// VCov returns the sampling covariance matrix of the coefficients,
// stored row-major.
func (rslt *Results) VCov() []float64 {
	return rslt.vcov
}

// LogLike returns the exact log-likelihood at the fitted coefficients.
func (rslt *Results) LogLike() float64 {
	return rslt.loglike
}

// Deviance returns the deviance at the fitted coefficients.
func (rslt *Results) Deviance() float64 {
	return rslt.deviance
}

// FittedMeans returns the fitted mean value for each observation.
func (rslt *Results) FittedMeans() []float64 {
	return rslt.fitted
}

// NumIter returns the number of IRLS iterations used by the fit.
func (rslt *Results) NumIter() int {
	return rslt.niter
}

// StdErr returns the standard errors of the coefficients.
func (rslt *Results) StdErr() []float64 {

	p := len(rslt.params)
	if rslt.stderr != nil {
		return rslt.stderr
	}
	rslt.stderr = make([]float64, p)

	for i := range rslt.stderr {
		rslt.stderr[i] = math.Sqrt(rslt.vcov[i*p+i])
	}

	return rslt.stderr
}

// ZScores returns the coefficients divided by their standard errors.
func (rslt *Results) ZScores() []float64 {

	if rslt.zscores != nil {
		return rslt.zscores
	}

	se := rslt.StdErr()
	rslt.zscores = make([]float64, len(rslt.params))
	for i := range rslt.params {
		rslt.zscores[i] = rslt.params[i] / se[i]
	}

	return rslt.zscores
}

func normcdf(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt(2))
}

// PValues returns two-sided p-values for the hypothesis that each
// coefficient is zero, based on the normal approximation.
func (rslt *Results) PValues() []float64 {

	if rslt.pvalues != nil {
		return rslt.pvalues
	}

	z := rslt.ZScores()
	rslt.pvalues = make([]float64, len(z))
	for i := range z {
		rslt.pvalues[i] = 2 * normcdf(-math.Abs(z[i]))
	}

	return rslt.pvalues
}

// ConfInt returns Wald confidence interval bounds for each
// coefficient at the given level, e.g. 0.95.
func (rslt *Results) ConfInt(level float64) (lower, upper []float64) {

	alpha := 1 - level
	q := distuv.UnitNormal.Quantile(1 - alpha/2)
	se := rslt.StdErr()

	lower = make([]float64, len(rslt.params))
	upper = make([]float64, len(rslt.params))
	for i := range rslt.params {
		lower[i] = rslt.params[i] - q*se[i]
		upper[i] = rslt.params[i] + q*se[i]
	}

	return lower, upper
}

// Summary returns a text table describing the fit.
func (rslt *Results) Summary() string {

	var b strings.Builder

	fam := rslt.model.fam
	fmt.Fprintf(&b, "%s GLM (log link), n=%d\n", fam.Name, rslt.model.NumObs())
	if fam.TypeCode == NegBinomFamily {
		fmt.Fprintf(&b, "dispersion alpha=%.4f (size=%.4f)\n", fam.alpha, 1/fam.alpha)
	}

	rule := strings.Repeat("-", 76)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-12s %12s %12s %10s %10s %14s\n",
		"coef", "estimate", "std err", "z", "P>|z|", "95% CI")
	fmt.Fprintln(&b, rule)

	se := rslt.StdErr()
	z := rslt.ZScores()
	pv := rslt.PValues()
	lo, hi := rslt.ConfInt(0.95)

	for i, na := range rslt.xnames {
		ci := fmt.Sprintf("[%.4f, %.4f]", lo[i], hi[i])
		fmt.Fprintf(&b, "%-12s %12.4f %12.4f %10.3f %10.4f %14s\n",
			na, rslt.params[i], se[i], z[i], pv[i], ci)
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "log-likelihood %.4f   deviance %.4f   iterations %d\n",
		rslt.loglike, rslt.deviance, rslt.niter)

	return b.String()
}
