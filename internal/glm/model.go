// Package glm fits generalized linear models for count data by
// iteratively reweighted least squares.  It supports the Poisson and
// negative binomial families with the log link, Wald confidence
// intervals from the inverse information matrix, and profile
// likelihood estimation of the negative binomial dispersion.
package glm

import (
	"fmt"
)

// Config holds the settings for fitting a GLM.
type Config struct {

	// The model family.  Required.
	Family *Family

	// Maximum number of IRLS iterations.
	MaxIter int

	// Convergence tolerance for the change in deviance between
	// successive IRLS iterations.
	DevTol float64

	// Optional starting values for the coefficients.
	Start []float64
}

// DefaultConfig returns a Config with standard fitting settings.  The
// family must be set by the caller.
func DefaultConfig() Config {
	return Config{
		MaxIter: 100,
		DevTol:  1e-8,
	}
}

// Model represents a GLM to be fit to a dataset held as columns.
type Model struct {
	y      []float64
	xdat   [][]float64
	xnames []string
	fam    *Family
	cfg    Config
}

// New creates a Model from column-major data.  The data slice holds
// one column per variable, named by the parallel names slice.  The
// outcome names the response column and predictors names the design
// columns in order; an explicit intercept column of ones must be
// included by the caller if one is wanted.
func New(data [][]float64, names []string, outcome string, predictors []string, cfg Config) (*Model, error) {

	if cfg.Family == nil {
		return nil, fmt.Errorf("glm: family must be set")
	}
	if len(data) != len(names) {
		return nil, fmt.Errorf("glm: %d data columns but %d names", len(data), len(names))
	}
	if len(predictors) == 0 {
		return nil, fmt.Errorf("glm: at least one predictor is required")
	}

	pos := make(map[string]int, len(names))
	for i, na := range names {
		pos[na] = i
	}

	yi, ok := pos[outcome]
	if !ok {
		return nil, fmt.Errorf("glm: outcome %q not found", outcome)
	}
	y := data[yi]
	n := len(y)
	if n == 0 {
		return nil, fmt.Errorf("glm: empty outcome column")
	}

	xdat := make([][]float64, len(predictors))
	for j, na := range predictors {
		xi, ok := pos[na]
		if !ok {
			return nil, fmt.Errorf("glm: predictor %q not found", na)
		}
		if len(data[xi]) != n {
			return nil, fmt.Errorf("glm: column %q has %d rows, outcome has %d", na, len(data[xi]), n)
		}
		xdat[j] = data[xi]
	}

	if n <= len(predictors) {
		return nil, fmt.Errorf("glm: %d observations cannot identify %d parameters", n, len(predictors))
	}
	if cfg.Start != nil && len(cfg.Start) != len(predictors) {
		return nil, fmt.Errorf("glm: %d starting values for %d parameters", len(cfg.Start), len(predictors))
	}

	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 100
	}
	if cfg.DevTol <= 0 {
		cfg.DevTol = 1e-8
	}

	xnames := make([]string, len(predictors))
	copy(xnames, predictors)

	return &Model{
		y:      y,
		xdat:   xdat,
		xnames: xnames,
		fam:    cfg.Family,
		cfg:    cfg,
	}, nil
}

// NumObs returns the number of observations in the model.
func (m *Model) NumObs() int {
	return len(m.y)
}

// NumParams returns the number of coefficients in the model.
func (m *Model) NumParams() int {
	return len(m.xdat)
}

// Family returns the model family.
func (m *Model) Family() *Family {
	return m.fam
}

// Response returns the outcome variable.
func (m *Model) Response() []float64 {
	return m.y
}

// Fit estimates the model coefficients by IRLS and returns the
// fitted results.  An error is returned if the design is singular or
// the iterations fail to converge.
func (m *Model) Fit() (*Results, error) {

	fit, err := m.fitIRLS(m.cfg.Start, m.cfg.MaxIter)
	if err != nil {
		return nil, err
	}

	mn := make([]float64, len(m.y))
	lp := make([]float64, len(m.y))
	m.linpred(fit.params, lp)
	m.fam.link.InvLink(lp, mn)

	vcov, err := m.vcov(mn)
	if err != nil {
		return nil, err
	}

	return &Results{
		model:    m,
		params:   fit.params,
		xnames:   m.xnames,
		vcov:     vcov,
		loglike:  m.fam.LogLike(m.y, mn),
		deviance: m.fam.Deviance(m.y, mn),
		fitted:   mn,
		niter:    fit.niter,
	}, nil
}

// linpred writes the linear predictor for the given coefficients
// into lp.
func (m *Model) linpred(params []float64, lp []float64) {
	for i := range lp {
		lp[i] = 0
	}
	for j := range m.xdat {
		xda := m.xdat[j]
		for i := range lp {
			lp[i] += xda[i] * params[j]
		}
	}
}
