package glm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type irlsFit struct {
	params []float64
	niter  int
}

// fitIRLS estimates the coefficients by iteratively reweighted least
// squares.  Each iteration solves a weighted least squares problem
// with working weights 1/(g'(mu)^2 * V(mu)) and the adjusted response
// z = eta + g'(mu)*(y - mu), stopping when the deviance stabilizes.
func (m *Model) fitIRLS(start []float64, maxiter int) (irlsFit, error) {

	n := len(m.y)
	nvar := m.NumParams()

	linpred := make([]float64, n)
	mn := make([]float64, n)
	va := make([]float64, n)
	lderiv := make([]float64, n)
	irlsw := make([]float64, n)
	adjy := make([]float64, n)

	xty := make([]float64, nvar)
	xtx := make([]float64, nvar*nvar)

	var params []float64
	if start == nil {
		params = make([]float64, nvar)
	} else {
		params = make([]float64, nvar)
		copy(params, start)
	}

	var nparam mat.VecDense
	var dev []float64
	converged := false

	for iter := 0; iter < maxiter; iter++ {

		zero(xtx)
		zero(xty)

		m.linpred(params, linpred)

		if iter == 0 && start == nil {
			m.startingMu(mn)
		} else {
			m.fam.link.InvLink(linpred, mn)
		}

		m.fam.link.Deriv(mn, lderiv)
		m.fam.vari.Var(mn, va)

		devi := m.fam.Deviance(m.y, mn)

		// Working weights and adjusted response for WLS
		for i := range m.y {
			irlsw[i] = 1 / (lderiv[i] * lderiv[i] * va[i])
			adjy[i] = linpred[i] + lderiv[i]*(m.y[i]-mn[i])
		}

		m.irlsXprod(adjy, irlsw, xty, xtx)

		// Fill in the unfilled triangle of xtx
		for j1 := 0; j1 < nvar; j1++ {
			for j2 := j1 + 1; j2 < nvar; j2++ {
				xtx[j1*nvar+j2] = xtx[j2*nvar+j1]
			}
		}

		xtxm := mat.NewDense(nvar, nvar, xtx)
		xtyv := mat.NewVecDense(nvar, xty)
		if err := nparam.SolveVec(xtxm, xtyv); err != nil {
			return irlsFit{}, fmt.Errorf("glm: singular design at IRLS iteration %d: %w", iter+1, err)
		}
		params = nparam.RawVector().Data

		dev = append(dev, devi)
		if len(dev) > 3 && math.Abs(dev[len(dev)-1]-dev[len(dev)-2]) < m.cfg.DevTol {
			converged = true
			break
		}
	}

	if !converged {
		return irlsFit{}, fmt.Errorf("glm: IRLS did not converge in %d iterations", maxiter)
	}

	out := make([]float64, nvar)
	copy(out, params)

	return irlsFit{params: out, niter: len(dev)}, nil
}

// irlsXprod accumulates the weighted moment matrices X'Wz and X'WX,
// filling only the lower triangle of xtx.
func (m *Model) irlsXprod(adjy, irlsw, xty, xtx []float64) {

	nvar := len(m.xdat)

	for j1 := 0; j1 < nvar; j1++ {

		xda := m.xdat[j1]
		var u float64
		for i := range adjy {
			u += adjy[i] * xda[i] * irlsw[i]
		}
		xty[j1] += u

		for j2 := 0; j2 <= j1; j2++ {
			xdb := m.xdat[j2]
			var u float64
			for i := range xda {
				u += xda[i] * xdb[i] * irlsw[i]
			}
			xtx[j1*nvar+j2] += u
		}
	}
}

// startingMu sets initial mean values for the first IRLS iteration,
// shrinking each observation halfway toward the sample mean and
// bounding it away from zero.
func (m *Model) startingMu(mn []float64) {

	q := floats.Sum(m.y) / float64(len(m.y))
	for i := range mn {
		mn[i] = (m.y[i] + q) / 2
		if mn[i] < 0.1 {
			mn[i] = 0.1
		}
	}
}

// vcov returns the inverse of the expected information matrix at the
// fitted means, stored row-major.
func (m *Model) vcov(mn []float64) ([]float64, error) {

	n := len(m.y)
	nvar := m.NumParams()

	lderiv := make([]float64, n)
	va := make([]float64, n)
	m.fam.link.Deriv(mn, lderiv)
	m.fam.vari.Var(mn, va)

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / (lderiv[i] * lderiv[i] * va[i])
	}

	xtx := make([]float64, nvar*nvar)
	for j1 := 0; j1 < nvar; j1++ {
		for j2 := 0; j2 <= j1; j2++ {
			var u float64
			for i := 0; i < n; i++ {
				u += m.xdat[j1][i] * m.xdat[j2][i] * w[i]
			}
			xtx[j1*nvar+j2] = u
			xtx[j2*nvar+j1] = u
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(nvar, nvar, xtx)); err != nil {
		return nil, fmt.Errorf("glm: information matrix is singular: %w", err)
	}

	vcov := make([]float64, nvar*nvar)
	for j1 := 0; j1 < nvar; j1++ {
		for j2 := 0; j2 < nvar; j2++ {
			vcov[j1*nvar+j2] = inv.At(j1, j2)
		}
	}

	return vcov, nil
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}
