package glm

// Variance represents a GLM variance function, giving the variance of
// an observation as a function of its mean.
type Variance struct {
	Name  string
	Var   VecFunc
	Deriv VecFunc
}

// NewPoissonVariance returns the Poisson variance function, for which
// the variance equals the mean.
func NewPoissonVariance() *Variance {
	return &poissonVariance
}

var poissonVariance = Variance{
	Name:  "Poisson",
	Var:   poissonVar,
	Deriv: poissonVarDeriv,
}

func poissonVar(mn, v []float64) {
	copy(v, mn)
}

func poissonVarDeriv(mn, v []float64) {
	for i := range v {
		v[i] = 1
	}
}

// NewNegBinomVariance returns a variance function for the negative
// binomial family, using the given parameter alpha to determine the
// mean/variance relationship.  The variance for mean m is
// m + alpha*m^2.
func NewNegBinomVariance(alpha float64) *Variance {

	vaf := func(mn, v []float64) {
		for i, m := range mn {
			v[i] = m + alpha*m*m
		}
	}

	vad := func(mn, v []float64) {
		for i, m := range mn {
			v[i] = 1 + 2*alpha*m
		}
	}

	return &Variance{
		Name:  "NegBinom",
		Var:   vaf,
		Deriv: vad,
	}
}
