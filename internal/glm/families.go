package glm

import "math"

// FamilyType identifies a GLM family.
type FamilyType uint8

const (
	PoissonFamily FamilyType = iota
	NegBinomFamily
)

// LogLikeFunc evaluates the exact log-likelihood for a GLM given the
// observed responses and fitted means.  Normalizing constants are
// included so that likelihoods are directly comparable across
// families and models.
type LogLikeFunc func(y, mn []float64) float64

// DevianceFunc evaluates the deviance for a GLM given the observed
// responses and fitted means.
type DevianceFunc func(y, mn []float64) float64

// Family represents a generalized linear model family.  A family
// bundles the log-likelihood and deviance for a distribution with the
// link and variance functions used to fit it.
type Family struct {

	// The name of the family
	Name string

	// The numeric code for the family
	TypeCode FamilyType

	// The log-likelihood function for the family
	LogLike LogLikeFunc

	// The deviance function for the family
	Deviance DevianceFunc

	// The link in use by the family
	link *Link

	// The variance function implied by the family
	vari *Variance

	// Negative binomial dispersion parameter; zero for Poisson
	alpha float64
}

// Link returns the link function used by the family.
func (fam *Family) Link() *Link {
	return fam.link
}

// Variance returns the variance function implied by the family.
func (fam *Family) Variance() *Variance {
	return fam.vari
}

// Alpha returns the negative binomial dispersion parameter.  It is
// zero for the Poisson family.
func (fam *Family) Alpha() float64 {
	return fam.alpha
}

// NewPoissonFamily returns a Poisson family with the log link.
func NewPoissonFamily() *Family {
	return &Family{
		Name:     "Poisson",
		TypeCode: PoissonFamily,
		LogLike:  poissonLogLike,
		Deviance: poissonDeviance,
		link:     LogLink(),
		vari:     NewPoissonVariance(),
	}
}

func poissonLogLike(y, mn []float64) float64 {
	var ll float64
	for i := range y {
		ll += y[i]*math.Log(mn[i]) - mn[i] - lgamma(y[i]+1)
	}
	return ll
}

func poissonDeviance(y, mn []float64) float64 {
	var dev float64
	for i := range y {
		if y[i] > 0 {
			dev += 2 * (y[i]*math.Log(y[i]/mn[i]) - (y[i] - mn[i]))
		} else {
			dev += 2 * mn[i]
		}
	}
	return dev
}

// NewNegBinomFamily returns a negative binomial family with the log
// link, parameterized so that an observation with mean m has variance
// m + alpha*m^2.  Alpha is the reciprocal of the size parameter in
// the size/mu convention.
func NewNegBinomFamily(alpha float64) *Family {

	loglike := func(y, mn []float64) float64 {

		var ll float64
		c3 := lgamma(1 / alpha)

		for i := range y {
			am := alpha * mn[i]
			c := lgamma(y[i]+1/alpha) - lgamma(y[i]+1) - c3

			v := y[i] * math.Log(am/(1+am))
			v -= math.Log(1+am) / alpha

			ll += v + c
		}

		return ll
	}

	deviance := func(y, mn []float64) float64 {

		var dev float64

		for i := range y {
			if y[i] > 0 {
				z1 := y[i] * math.Log(y[i]/mn[i])
				z2 := (y[i] + 1/alpha) * math.Log((1+alpha*y[i])/(1+alpha*mn[i]))
				dev += 2 * (z1 - z2)
			} else {
				dev += 2 * math.Log(1+alpha*mn[i]) / alpha
			}
		}

		return dev
	}

	return &Family{
		Name:     "NegBinom",
		TypeCode: NegBinomFamily,
		LogLike:  loglike,
		Deviance: deviance,
		link:     LogLink(),
		vari:     NewNegBinomVariance(alpha),
		alpha:    alpha,
	}
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
