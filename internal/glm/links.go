package glm

import "math"

// VecFunc evaluates a function elementwise, reading from its first
// argument and writing to its second.  Both slices must have the same
// length.
type VecFunc func([]float64, []float64)

// Link specifies a GLM link function.
type Link struct {
	Name string

	// Link maps the mean value to the linear predictor.
	Link VecFunc

	// InvLink maps the linear predictor to the mean value.
	InvLink VecFunc

	// Deriv is the derivative of the link function.
	Deriv VecFunc

	// Deriv2 is the second derivative of the link function.
	Deriv2 VecFunc
}

// LogLink returns the log link, the canonical link for count models.
func LogLink() *Link {
	return &logLink
}

var logLink = Link{
	Name:    "Log",
	Link:    logFunc,
	InvLink: expFunc,
	Deriv:   logDerivFunc,
	Deriv2:  logDeriv2Func,
}

func logFunc(x, y []float64) {
	for i := range x {
		y[i] = math.Log(x[i])
	}
}

func expFunc(x, y []float64) {
	for i := range x {
		y[i] = math.Exp(x[i])
	}
}

func logDerivFunc(x, y []float64) {
	for i := range x {
		y[i] = 1 / x[i]
	}
}

func logDeriv2Func(x, y []float64) {
	for i := range x {
		y[i] = -1 / (x[i] * x[i])
	}
}
