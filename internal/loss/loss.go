package loss

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Function is an elementwise residual transform used to score a fit.
type Function string

const (
	// L1 is the absolute error |r|.
	L1 Function = "l1"
	// L2 is the squared error r².
	L2 Function = "l2"
)

// Default is the loss used when none is configured.
const Default = L2

// Parse resolves a loss name such as "l2" or "L1".
func Parse(name string) (Function, error) {
	switch Function(strings.ToLower(strings.TrimSpace(name))) {
	case L1:
		return L1, nil
	case L2, "":
		return L2, nil
	default:
		return "", fmt.Errorf("unknown loss function %q (use l1 or l2)", name)
	}
}

// Point applies the transform to a single residual.
func (f Function) Point(r float64) float64 {
	switch f {
	case L1:
		return math.Abs(r)
	default:
		return r * r
	}
}

// Apply transforms every residual and returns a new slice of the same length.
func (f Function) Apply(residual []float64) []float64 {
	out := make([]float64, len(residual))
	for i, r := range residual {
		out[i] = f.Point(r)
	}
	return out
}

// Mean returns mean(f(residual)), or NaN for an empty residual.
func (f Function) Mean(residual []float64) float64 {
	if len(residual) == 0 {
		return math.NaN()
	}
	return floats.Sum(f.Apply(residual)) / float64(len(residual))
}

func (f Function) String() string { return string(f) }
