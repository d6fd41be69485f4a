package algos

import (
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/utils"
)

// DefaultQuantile is the quantile used by StepQuantile when none is given.
const DefaultQuantile = 0.8

// QuantileFit is the search-free step estimate of a partition. T0 is nil
// when no month rises above C0.
type QuantileFit struct {
	T0 *time.Time
	C0 float64
}

// StepQuantile sets C0 to the q-quantile of c and T0 to the first month
// whose value is strictly above C0.
func StepQuantile(dates []time.Time, c []float64, q float64) QuantileFit {
	if len(dates) != len(c) {
		panic("algos: quantile estimator needs one date per value")
	}
	fit := QuantileFit{C0: utils.Quantile(c, q)}
	for i, v := range c {
		if v > fit.C0 {
			t := dates[i]
			fit.T0 = &t
			break
		}
	}
	return fit
}
