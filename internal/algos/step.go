package algos

import (
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/loss"
	"gonum.org/v1/gonum/stat"
)

// StepFit is the best single-threshold fit of a partition: 0 before T0,
// C0 from T0 on.
type StepFit struct {
	T0   time.Time
	C0   float64
	Loss float64
}

// StepLossMinimization tries every month as threshold and keeps the one
// minimizing mean(ℓ(residual)). Before the threshold the residual is c
// itself, from the threshold on it is c minus the mean of the tail. Ties go
// to the earliest threshold. dates and c must be non-empty, equal length and
// sorted by date.
func StepLossMinimization(dates []time.Time, c []float64, l loss.Function) StepFit {
	n := len(c)
	if n == 0 || len(dates) != n {
		panic("algos: step search needs a non-empty series with one date per value")
	}
	// head[k] = sum ℓ(c[i]) for i < k
	head := make([]float64, n+1)
	for i, v := range c {
		head[i+1] = head[i] + l.Point(v)
	}

	losses := make([]float64, n)
	means := make([]float64, n)
	if l == loss.L2 {
		// Welford over the tail, walking the threshold backwards.
		var cnt int
		var mean, m2 float64
		for k := n - 1; k >= 0; k-- {
			cnt++
			delta := c[k] - mean
			mean += delta / float64(cnt)
			m2 += delta * (c[k] - mean)
			means[k] = mean
			losses[k] = (head[k] + m2) / float64(n)
		}
	} else {
		for k := 0; k < n; k++ {
			y0 := stat.Mean(c[k:], nil)
			tail := 0.0
			for _, v := range c[k:] {
				tail += l.Point(v - y0)
			}
			means[k] = y0
			losses[k] = (head[k] + tail) / float64(n)
		}
	}

	best := 0
	for k := 1; k < n; k++ {
		if losses[k] < losses[best] {
			best = k
		}
	}
	return StepFit{T0: dates[best], C0: means[best], Loss: losses[best]}
}

// StepLoss evaluates the step objective for threshold index k directly.
// It is the reference the searches are checked against.
func StepLoss(c []float64, k int, l loss.Function) float64 {
	y0 := stat.Mean(c[k:], nil)
	res := make([]float64, len(c))
	for i, v := range c {
		if i < k {
			res[i] = v
		} else {
			res[i] = v - y0
		}
	}
	return l.Mean(res)
}
