package algos

import (
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/loss"
	"gonum.org/v1/gonum/stat"
)

// DefaultMinRectWidth is the default minimum active interval, in months.
const DefaultMinRectWidth = 3

// RectFit is the best double-threshold fit of a partition: C0 on
// [T0, T1), 0 elsewhere.
type RectFit struct {
	T0   time.Time
	C0   float64
	T1   time.Time
	Loss float64
}

// RectangleLossMinimization searches every pair (idx, jdx) with 1 <= idx and
// idx+minWidth <= jdx <= n-1. Inside [idx, jdx) the residual is c minus its
// mean, outside it is c itself. The first pair reaching the minimum mean
// loss wins, idx ascending then jdx ascending. ok is false when the series
// is too short for any pair.
func RectangleLossMinimization(dates []time.Time, c []float64, l loss.Function, minWidth int) (fit RectFit, ok bool) {
	n := len(c)
	if len(dates) != n {
		panic("algos: rectangle search needs one date per value")
	}
	if minWidth <= 0 {
		minWidth = DefaultMinRectWidth
	}
	// out[k] = sum ℓ(c[i]) for i < k; outside loss = out[idx] + out[n] - out[jdx]
	out := make([]float64, n+1)
	for i, v := range c {
		out[i+1] = out[i] + l.Point(v)
	}

	fn := float64(n)
	for idx := 1; idx+minWidth <= n-1; idx++ {
		// Welford state over [idx, jdx)
		var cnt int
		var mean, m2 float64
		push := func(v float64) {
			cnt++
			delta := v - mean
			mean += delta / float64(cnt)
			m2 += delta * (v - mean)
		}
		for i := idx; i < idx+minWidth; i++ {
			push(c[i])
		}
		for jdx := idx + minWidth; jdx <= n-1; jdx++ {
			if jdx > idx+minWidth {
				push(c[jdx-1])
			}
			var inside float64
			if l == loss.L2 {
				inside = m2
			} else {
				for _, v := range c[idx:jdx] {
					inside += l.Point(v - mean)
				}
			}
			total := (out[idx] + inside + out[n] - out[jdx]) / fn
			if !ok || total < fit.Loss {
				fit = RectFit{T0: dates[idx], C0: mean, T1: dates[jdx], Loss: total}
				ok = true
			}
		}
	}
	return fit, ok
}

// RectangleLoss evaluates the rectangle objective for the pair (idx, jdx)
// directly.
func RectangleLoss(c []float64, idx, jdx int, l loss.Function) float64 {
	y0 := stat.Mean(c[idx:jdx], nil)
	res := make([]float64, len(c))
	for i, v := range c {
		if i >= idx && i < jdx {
			res[i] = v - y0
		} else {
			res[i] = v
		}
	}
	return l.Mean(res)
}
