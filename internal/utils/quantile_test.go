package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	vals := []float64{0.9, 0.1, 0.9, 0.1, 0.9, 0.1}
	require.InDelta(t, 0.9, Quantile(vals, 0.8), 1e-12)
	require.InDelta(t, 0.5, Quantile(vals, 0.5), 1e-12)
	require.Equal(t, 0.1, Quantile(vals, 0))
	require.Equal(t, 0.9, Quantile(vals, 1))
	// caller slice keeps its order
	require.Equal(t, []float64{0.9, 0.1, 0.9, 0.1, 0.9, 0.1}, vals)

	// numpy: np.quantile([1, 2, 3, 4], 0.99) == 3.97
	require.InDelta(t, 3.97, Quantile([]float64{4, 3, 2, 1}, 0.99), 1e-12)
	require.True(t, math.IsNaN(Quantile(nil, 0.5)))
}
