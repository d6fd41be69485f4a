package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	res := []float64{-2, -0.5, 0, 1.5}

	require.Equal(t, []float64{4, 0.25, 0, 2.25}, L2.Apply(res))
	require.Equal(t, []float64{2, 0.5, 0, 1.5}, L1.Apply(res))

	// input untouched
	require.Equal(t, []float64{-2, -0.5, 0, 1.5}, res)
}

func TestApplyEmpty(t *testing.T) {
	require.Empty(t, L2.Apply(nil))
	require.Empty(t, L1.Apply([]float64{}))
	require.True(t, math.IsNaN(L2.Mean(nil)))
}

func TestMean(t *testing.T) {
	require.InDelta(t, 2.0, L2.Mean([]float64{1, -1, 2, 0}), 1e-12)
	require.InDelta(t, 1.0, L1.Mean([]float64{1, -1, 2, 0}), 1e-12)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Function
		wantErr bool
	}{
		{"l2", L2, false},
		{"L1", L1, false},
		{" l1 ", L1, false},
		{"", L2, false},
		{"huber", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}
