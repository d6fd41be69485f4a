package driver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/stretchr/testify/require"
)

func partitions(n int) []dataset.Partition {
	out := make([]dataset.Partition, n)
	for i := range out {
		out[i] = dataset.Partition{
			Key:   []string{fmt.Sprintf("site-%02d", i)},
			Dates: []time.Time{time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
			C:     []float64{float64(i)},
		}
	}
	return out
}

func echo(_ context.Context, p dataset.Partition) (dataset.EstimateRow, error) {
	return dataset.EstimateRow{Key: p.Key, C0: p.C[0]}, nil
}

func TestRunKeepsOrderAndBijection(t *testing.T) {
	parts := partitions(40)
	for _, jobs := range []int{0, 1, 3, 64} {
		rows, err := Run(context.Background(), parts, jobs, echo)
		require.NoError(t, err)
		require.Len(t, rows, len(parts))
		for i, r := range rows {
			require.Equal(t, parts[i].Key, r.Key)
			require.Equal(t, float64(i), r.C0)
		}
	}
}

func TestRunRespectsLimit(t *testing.T) {
	var inflight, peak int32
	fn := func(ctx context.Context, p dataset.Partition) (dataset.EstimateRow, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return echo(ctx, p)
	}
	_, err := Run(context.Background(), partitions(20), 2, fn)
	require.NoError(t, err)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunFirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	fn := func(ctx context.Context, p dataset.Partition) (dataset.EstimateRow, error) {
		if p.Key[0] == "site-03" {
			return dataset.EstimateRow{}, boom
		}
		return echo(ctx, p)
	}
	rows, err := Run(context.Background(), partitions(10), 1, fn)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "(site-03)")
	require.Nil(t, rows)
}

func TestRunDetectsMismatch(t *testing.T) {
	fn := func(_ context.Context, p dataset.Partition) (dataset.EstimateRow, error) {
		return dataset.EstimateRow{Key: []string{"other"}}, nil
	}
	_, err := Run(context.Background(), partitions(1), 1, fn)
	var pme *PartitionMismatchError
	require.ErrorAs(t, err, &pme)
	require.Equal(t, []string{"(site-00)"}, pme.Missing)
	require.Equal(t, []string{"(other)"}, pme.Extra)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, partitions(5), 1, echo)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunEmpty(t *testing.T) {
	rows, err := Run(context.Background(), nil, 0, echo)
	require.NoError(t, err)
	require.Empty(t, rows)
}
