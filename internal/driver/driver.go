// Package driver fans a per-partition fit out over a bounded worker pool.
package driver

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"golang.org/x/sync/errgroup"
)

// Func fits a single partition.
type Func func(ctx context.Context, part dataset.Partition) (dataset.EstimateRow, error)

// PartitionMismatchError reports a result set that is not in one-to-one
// correspondence with the input partitions.
type PartitionMismatchError struct {
	Missing []string
	Extra   []string
}

func (e *PartitionMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ", "))
	}
	return "partition results do not match input: " + strings.Join(parts, "; ")
}

// Workers resolves a jobs setting to a worker count.
func Workers(jobs int) int {
	if jobs <= 0 {
		return runtime.NumCPU()
	}
	return jobs
}

// Run calls fn once per partition with at most jobs calls in flight
// (jobs <= 0 means one per CPU). Results keep the order of parts. The first
// error cancels the remaining calls and is returned alone.
func Run(ctx context.Context, parts []dataset.Partition, jobs int, fn Func) ([]dataset.EstimateRow, error) {
	out := make([]dataset.EstimateRow, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(jobs))
	for i := range parts {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := fn(gctx, parts[i])
			if err != nil {
				return fmt.Errorf("fit partition %s: %w", dataset.FormatKey(parts[i].Key), err)
			}
			out[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := checkBijection(parts, out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkBijection(parts []dataset.Partition, rows []dataset.EstimateRow) error {
	want := make(map[string]int, len(parts))
	for _, p := range parts {
		want[dataset.KeyString(p.Key)]++
	}
	var extra []string
	for _, r := range rows {
		k := dataset.KeyString(r.Key)
		if want[k] == 0 {
			extra = append(extra, dataset.FormatKey(r.Key))
			continue
		}
		want[k]--
	}
	var missing []string
	for _, p := range parts {
		k := dataset.KeyString(p.Key)
		if want[k] > 0 {
			missing = append(missing, dataset.FormatKey(p.Key))
			want[k]--
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return &PartitionMismatchError{Missing: missing, Extra: extra}
	}
	return nil
}
