package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
)

var (
	// ErrNotFitted is returned when estimates are needed before a successful fit.
	ErrNotFitted = errors.New("model is not fitted: run fit first")
	// ErrEmptyEstimates is returned when a fit produces no partition at all.
	ErrEmptyEstimates = errors.New("fit produced no estimates: predictor is empty for the selected window")
)

// UncoveredPartitionsError lists predictor partitions that have no estimate.
type UncoveredPartitionsError struct {
	Keys [][]string
}

func (e *UncoveredPartitionsError) Error() string {
	shown := make([]string, 0, len(e.Keys))
	for i, k := range e.Keys {
		if i == 5 {
			shown = append(shown, fmt.Sprintf("... %d more", len(e.Keys)-i))
			break
		}
		shown = append(shown, dataset.FormatKey(k))
	}
	return fmt.Sprintf("%d partition(s) have no estimate: %s", len(e.Keys), strings.Join(shown, ", "))
}

// UnsupportedError reports an algorithm the model kind cannot run.
type UnsupportedError struct {
	Kind      Kind
	Algorithm Algorithm
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("algorithm %s is not available for %s models", e.Algorithm, e.Kind)
}
