package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/edsteva-cli/internal/dataset"
	"github.com/KaramelBytes/edsteva-cli/internal/utils"
	"github.com/klauspost/compress/zstd"
)

const (
	blobExt         = ".model.zst"
	snapshotVersion = 1
)

// Store persists fitted models as zstd-compressed JSON blobs under Dir.
type Store struct {
	Dir string
}

// Info describes a stored model without its estimates.
type Info struct {
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Index      []string  `json:"index"`
	Algorithm  Algorithm `json:"algorithm"`
	FitID      string    `json:"fit_id"`
	FittedAt   time.Time `json:"fitted_at"`
	Partitions int       `json:"partitions"`
	Size       int64     `json:"-"`
}

type snapshot struct {
	Version   int          `json:"version"`
	Name      string       `json:"name"`
	Kind      Kind         `json:"kind"`
	Index     []string     `json:"index"`
	Params    Params       `json:"params"`
	FitID     string       `json:"fit_id"`
	FittedAt  time.Time    `json:"fitted_at"`
	Skipped   [][]string   `json:"skipped,omitempty"`
	Estimates estimatesDTO `json:"estimates"`
	Cache     estimatesDTO `json:"cache"`
}

// estimatesDTO stores NaN levels as null, which JSON cannot encode directly.
type estimatesDTO struct {
	Coefficients []string `json:"coefficients"`
	Metrics      []string `json:"metrics"`
	Rows         []rowDTO `json:"rows"`
}

type rowDTO struct {
	Key     []string           `json:"key"`
	T0      *time.Time         `json:"t_0,omitempty"`
	C0      *float64           `json:"c_0"`
	T1      *time.Time         `json:"t_1,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

func toDTO(e *dataset.Estimates) estimatesDTO {
	out := estimatesDTO{Coefficients: e.Coefficients, Metrics: e.Metrics, Rows: make([]rowDTO, len(e.Rows))}
	for i, r := range e.Rows {
		d := rowDTO{Key: r.Key, T0: r.T0, T1: r.T1}
		if r.HasC0() {
			c0 := r.C0
			d.C0 = &c0
		}
		for k, v := range r.Metrics {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if d.Metrics == nil {
				d.Metrics = map[string]float64{}
			}
			d.Metrics[k] = v
		}
		out.Rows[i] = d
	}
	return out
}

func fromDTO(index []string, d estimatesDTO) *dataset.Estimates {
	out := &dataset.Estimates{
		Index:        append([]string(nil), index...),
		Coefficients: d.Coefficients,
		Metrics:      d.Metrics,
		Rows:         make([]dataset.EstimateRow, len(d.Rows)),
	}
	for i, r := range d.Rows {
		row := dataset.EstimateRow{Key: r.Key, T0: r.T0, T1: r.T1, C0: math.NaN(), Metrics: r.Metrics}
		if r.C0 != nil {
			row.C0 = *r.C0
		}
		out.Rows[i] = row
	}
	return out
}

// Path returns the blob location of the named model.
func (s *Store) Path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid model name %q", name)
	}
	return filepath.Join(s.Dir, name+blobExt), nil
}

// Save writes m under name, replacing any previous blob atomically.
func (s *Store) Save(name string, m *Model) error {
	if m.cache == nil {
		return ErrNotFitted
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	snap := snapshot{
		Version:   snapshotVersion,
		Name:      name,
		Kind:      m.Kind,
		Index:     m.Index,
		Params:    m.Params,
		FitID:     m.FitID,
		FittedAt:  m.FittedAt,
		Skipped:   m.Skipped,
		Estimates: toDTO(m.estimates),
		Cache:     toDTO(m.cache),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	blob := enc.EncodeAll(data, nil)
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	if err := utils.EnsureDir(s.Dir); err != nil {
		return fmt.Errorf("ensure model dir: %w", err)
	}
	return utils.SafeWriteFile(path, blob)
}

func (s *Store) read(name string) (*snapshot, int64, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, 0, err
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("model %q not found at %s: %w", name, path, err)
		}
		return nil, 0, fmt.Errorf("read model: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, 0, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	data, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("decompress model %q: %w", name, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, 0, fmt.Errorf("parse model %q: %w", name, err)
	}
	if snap.Version != snapshotVersion {
		return nil, 0, fmt.Errorf("model %q has unsupported format version %d", name, snap.Version)
	}
	return &snap, int64(len(blob)), nil
}

// Load reads the named model back. The result predicts and resets exactly
// like the model that was saved.
func (s *Store) Load(name string) (*Model, error) {
	snap, _, err := s.read(name)
	if err != nil {
		return nil, err
	}
	m, err := New(snap.Kind, snap.Index)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	m.Params = snap.Params
	m.FitID = snap.FitID
	m.FittedAt = snap.FittedAt
	m.Skipped = snap.Skipped
	m.estimates = fromDTO(snap.Index, snap.Estimates)
	m.cache = fromDTO(snap.Index, snap.Cache)
	return m, nil
}

// Delete removes the named model.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("model %q not found at %s: %w", name, path, err)
		}
		return fmt.Errorf("delete model: %w", err)
	}
	return nil
}

// List describes every stored model, sorted by name. A missing directory
// is an empty store.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read model dir: %w", err)
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), blobExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), blobExt)
		snap, size, err := s.read(name)
		if err != nil {
			return nil, err
		}
		out = append(out, Info{
			Name:       name,
			Kind:       snap.Kind,
			Index:      snap.Index,
			Algorithm:  snap.Params.Algorithm,
			FitID:      snap.FitID,
			FittedAt:   snap.FittedAt,
			Partitions: len(snap.Cache.Rows),
			Size:       size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
