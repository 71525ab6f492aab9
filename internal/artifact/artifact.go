// Package artifact owns the serialized model: fitting, prediction, and the
// on-disk format the trainer writes and the hot-swap loader reads.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotEnoughData is returned by Fit when too few rows carry a target.
	ErrNotEnoughData = errors.New("not enough training data")

	// ErrCorrupt is returned by Load when the artifact fails validation.
	ErrCorrupt = errors.New("corrupt model artifact")
)

// Model is a linear regression over the engineered weather features.
// The trainer replaces the artifact wholesale; it is never edited in place.
type Model struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Features     []string  `json:"features"`
	TrainedAt    time.Time `json:"trained_at"`
	Rows         int       `json:"rows"`
}

// Fit solves ordinary least squares for y = intercept + x·coefficients.
// x is row-major; every row must have the same width. minRows guards against
// fitting on a nearly empty table.
func Fit(x [][]float64, y []float64, featureNames []string, minRows int) (*Model, error) {
	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("row count mismatch: %d inputs, %d targets", n, len(y))
	}
	if minRows < 1 {
		minRows = 1
	}
	if n < minRows {
		return nil, fmt.Errorf("%w: %d rows, need %d", ErrNotEnoughData, n, minRows)
	}
	p := len(featureNames)
	if p == 0 {
		return nil, fmt.Errorf("feature names required")
	}

	// Design matrix with a leading ones column for the intercept.
	a := mat.NewDense(n, p+1, nil)
	b := mat.NewDense(n, 1, nil)
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), p)
		}
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
		b.Set(i, 0, y[i])
	}

	var qr mat.QR
	qr.Factorize(a)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, b); err != nil {
		return nil, fmt.Errorf("solve least squares: %w", err)
	}

	coefs := make([]float64, p)
	for j := 0; j < p; j++ {
		coefs[j] = beta.At(j+1, 0)
	}
	return &Model{
		Intercept:    beta.At(0, 0),
		Coefficients: coefs,
		Features:     append([]string(nil), featureNames...),
		TrainedAt:    time.Now().UTC(),
		Rows:         n,
	}, nil
}

// Predict evaluates the model on one feature vector.
func (m *Model) Predict(v []float64) (float64, error) {
	if len(v) != len(m.Coefficients) {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(v), len(m.Coefficients))
	}
	out := m.Intercept
	for i, c := range m.Coefficients {
		out += c * v[i]
	}
	return out, nil
}

// Save writes the model to path atomically: the JSON lands in a temp file in
// the same directory and is renamed over the live path, so the loader never
// observes a half-written artifact. When keepVersions > 0 a timestamped copy
// is kept beside the live file and older copies beyond the limit are pruned.
func (m *Model) Save(path string, keepVersions int) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish artifact: %w", err)
	}

	if keepVersions > 0 {
		if err := os.WriteFile(versionPath(path, m.TrainedAt), data, 0o644); err != nil {
			return fmt.Errorf("write versioned artifact: %w", err)
		}
		if err := pruneVersions(path, keepVersions); err != nil {
			return fmt.Errorf("prune versioned artifacts: %w", err)
		}
	}
	return nil
}

// Load reads and validates the artifact at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(m.Features) == 0 || len(m.Coefficients) != len(m.Features) {
		return nil, fmt.Errorf("%w: %d coefficients for %d features", ErrCorrupt, len(m.Coefficients), len(m.Features))
	}
	return &m, nil
}

// versionPath returns the timestamped sibling path for a trained-at time,
// e.g. weather_model-20250601T120000Z.json.
func versionPath(path string, trainedAt time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "-" + trainedAt.UTC().Format("20060102T150405Z") + ext
}

// pruneVersions deletes timestamped copies beyond the newest keep.
func pruneVersions(path string, keep int) error {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	matches, err := filepath.Glob(base + "-*" + ext)
	if err != nil {
		return err
	}
	if len(matches) <= keep {
		return nil
	}
	// Timestamps sort lexically, oldest first.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-keep] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}
