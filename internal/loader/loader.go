// Package loader owns the in-memory model handle and its hot-swap policy:
// a stat-based staleness check against the artifact file's mtime, so the
// trainer can replace the model without an API restart.
package loader

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/artifact"
	"github.com/realweather/forecast-service/internal/observability"
)

// ErrModelUnavailable is returned when no model has ever been loaded and the
// artifact cannot be loaded now.
var ErrModelUnavailable = errors.New("model unavailable")

// Loader caches the deserialized model together with the artifact mtime it
// was loaded from. All state is guarded by one mutex: the stat, the compare,
// the load, and the swap happen as a unit, so concurrent callers never see a
// partially loaded model or a torn (handle, mtime) pair.
type Loader struct {
	mu     sync.Mutex
	path   string
	model  *artifact.Model
	mtime  time.Time
	logger *zap.Logger
}

// New creates a Loader watching the artifact at path. No load happens until
// the first Get, so the API can start before the trainer has ever run.
func New(path string, logger *zap.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Get returns a ready-to-use model handle, reloading the artifact when its
// mtime differs from the cached one. On stat or load failure the previous
// handle is retained and returned; ErrModelUnavailable is returned only when
// there is no previous handle to fall back to.
//
// mtimes are compared with Equal rather than ordered: a restored older
// artifact is still a change worth picking up. Two trainer writes within one
// mtime resolution tick can be missed; with nightly retraining the next write
// always lands in a later tick.
func (l *Loader) Get() (*artifact.Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Stat(l.path)
	if err != nil {
		if l.model != nil {
			observability.ModelLoadErrorsTotal.WithLabelValues("stat").Inc()
			if l.logger != nil {
				l.logger.Warn("artifact stat failed, serving cached model",
					zap.String("path", l.path), zap.Error(err))
			}
			return l.model, nil
		}
		observability.ModelUnavailableTotal.Inc()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrModelUnavailable, l.path, err)
	}

	mtime := info.ModTime()
	if l.model != nil && mtime.Equal(l.mtime) {
		return l.model, nil
	}

	start := time.Now()
	m, err := artifact.Load(l.path)
	observability.ModelLoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if l.model != nil {
			observability.ModelLoadErrorsTotal.WithLabelValues("deserialize").Inc()
			if l.logger != nil {
				l.logger.Warn("artifact load failed, serving cached model",
					zap.String("path", l.path), zap.Error(err))
			}
			return l.model, nil
		}
		observability.ModelLoadErrorsTotal.WithLabelValues("deserialize").Inc()
		observability.ModelUnavailableTotal.Inc()
		return nil, fmt.Errorf("%w: load %s: %v", ErrModelUnavailable, l.path, err)
	}

	// Swap handle and mtime together, only after a successful load.
	l.model = m
	l.mtime = mtime
	observability.ModelReloadsTotal.Inc()
	observability.ModelTrainedAtTimestamp.Set(float64(m.TrainedAt.Unix()))
	if l.logger != nil {
		l.logger.Info("model loaded",
			zap.String("path", l.path),
			zap.Time("artifact_mtime", mtime),
			zap.Time("trained_at", m.TrainedAt),
			zap.Int("rows", m.Rows))
	}
	return m, nil
}
