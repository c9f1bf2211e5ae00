package vector

import (
	"context"
	"time"

	"github.com/sandevgo/mnemo/pkg/log"
)

const (
	DefaultSaveInterval = 24 * time.Hour
	DefaultRetention    = 30 * 24 * time.Hour
)

// Maintenance periodically persists the index and evicts entries idle
// past the retention horizon. Failures are logged and never propagate
// to request handling.
type Maintenance struct {
	index     *Index
	interval  time.Duration
	retention time.Duration
}

func NewMaintenance(index *Index, interval, retention time.Duration) *Maintenance {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Maintenance{
		index:     index,
		interval:  interval,
		retention: retention,
	}
}

func (m *Maintenance) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx).With().Str("component", "vector_maintenance").Logger()
	logger.Info().Msg("starting vector index maintenance")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down vector index maintenance")
			return nil
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// Shutdown persists the index one final time.
func (m *Maintenance) Shutdown(ctx context.Context) error {
	if err := m.index.Save(ctx); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("final vector index save failed")
	}
	return nil
}

func (m *Maintenance) sweep(ctx context.Context) {
	logger := log.FromCtx(ctx)

	if err := m.index.Save(ctx); err != nil {
		logger.Error().Err(err).Msg("vector index save failed")
	}

	if removed := m.index.Prune(time.Now().Add(-m.retention)); removed > 0 {
		logger.Info().Int("removed", removed).Msg("pruned stale vector entries")
	}
}
