package recovery

import (
	"context"
	"time"

	"github.com/sandevgo/mnemo/pkg/log"
)

const (
	DefaultCleanInterval = 24 * time.Hour
	DefaultBackupMaxAge  = 7 * 24 * time.Hour
)

// BackupCleaner removes aged backup files on a fixed cadence.
type BackupCleaner struct {
	coordinator *Coordinator
	interval    time.Duration
	maxAge      time.Duration
}

func NewBackupCleaner(coordinator *Coordinator, interval, maxAge time.Duration) *BackupCleaner {
	if interval <= 0 {
		interval = DefaultCleanInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultBackupMaxAge
	}
	return &BackupCleaner{
		coordinator: coordinator,
		interval:    interval,
		maxAge:      maxAge,
	}
}

func (b *BackupCleaner) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx).With().Str("component", "backup_cleaner").Logger()
	logger.Info().Msg("starting backup cleaner")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down backup cleaner")
			return nil
		case <-ticker.C:
			if removed := b.coordinator.CleanupOldBackups(ctx, b.maxAge); removed > 0 {
				logger.Info().Int("removed", removed).Msg("removed aged backups")
			}
		}
	}
}

func (b *BackupCleaner) Shutdown(ctx context.Context) error {
	return nil
}
