package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Backup snapshots the database on a fixed interval and prunes old copies.
// Bookings are the system of record for paid meetings, so snapshots run even
// on single-node deployments.
type Backup struct {
	db        *DB
	dir       string
	interval  time.Duration
	retention time.Duration
	log       zerolog.Logger
}

func NewBackup(db *DB, dir string, interval time.Duration, retentionDays int, log zerolog.Logger) *Backup {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Backup{
		db:        db,
		dir:       dir,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log,
	}
}

// Run takes a snapshot immediately, then on every tick until the context is
// canceled.
func (b *Backup) Run(ctx context.Context) {
	if err := b.Snapshot(ctx); err != nil {
		b.log.Error().Err(err).Msg("initial backup failed")
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Snapshot(ctx); err != nil {
				b.log.Error().Err(err).Msg("scheduled backup failed")
			}
			b.prune()
		}
	}
}

// Snapshot writes a consistent copy via VACUUM INTO, which works against a
// live database without blocking readers.
func (b *Backup) Snapshot(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("bookings_%s.db", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(b.dir, name)

	if _, err := b.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}

	b.log.Info().Str("path", path).Msg("database backup written")
	return nil
}

func (b *Backup) prune() {
	if b.retention <= 0 {
		return
	}

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		b.log.Error().Err(err).Msg("read backup directory failed")
		return
	}

	cutoff := time.Now().Add(-b.retention)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			b.log.Info().Str("file", entry.Name()).Msg("pruning old backup")
			_ = os.Remove(filepath.Join(b.dir, entry.Name()))
		}
	}
}
