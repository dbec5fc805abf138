package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// StorageGC reclaims Badger value-log space on a fixed interval. Badger does
// not run value-log GC on its own; without this the message log grows
// unbounded.
type StorageGC struct {
	DB       *badger.DB
	Log      *slog.Logger
	Interval time.Duration
}

func NewStorageGC(db *badger.DB, log *slog.Logger, interval time.Duration) *StorageGC {
	return &StorageGC{DB: db, Log: log, Interval: interval}
}

func (w *StorageGC) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Log.Debug("Stopping storage GC")
			return nil
		case <-ticker.C:
			// Rewrite value-log files with at least 50% garbage.
			err := w.DB.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				w.Log.Warn("value log GC failed", "error", err)
			}
		}
	}
}
