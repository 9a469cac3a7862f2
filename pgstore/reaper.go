package pgstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/talatkuyuk/authtokens/store"
)

// Reaper periodically deletes expired rows. Best-effort housekeeping:
// lookups re-check expiry themselves, so a missed sweep costs disk, not
// correctness.
type Reaper struct {
	db       DBTX
	interval time.Duration
}

// NewReaper constructs a reaper over db. Interval defaults to one hour.
func NewReaper(db DBTX, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reaper{db: db, interval: interval}
}

// Reap deletes rows whose expiry lies more than two minutes in the past and
// returns the count. The grace keeps rows visible while an expired token can
// still pass JWT verification leeway, so lookups answer "expired" instead of
// "not found" in that window.
func (r *Reaper) Reap(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM token_records WHERE expires_at <= now() - interval '2 minutes'`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return res.RowsAffected()
}

// Run sweeps on the configured interval until ctx is canceled. Intended to
// be launched in its own goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reap(ctx); err != nil && ctx.Err() == nil {
				log.Print("authtokens: token record sweep failed")
			}
		}
	}
}
