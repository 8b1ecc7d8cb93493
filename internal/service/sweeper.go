package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/clinic-slot-reservation/internal/repository"
)

// Sweeper reclaims slots whose reservation was left in PENDING past a
// deadline.  Because Create confirms synchronously inside the claiming
// transaction, a durable PENDING row only appears after a crash between
// the insert and the confirmation — or under a future asynchronous
// confirmation flow.  The sweeper is the sole writer of the
// PENDING→FAILED edge.
type Sweeper struct {
	db           *sql.DB
	slots        *repository.SlotRepo
	reservations *repository.ReservationRepo
	log          *slog.Logger
}

// NewSweeper constructs a Sweeper.  All dependencies must be non-nil.
func NewSweeper(db *sql.DB, slots *repository.SlotRepo, reservations *repository.ReservationRepo, log *slog.Logger) *Sweeper {
	if db == nil || slots == nil || reservations == nil {
		panic("nil dependency passed to NewSweeper")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{db: db, slots: slots, reservations: reservations, log: log}
}

// Sweep fails every PENDING reservation older than the timeout and
// returns the affected slots to the pool, all in one serializable
// transaction with a single commit for the whole batch.  The stale
// rows are locked before their status is read — the same discipline as
// Create and Cancel — so the sweep cannot race a late-arriving
// confirmation or cancellation of the same reservation.  Running it
// again with no new stale rows is a no-op.  It returns the number of
// reclaimed reservations.
func (s *Sweeper) Sweep(ctx context.Context, timeout time.Duration) (int, error) {
	tx, err := beginSerializable(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cutoff := time.Now().UTC().Add(-timeout)
	stale, err := s.reservations.StalePendingForUpdateTx(ctx, tx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select stale reservations: %w", err)
	}
	if len(stale) == 0 {
		// Nothing to reclaim; commit the empty transaction so the
		// locks (none) and snapshot are released promptly.
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit: %w", err)
		}
		committed = true
		return 0, nil
	}

	ids := make([]uint64, 0, len(stale))
	slotSet := make(map[uint64]struct{}, len(stale))
	slotIDs := make([]uint64, 0, len(stale))
	for _, res := range stale {
		ids = append(ids, res.ID)
		if _, ok := slotSet[res.SlotID]; !ok {
			slotSet[res.SlotID] = struct{}{}
			slotIDs = append(slotIDs, res.SlotID)
		}
	}

	failedAt := time.Now().UTC()
	if err := s.reservations.FailBulkTx(ctx, tx, ids, "timeout", failedAt); err != nil {
		return 0, fmt.Errorf("fail stale reservations: %w", err)
	}
	if err := s.slots.RestoreAvailabilityBulkTx(ctx, tx, slotIDs); err != nil {
		return 0, fmt.Errorf("restore slot availability: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true

	s.log.Info("sweep reclaimed stale reservations",
		slog.Int("reclaimed", len(ids)),
		slog.Int("slots_released", len(slotIDs)),
	)
	return len(ids), nil
}

// Run executes Sweep on a fixed interval until the context is
// cancelled.  A failed sweep is logged and retried on the next tick;
// it never takes the process down.
func (s *Sweeper) Run(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Info("expiry sweeper started",
		slog.Duration("interval", interval),
		slog.Duration("timeout", timeout),
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, timeout); err != nil {
				s.log.Error("sweep failed", slog.Any("error", err))
			}
		}
	}
}
