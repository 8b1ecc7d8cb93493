package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
	"github.com/iliyamo/clinic-slot-reservation/internal/repository"
)

// Requester identifies the person claiming a slot.
type Requester struct {
	Name    string
	Contact string
	Phone   *string
}

// ReservationManager owns every status transition triggered by direct
// user action.  Each mutating method runs one serializable transaction
// and takes the necessary row locks before reading the values it
// conditions on; locks are released only at commit or rollback.  The
// manager never retries on conflict — it surfaces ErrConflict and
// leaves retry policy to the caller.
type ReservationManager struct {
	db           *sql.DB
	slots        *repository.SlotRepo
	reservations *repository.ReservationRepo
	log          *slog.Logger
}

// NewReservationManager constructs a ReservationManager.  All
// dependencies must be non-nil.
func NewReservationManager(db *sql.DB, slots *repository.SlotRepo, reservations *repository.ReservationRepo, log *slog.Logger) *ReservationManager {
	if db == nil || slots == nil || reservations == nil {
		panic("nil dependency passed to NewReservationManager")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReservationManager{db: db, slots: slots, reservations: reservations, log: log}
}

// beginSerializable opens a transaction at the strongest isolation
// level the store offers.
func beginSerializable(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	return db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// retryable reports whether err is a store-level serialization or lock
// failure that left no partial writes and is safe to retry wholesale.
// MySQL signals these as error 1213 (deadlock, transaction rolled
// back) and 1205 (lock wait timeout).
func retryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}

// Create claims the slot and returns the confirmed reservation.
//
// Inside one serializable transaction it locks the slot row, then
// validates in order: the slot exists (ErrNotFound), is available
// (ErrConflict "slot unavailable"), and is scheduled strictly in the
// future (ErrInvalidState "past slot").  On success it inserts a
// PENDING reservation, flips the slot unavailable and promotes the
// reservation to CONFIRMED before committing — confirmation is
// synchronous; an asynchronous approval flow would stop after the
// PENDING insert without changing the sweep contract.  Either every
// one of those writes commits or none does.
func (m *ReservationManager) Create(ctx context.Context, slotID uint64, req Requester) (*model.Reservation, error) {
	tx, err := beginSerializable(ctx, m.db)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the slot row.  Concurrent claims on the same slot queue up
	// here; the winner commits before the next claimant gets to read
	// the availability flag.
	slot, err := m.slots.GetByIDForUpdateTx(ctx, tx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, fmt.Errorf("%w: slot %d", ErrNotFound, slotID)
		}
		if retryable(err) {
			return nil, fmt.Errorf("%w: retry", ErrConflict)
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if !slot.Available {
		return nil, fmt.Errorf("%w: slot unavailable", ErrConflict)
	}
	startsAt, err := slot.StartsAt()
	if err != nil {
		return nil, fmt.Errorf("parse slot schedule: %w", err)
	}
	if !startsAt.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: past slot", ErrInvalidState)
	}

	res := &model.Reservation{
		SlotID:           slot.ID,
		RequesterName:    req.Name,
		RequesterContact: req.Contact,
		RequesterPhone:   req.Phone,
	}
	if err := m.reservations.CreateTx(ctx, tx, res); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	if err := m.slots.SetAvailabilityTx(ctx, tx, slot.ID, false); err != nil {
		return nil, fmt.Errorf("mark slot unavailable: %w", err)
	}

	if !model.CanTransition(res.Status, model.StatusConfirmed) {
		return nil, fmt.Errorf("%w: cannot confirm %s reservation", ErrInvalidState, res.Status)
	}
	confirmedAt := time.Now().UTC()
	if err := m.reservations.ConfirmTx(ctx, tx, res.ID, confirmedAt); err != nil {
		return nil, fmt.Errorf("confirm reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if retryable(err) {
			return nil, fmt.Errorf("%w: retry", ErrConflict)
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true

	res.Status = model.StatusConfirmed
	res.ConfirmedAt = &confirmedAt
	m.log.Info("reservation confirmed",
		slog.Uint64("reservation_id", res.ID),
		slog.Uint64("slot_id", slot.ID),
		slog.String("requester", req.Name),
	)
	return res, nil
}

// Cancel terminates a reservation and returns its slot to the pool.
//
// The reservation row is locked before its status is read, so a cancel
// can never race the expiry sweep over the same reservation.  Fails
// with ErrNotFound when the reservation is absent and ErrInvalidState
// when it is already cancelled.  Cancelling a FAILED reservation
// succeeds as an acknowledgement; the slot is only restored when the
// previous status was actually holding it.
func (m *ReservationManager) Cancel(ctx context.Context, reservationID uint64) error {
	tx, err := beginSerializable(ctx, m.db)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := m.reservations.GetByIDForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return fmt.Errorf("%w: reservation %d", ErrNotFound, reservationID)
		}
		if retryable(err) {
			return fmt.Errorf("%w: retry", ErrConflict)
		}
		return fmt.Errorf("lock reservation: %w", err)
	}
	if res.Status == model.StatusCancelled {
		return fmt.Errorf("%w: already cancelled", ErrInvalidState)
	}
	if !model.CanTransition(res.Status, model.StatusCancelled) {
		return fmt.Errorf("%w: cannot cancel %s reservation", ErrInvalidState, res.Status)
	}
	if err := m.reservations.CancelTx(ctx, tx, res.ID); err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if res.Status.HoldsSlot() {
		// Lock the slot row under the same discipline as Create before
		// restoring availability.
		if _, err := m.slots.GetByIDForUpdateTx(ctx, tx, res.SlotID); err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}
		if err := m.slots.SetAvailabilityTx(ctx, tx, res.SlotID, true); err != nil {
			return fmt.Errorf("restore slot availability: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if retryable(err) {
			return fmt.Errorf("%w: retry", ErrConflict)
		}
		return fmt.Errorf("commit: %w", err)
	}
	committed = true

	m.log.Info("reservation cancelled",
		slog.Uint64("reservation_id", res.ID),
		slog.Uint64("slot_id", res.SlotID),
		slog.String("previous_status", string(res.Status)),
	)
	return nil
}

// GetByID returns one reservation joined with slot and provider
// metadata.  Reads committed state only.
func (m *ReservationManager) GetByID(ctx context.Context, id uint64) (*repository.ReservationDetail, error) {
	d, err := m.reservations.GetDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
		}
		return nil, err
	}
	return d, nil
}

// List returns reservations matching the filter, newest first.
func (m *ReservationManager) List(ctx context.Context, f repository.ListFilter) ([]repository.ReservationDetail, error) {
	return m.reservations.List(ctx, f)
}

// Stats returns the number of reservations per status.
func (m *ReservationManager) Stats(ctx context.Context) (map[model.Status]int, error) {
	return m.reservations.CountByStatus(ctx)
}
