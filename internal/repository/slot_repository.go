package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
)

// slotColumns is the shared projection for slot queries.  slot_date and
// start_time are formatted in SQL so that scanning stays independent of
// the driver's DATE/TIME handling.
const slotColumns = `id, provider_id, DATE_FORMAT(slot_date, '%Y-%m-%d'), TIME_FORMAT(start_time, '%H:%i:%s'), duration_min, available, created_at`

// SlotRepo manages persistence for slots.  Mutations of the available
// flag happen exclusively inside transactions driven by the service
// layer, under the row lock taken by GetByIDForUpdateTx; the plain
// methods here are administrative CRUD and unlocked reads.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo with the given DB handle.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows the service layer to
// begin transactions spanning multiple repositories.
func (r *SlotRepo) DB() *sql.DB { return r.db }

// scanSlot scans one row of slotColumns into a model.Slot.
func scanSlot(row interface{ Scan(...any) error }, s *model.Slot) error {
	return row.Scan(&s.ID, &s.ProviderID, &s.SlotDate, &s.StartTime, &s.DurationMin, &s.Available, &s.CreatedAt)
}

// Create inserts a new slot for a provider and reads the row back to
// populate defaults (available=true, created_at).  The DB enforces
// uniqueness on (provider_id, slot_date, start_time); duplicate key
// errors are returned unwrapped so callers can detect error 1062.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
	const q = `INSERT INTO slots (provider_id, slot_date, start_time, duration_min) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.ProviderID, s.SlotDate, s.StartTime, s.DurationMin)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	sel := `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	return scanSlot(r.db.QueryRowContext(ctx, sel, s.ID), s)
}

// GetByID retrieves a slot without locking.  It returns ErrSlotNotFound
// when no row matches.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	var s model.Slot
	if err := scanSlot(r.db.QueryRowContext(ctx, q, id), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByIDForUpdateTx reads a slot under an exclusive row lock inside
// the provided transaction.  Concurrent claimants of the same slot
// block here until the holding transaction commits or rolls back; this
// is the serialization point that prevents double booking.  It returns
// ErrSlotNotFound when no row matches.
func (r *SlotRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots WHERE id = ? FOR UPDATE`
	var s model.Slot
	if err := scanSlot(tx.QueryRowContext(ctx, q, id), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// SetAvailabilityTx flips the available flag of a single slot within
// the provided transaction.  Callers must hold the row lock obtained
// via GetByIDForUpdateTx before conditioning on the previous value.
func (r *SlotRepo) SetAvailabilityTx(ctx context.Context, tx *sql.Tx, id uint64, available bool) error {
	const q = `UPDATE slots SET available = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, available, id)
	return err
}

// RestoreAvailabilityBulkTx marks the given slots available again in a
// single statement.  Used by the expiry sweeper after failing a batch
// of stale reservations.  Passing an empty slice has no effect.
func (r *SlotRepo) RestoreAvailabilityBulkTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `UPDATE slots SET available = 1 WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// ListByProvider returns all slots of a provider ordered by date and
// time.  When none exist, an empty slice is returned.
func (r *SlotRepo) ListByProvider(ctx context.Context, providerID uint64) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots WHERE provider_id = ? ORDER BY slot_date, start_time`
	rows, err := r.db.QueryContext(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

// ListOpen returns available slots whose scheduled time lies in the
// future, optionally filtered by provider and date.  Results are
// ordered chronologically.  Reads committed state only; the availability
// observed here is advisory and is re-checked under lock on claim.
func (r *SlotRepo) ListOpen(ctx context.Context, providerID *uint64, date *string) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots
	      WHERE available = 1 AND TIMESTAMP(slot_date, start_time) > UTC_TIMESTAMP()`
	args := make([]interface{}, 0, 2)
	if providerID != nil {
		q += ` AND provider_id = ?`
		args = append(args, *providerID)
	}
	if date != nil {
		q += ` AND slot_date = ?`
		args = append(args, *date)
	}
	q += ` ORDER BY slot_date, start_time`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

func collectSlots(rows *sql.Rows) ([]model.Slot, error) {
	items := make([]model.Slot, 0)
	for rows.Next() {
		var s model.Slot
		if err := scanSlot(rows, &s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a slot.  The whole check-and-delete runs in one
// transaction: the slot row is locked first so a concurrent claim
// cannot slip in between the reservation check and the delete.  It
// returns ErrSlotNotFound when the slot does not exist and ErrConflict
// when any reservation still references it; reservation rows are kept
// for audit and must never be orphaned.
func (r *SlotRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := r.GetByIDForUpdateTx(ctx, tx, id); err != nil {
		return err
	}
	var active int
	const cnt = `SELECT COUNT(*) FROM reservations WHERE slot_id = ?`
	if err := tx.QueryRowContext(ctx, cnt, id).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
