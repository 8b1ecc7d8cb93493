package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
)

// reservationColumns is the shared projection for reservation queries.
const reservationColumns = `id, slot_id, requester_name, requester_contact, requester_phone,
	status, failure_reason, created_at, confirmed_at, failed_at`

// ReservationRepo provides data access for reservations.  Status
// transitions are written exclusively through the Tx methods below so
// that they always happen under the row locks taken by the service
// layer; there is deliberately no free-form "update status" method.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// scanReservation scans one row of reservationColumns into a model.Reservation.
func scanReservation(row interface{ Scan(...any) error }, res *model.Reservation) error {
	var phone, reason sql.NullString
	var confirmedAt, failedAt sql.NullTime
	err := row.Scan(
		&res.ID, &res.SlotID, &res.RequesterName, &res.RequesterContact, &phone,
		&res.Status, &reason, &res.CreatedAt, &confirmedAt, &failedAt,
	)
	if err != nil {
		return err
	}
	if phone.Valid {
		p := phone.String
		res.RequesterPhone = &p
	}
	if reason.Valid {
		fr := reason.String
		res.FailureReason = &fr
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		res.ConfirmedAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		res.FailedAt = &t
	}
	return nil
}

// CreateTx inserts a new reservation in status PENDING within the scope
// of an existing transaction.  It populates the generated ID and the
// DB-default created_at on the provided struct.  The caller must commit
// or roll back the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (slot_id, requester_name, requester_contact, requester_phone, status)
	           VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.SlotID, res.RequesterName, res.RequesterContact, res.RequesterPhone, model.StatusPending)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	sel := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	return scanReservation(tx.QueryRowContext(ctx, sel, res.ID), res)
}

// GetByIDForUpdateTx reads a reservation under an exclusive row lock.
// Cancellation and the expiry sweep both lock the reservation row
// before conditioning on its status, so a late cancel can never race a
// reclaim of the same reservation.  Returns ErrReservationNotFound
// when no row matches.
func (r *ReservationRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	var res model.Reservation
	if err := scanReservation(tx.QueryRowContext(ctx, q, id), &res); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// ConfirmTx moves a reservation to CONFIRMED and stamps confirmed_at.
// The caller is responsible for having validated the transition.
func (r *ReservationRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	const q = `UPDATE reservations SET status = ?, confirmed_at = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, model.StatusConfirmed, at.UTC(), id)
	return err
}

// CancelTx moves a reservation to CANCELLED.  The caller is responsible
// for having validated the transition and for restoring the slot's
// availability when the previous status held the slot.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, model.StatusCancelled, id)
	return err
}

// FailBulkTx moves the given reservations to FAILED in one statement,
// stamping failed_at and the failure reason.  Used by the expiry
// sweeper.  Passing an empty slice has no effect and returns nil.
func (r *ReservationRepo) FailBulkTx(ctx context.Context, tx *sql.Tx, ids []uint64, reason string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(ids))
	args := []interface{}{model.StatusFailed, reason, at.UTC()}
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `UPDATE reservations SET status = ?, failure_reason = ?, failed_at = ? WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// StalePendingForUpdateTx returns every PENDING reservation created
// before the cutoff, locking the matched rows for the remainder of the
// transaction.  The lock guarantees that a concurrent cancel or a
// late-arriving confirmation of the same reservation waits until the
// sweep commits.
func (r *ReservationRepo) StalePendingForUpdateTx(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE status = ? AND created_at < ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, model.StatusPending, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stale []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, err
		}
		stale = append(stale, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stale, nil
}

// ReservationDetail joins a reservation with its slot and provider for
// display.  Returned by GetDetailByID and List.
type ReservationDetail struct {
	model.Reservation
	SlotDate     string `json:"slot_date"`
	StartTime    string `json:"start_time"`
	DurationMin  uint32 `json:"duration_min"`
	ProviderID   uint64 `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	Specialty    string `json:"specialty"`
}

const detailQuery = `SELECT r.id, r.slot_id, r.requester_name, r.requester_contact, r.requester_phone,
	       r.status, r.failure_reason, r.created_at, r.confirmed_at, r.failed_at,
	       DATE_FORMAT(s.slot_date, '%Y-%m-%d'), TIME_FORMAT(s.start_time, '%H:%i:%s'), s.duration_min,
	       p.id, p.name, p.specialty
	FROM reservations r
	JOIN slots s ON s.id = r.slot_id
	JOIN providers p ON p.id = s.provider_id`

func scanDetail(row interface{ Scan(...any) error }, d *ReservationDetail) error {
	var phone, reason sql.NullString
	var confirmedAt, failedAt sql.NullTime
	err := row.Scan(
		&d.ID, &d.SlotID, &d.RequesterName, &d.RequesterContact, &phone,
		&d.Status, &reason, &d.CreatedAt, &confirmedAt, &failedAt,
		&d.SlotDate, &d.StartTime, &d.DurationMin,
		&d.ProviderID, &d.ProviderName, &d.Specialty,
	)
	if err != nil {
		return err
	}
	if phone.Valid {
		p := phone.String
		d.RequesterPhone = &p
	}
	if reason.Valid {
		fr := reason.String
		d.FailureReason = &fr
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		d.ConfirmedAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		d.FailedAt = &t
	}
	return nil
}

// GetDetailByID returns a single reservation joined with slot and
// provider metadata.  No locking; reads committed state only.  Returns
// ErrReservationNotFound when no row matches.
func (r *ReservationRepo) GetDetailByID(ctx context.Context, id uint64) (*ReservationDetail, error) {
	q := detailQuery + ` WHERE r.id = ?`
	var d ReservationDetail
	if err := scanDetail(r.db.QueryRowContext(ctx, q, id), &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListFilter narrows the result of List.  Nil fields are ignored.
type ListFilter struct {
	Status     *model.Status
	ProviderID *uint64
	Date       *string // slot date, "2006-01-02"
}

// List returns reservations joined with slot and provider metadata,
// newest first.  When nothing matches, an empty slice is returned.
func (r *ReservationRepo) List(ctx context.Context, f ListFilter) ([]ReservationDetail, error) {
	q := detailQuery
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if f.Status != nil {
		conds = append(conds, "r.status = ?")
		args = append(args, *f.Status)
	}
	if f.ProviderID != nil {
		conds = append(conds, "p.id = ?")
		args = append(args, *f.ProviderID)
	}
	if f.Date != nil {
		conds = append(conds, "s.slot_date = ?")
		args = append(args, *f.Date)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		if err := scanDetail(rows, &d); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CountByStatus returns the number of reservations per status.  The
// counts are eventually consistent with respect to in-flight
// transactions, which is acceptable for the stats endpoint.
func (r *ReservationRepo) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	const q = `SELECT status, COUNT(*) FROM reservations GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[model.Status]int{
		model.StatusPending:   0,
		model.StatusConfirmed: 0,
		model.StatusFailed:    0,
		model.StatusCancelled: 0,
	}
	for rows.Next() {
		var st model.Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
