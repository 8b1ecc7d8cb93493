package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
)

// ProviderRepo manages persistence for providers.  Providers are the
// owning resource of slots; administrative CRUD only, no locking is
// required because provider rows are never touched by the reservation
// protocol.
type ProviderRepo struct {
	db *sql.DB
}

// NewProviderRepo constructs a ProviderRepo with the given DB handle.
func NewProviderRepo(db *sql.DB) *ProviderRepo { return &ProviderRepo{db: db} }

// Create inserts a new provider and assigns the generated ID back to
// the struct.  CreatedAt is populated from the DB default.
func (r *ProviderRepo) Create(ctx context.Context, p *model.Provider) error {
	const q = `INSERT INTO providers (name, specialty) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.Name, p.Specialty)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	// Query back the row to populate DB-default fields.
	const sel = `SELECT id, name, specialty, created_at FROM providers WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, p.ID).Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt)
}

// GetByID retrieves a provider by its ID.  It returns
// ErrProviderNotFound if there is no matching row.
func (r *ProviderRepo) GetByID(ctx context.Context, id uint64) (*model.Provider, error) {
	const q = `SELECT id, name, specialty, created_at FROM providers WHERE id = ?`
	var p model.Provider
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns all providers ordered by name.  When none exist, an
// empty slice is returned.
func (r *ProviderRepo) List(ctx context.Context) ([]model.Provider, error) {
	const q = `SELECT id, name, specialty, created_at FROM providers ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Provider, 0)
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update changes the name and specialty of a provider.  It returns
// ErrProviderNotFound when no row matched the ID.
func (r *ProviderRepo) Update(ctx context.Context, id uint64, name, specialty string) error {
	const q = `UPDATE providers SET name = ?, specialty = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, name, specialty, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is absent or the values were unchanged;
		// distinguish by probing for existence.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a provider.  It refuses with ErrConflict while the
// provider still owns slots, so that no slot is ever orphaned, and
// returns ErrProviderNotFound when the row does not exist.
func (r *ProviderRepo) Delete(ctx context.Context, id uint64) error {
	var slots int
	const cnt = `SELECT COUNT(*) FROM slots WHERE provider_id = ?`
	if err := r.db.QueryRowContext(ctx, cnt, id).Scan(&slots); err != nil {
		return err
	}
	if slots > 0 {
		return ErrConflict
	}
	const del = `DELETE FROM providers WHERE id = ?`
	res, err := r.db.ExecContext(ctx, del, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProviderNotFound
	}
	return nil
}
