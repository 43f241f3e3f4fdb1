package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/hall-reservation/internal/model"
)

// ErrHallNotFound is returned when a hall lookup fails.
var ErrHallNotFound = errors.New("hall not found")

// HallRepo provides methods to create and retrieve halls.
type HallRepo struct {
	db *sql.DB
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

// Create inserts a new hall and reads the row back so timestamps are
// populated on the passed struct.
func (r *HallRepo) Create(ctx context.Context, h *model.Hall) error {
	const qInsert = `INSERT INTO halls (name, capacity) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, qInsert, h.Name, h.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)

	const qSelect = `SELECT id, name, capacity, created_at, updated_at FROM halls WHERE id = ?`
	return r.db.QueryRowContext(ctx, qSelect, h.ID).
		Scan(&h.ID, &h.Name, &h.Capacity, &h.CreatedAt, &h.UpdatedAt)
}

// GetByID retrieves a hall by its ID.  It returns ErrHallNotFound when no
// row is found.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.Hall, error) {
	const q = `SELECT id, name, capacity, created_at, updated_at FROM halls WHERE id = ?`
	var h model.Hall
	err := r.db.QueryRowContext(ctx, q, id).Scan(&h.ID, &h.Name, &h.Capacity, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHallNotFound
		}
		return nil, err
	}
	return &h, nil
}

// GetTx retrieves a hall inside a transaction.  The lifecycle service uses
// it to validate the hall reference and fetch the name for notification
// texts while holding the hall's advisory lock.
func (r *HallRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Hall, error) {
	const q = `SELECT id, name, capacity, created_at, updated_at FROM halls WHERE id = ?`
	var h model.Hall
	err := tx.QueryRowContext(ctx, q, id).Scan(&h.ID, &h.Name, &h.Capacity, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHallNotFound
		}
		return nil, err
	}
	return &h, nil
}

// List returns all halls ordered by id.
func (r *HallRepo) List(ctx context.Context) ([]model.Hall, error) {
	const q = `SELECT id, name, capacity, created_at, updated_at FROM halls ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Hall, 0)
	for rows.Next() {
		var h model.Hall
		if err := rows.Scan(&h.ID, &h.Name, &h.Capacity, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
