package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hall-reservation/internal/model"
)

// ErrResourceNotFound is returned when a resource lookup fails.
var ErrResourceNotFound = errors.New("resource not found")

// ErrResourceNameExists is returned when creating a resource whose unique
// name is already taken.
var ErrResourceNameExists = errors.New("resource name already exists")

// ResourceRepo provides CRUD for auxiliary resources (projectors,
// speakers, ...).  Resources live independently of reservations; deleting
// one also removes its attachment rows via the FK cascade.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo constructs a ResourceRepo with the given DB handle.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

// Create inserts a new resource.  The unique name constraint surfaces as
// ErrResourceNameExists.
func (r *ResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	result, err := r.db.ExecContext(ctx, `INSERT INTO resources (name) VALUES (?)`, res.Name)
	if err != nil {
		// MySQL duplicate-key error code.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrResourceNameExists
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// Delete removes a resource by id.  Returns ErrResourceNotFound when no
// row was deleted.
func (r *ResourceRepo) Delete(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// List returns all resources ordered by name.
func (r *ResourceRepo) List(ctx context.Context) ([]model.Resource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM resources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Resource, 0)
	for rows.Next() {
		var res model.Resource
		if err := rows.Scan(&res.ID, &res.Name); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
