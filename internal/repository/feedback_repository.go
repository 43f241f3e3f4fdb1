package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hall-reservation/internal/model"
)

// ErrFeedbackExists is returned when a reservation already has feedback;
// the unique key on reservation_id allows at most one row.
var ErrFeedbackExists = errors.New("feedback already exists for this reservation")

// FeedbackRepo persists feedback left for elapsed approved reservations.
type FeedbackRepo struct {
	db *sql.DB
}

// NewFeedbackRepo returns a FeedbackRepo bound to the given database.
func NewFeedbackRepo(db *sql.DB) *FeedbackRepo { return &FeedbackRepo{db: db} }

// CreateTx inserts a feedback row inside the caller's transaction so the
// admin broadcast notification commits together with it.
func (r *FeedbackRepo) CreateTx(ctx context.Context, tx *sql.Tx, fb *model.Feedback) error {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO feedback (reservation_id, rating, comments) VALUES (?, ?, ?)`,
		fb.ReservationID, fb.Rating, fb.Comments)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrFeedbackExists
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	fb.ID = uint64(id)
	return tx.QueryRowContext(ctx,
		`SELECT created_at FROM feedback WHERE id = ?`, fb.ID).Scan(&fb.CreatedAt)
}

// ListByReservation returns the feedback rows for one reservation.  The
// schema allows at most one, but a slice keeps the response shape stable.
func (r *FeedbackRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Feedback, error) {
	return r.list(ctx, `WHERE reservation_id = ?`, reservationID)
}

// ListAll returns every feedback row, newest first, for administrators.
func (r *FeedbackRepo) ListAll(ctx context.Context) ([]model.Feedback, error) {
	return r.list(ctx, ``)
}

func (r *FeedbackRepo) list(ctx context.Context, where string, args ...any) ([]model.Feedback, error) {
	q := `SELECT id, reservation_id, rating, comments, created_at FROM feedback ` + where + ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Feedback, 0)
	for rows.Next() {
		var (
			fb       model.Feedback
			comments sql.NullString
		)
		if err := rows.Scan(&fb.ID, &fb.ReservationID, &fb.Rating, &comments, &fb.CreatedAt); err != nil {
			return nil, err
		}
		if comments.Valid {
			c := comments.String
			fb.Comments = &c
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
