package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/hall-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations and their resource
// attachments.  All timestamp fields are stored in UTC.  Methods with a Tx
// suffix run inside a caller-supplied transaction; the lifecycle service
// runs them under TxRunner.RunHallTx so the overlap check and the status
// write commit while the hall's advisory lock is still held.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle for starting transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationCols = `id, user_id, hall_id, starts_at, ends_at, status, admin_message, description, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		res      model.Reservation
		userID   sql.NullInt64
		adminMsg sql.NullString
		descr    sql.NullString
	)
	err := row.Scan(
		&res.ID, &userID, &res.HallID, &res.StartsAt, &res.EndsAt,
		&res.Status, &adminMsg, &descr, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		res.UserID = &uid
	}
	if adminMsg.Valid {
		m := adminMsg.String
		res.AdminMessage = &m
	}
	if descr.Valid {
		d := descr.String
		res.Description = &d
	}
	return &res, nil
}

// OverlapsTx reports whether any APPROVED reservation for the hall, other
// than excludeID, intersects the half-open interval [start, end).  The
// overlap test is strict half-open (existing.starts_at < end AND
// existing.ends_at > start) so abutting slots never conflict.  PENDING,
// DENIED and CANCELLED reservations never occupy the hall.  Pass
// excludeID = 0 when creating a new reservation.
func (r *ReservationRepo) OverlapsTx(ctx context.Context, tx *sql.Tx, hallID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	const q = `SELECT EXISTS(
	               SELECT 1 FROM reservations
	               WHERE hall_id = ? AND status = 'APPROVED'
	                 AND starts_at < ? AND ends_at > ?
	                 AND id <> ?)`
	var exists bool
	if err := tx.QueryRowContext(ctx, q, hallID, end, start, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateTx inserts a new reservation and reads the row back to populate
// generated fields.  The caller sets Status before insertion; new
// reservations always enter as PENDING.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, hall_id, starts_at, ends_at, status, description)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.UserID, res.HallID, res.StartsAt, res.EndsAt, res.Status, res.Description)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	got, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ?`, res.ID))
	if err != nil {
		return err
	}
	*res = *got
	return nil
}

// GetTx loads a reservation by id inside a transaction, locking the row
// (FOR UPDATE) so concurrent transitions on the same reservation are
// serialized.  Returns sql.ErrNoRows when no such reservation exists.
func (r *ReservationRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ? FOR UPDATE`, id))
}

// Get loads a reservation by id outside any transaction.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id))
}

// UpdateDetailsTx rewrites the mutable fields of a PENDING reservation:
// hall, interval and description.  Status and admin message are left
// untouched; use UpdateStatusTx for transitions.
func (r *ReservationRepo) UpdateDetailsTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations
	           SET hall_id = ?, starts_at = ?, ends_at = ?, description = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	result, err := tx.ExecContext(ctx, q, res.HallID, res.StartsAt, res.EndsAt, res.Description, res.ID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatusTx commits a lifecycle transition.  adminMessage is stored
// only when non-nil (approve/deny set it; cancel leaves the previous value).
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.Status, adminMessage *string) error {
	if adminMessage != nil {
		const q = `UPDATE reservations SET status = ?, admin_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
		_, err := tx.ExecContext(ctx, q, status, *adminMessage, id)
		return err
	}
	const q = `UPDATE reservations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, id)
	return err
}

// ReplaceResourcesTx replaces the full attachment set of a reservation:
// all existing rows are deleted, then one row is inserted per requested
// resource id that resolves to an existing resource.  Unknown ids are
// silently skipped (last-write-wins full replace, not a diff).  Runs in
// the same transaction as the reservation write so no reader observes a
// reservation with a half-rewritten attachment set.
func (r *ReservationRepo) ReplaceResourcesTx(ctx context.Context, tx *sql.Tx, reservationID uint64, resourceIDs []uint64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reservation_resources WHERE reservation_id = ?`, reservationID); err != nil {
		return err
	}
	if len(resourceIDs) == 0 {
		return nil
	}
	// Deduplicate to keep the composite primary key happy.
	seen := make(map[uint64]struct{}, len(resourceIDs))
	unique := make([]uint64, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return nil
	}
	placeholders := make([]string, len(unique))
	args := make([]any, 0, len(unique)+1)
	args = append(args, reservationID)
	for i, id := range unique {
		placeholders[i] = "?"
		args = append(args, id)
	}
	// INSERT ... SELECT keeps the "skip unknown ids" semantics in one
	// statement instead of probing each resource first.
	q := `INSERT INTO reservation_resources (reservation_id, resource_id)
	      SELECT ?, id FROM resources WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// ResourcesFor returns the resources attached to a reservation ordered by
// name for deterministic output.
func (r *ReservationRepo) ResourcesFor(ctx context.Context, reservationID uint64) ([]model.Resource, error) {
	const q = `SELECT re.id, re.name
	           FROM reservation_resources rr
	           JOIN resources re ON re.id = rr.resource_id
	           WHERE rr.reservation_id = ?
	           ORDER BY re.name`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
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

// Detail is a reservation joined with its hall for display.  HallName
// falls back to "Hall Unavailable" when the hall row has been deleted out
// from under historic data.
type Detail struct {
	model.Reservation
	HallName     string  `json:"hall_name"`
	HallCapacity *uint32 `json:"hall_capacity,omitempty"`
}

const detailQuery = `SELECT r.id, r.user_id, r.hall_id, r.starts_at, r.ends_at, r.status,
                            r.admin_message, r.description, r.created_at, r.updated_at,
                            h.name, h.capacity
                     FROM reservations r
                     LEFT JOIN halls h ON h.id = r.hall_id`

func (r *ReservationRepo) queryDetails(ctx context.Context, where string, order string, args ...any) ([]Detail, error) {
	q := detailQuery
	if where != "" {
		q += " WHERE " + where
	}
	q += " " + order
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]Detail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var (
			d        Detail
			userID   sql.NullInt64
			adminMsg sql.NullString
			descr    sql.NullString
			hallName sql.NullString
			capacity sql.NullInt32
		)
		if err := rows.Scan(
			&d.ID, &userID, &d.HallID, &d.StartsAt, &d.EndsAt, &d.Status,
			&adminMsg, &descr, &d.CreatedAt, &d.UpdatedAt,
			&hallName, &capacity,
		); err != nil {
			return nil, err
		}
		if userID.Valid {
			uid := uint64(userID.Int64)
			d.UserID = &uid
		}
		if adminMsg.Valid {
			m := adminMsg.String
			d.AdminMessage = &m
		}
		if descr.Valid {
			s := descr.String
			d.Description = &s
		}
		if hallName.Valid {
			d.HallName = hallName.String
		} else {
			d.HallName = "Hall Unavailable"
		}
		if capacity.Valid {
			c := uint32(capacity.Int32)
			d.HallCapacity = &c
		}
		d.Resources = []model.Resource{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}

	// Populate resources for all reservations in a single query.
	ids := make([]any, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	resQ := `SELECT rr.reservation_id, re.id, re.name
	         FROM reservation_resources rr
	         JOIN resources re ON re.id = rr.resource_id
	         WHERE rr.reservation_id IN (` + strings.Join(placeholders, ",") + `)
	         ORDER BY rr.reservation_id, re.name`
	rrows, err := r.db.QueryContext(ctx, resQ, ids...)
	if err != nil {
		return nil, err
	}
	defer rrows.Close()
	for rrows.Next() {
		var rid uint64
		var res model.Resource
		if err := rrows.Scan(&rid, &res.ID, &res.Name); err != nil {
			return nil, err
		}
		if idx, ok := index[rid]; ok {
			details[idx].Resources = append(details[idx].Resources, res)
		}
	}
	return details, rrows.Err()
}

// GetDetail returns a single reservation with hall and resources, or
// sql.ErrNoRows when it does not exist.
func (r *ReservationRepo) GetDetail(ctx context.Context, id uint64) (*Detail, error) {
	details, err := r.queryDetails(ctx, "r.id = ?", "", id)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, sql.ErrNoRows
	}
	return &details[0], nil
}

// ListByUser returns all reservations owned by the user, newest first.
// When status is non-empty only matching reservations are returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, status string) ([]Detail, error) {
	if status != "" {
		return r.queryDetails(ctx, "r.user_id = ? AND r.status = ?", "ORDER BY r.created_at DESC", userID, status)
	}
	return r.queryDetails(ctx, "r.user_id = ?", "ORDER BY r.created_at DESC", userID)
}

// AdminFilter narrows the admin listing.  Zero values mean "no filter".
type AdminFilter struct {
	Status    string
	HallID    uint64
	StartFrom time.Time // keep reservations starting at or after this instant
	StartTo   time.Time // keep reservations starting before this instant
}

// ListAll returns reservations across all users for administrators,
// newest first, honoring the given filter.
func (r *ReservationRepo) ListAll(ctx context.Context, f AdminFilter) ([]Detail, error) {
	conds := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if f.Status != "" {
		conds = append(conds, "r.status = ?")
		args = append(args, f.Status)
	}
	if f.HallID != 0 {
		conds = append(conds, "r.hall_id = ?")
		args = append(args, f.HallID)
	}
	if !f.StartFrom.IsZero() {
		conds = append(conds, "r.starts_at >= ?")
		args = append(args, f.StartFrom)
	}
	if !f.StartTo.IsZero() {
		conds = append(conds, "r.starts_at < ?")
		args = append(args, f.StartTo)
	}
	return r.queryDetails(ctx, strings.Join(conds, " AND "), "ORDER BY r.created_at DESC", args...)
}

// ListApprovedBetween returns APPROVED reservations fully contained in
// [from, to], optionally restricted to one hall.  Used by the admin
// calendar view.
func (r *ReservationRepo) ListApprovedBetween(ctx context.Context, from, to time.Time, hallID uint64) ([]Detail, error) {
	if hallID != 0 {
		return r.queryDetails(ctx,
			"r.status = 'APPROVED' AND r.starts_at >= ? AND r.ends_at <= ? AND r.hall_id = ?",
			"ORDER BY r.starts_at", from, to, hallID)
	}
	return r.queryDetails(ctx,
		"r.status = 'APPROVED' AND r.starts_at >= ? AND r.ends_at <= ?",
		"ORDER BY r.starts_at", from, to)
}

// PastApproved is a row of the "reservations eligible for feedback"
// listing: an APPROVED reservation of the user whose end time has passed,
// flagged when feedback was already submitted.
type PastApproved struct {
	ID                uint64    `json:"id"`
	HallID            uint64    `json:"hall_id"`
	HallName          string    `json:"hall_name"`
	StartsAt          time.Time `json:"start_datetime"`
	EndsAt            time.Time `json:"end_datetime"`
	Description       *string   `json:"description,omitempty"`
	FeedbackSubmitted bool      `json:"feedbackSubmitted"`
}

// ListPastApproved returns the user's elapsed APPROVED reservations,
// most recent first.
func (r *ReservationRepo) ListPastApproved(ctx context.Context, userID uint64, now time.Time) ([]PastApproved, error) {
	const q = `SELECT r.id, r.hall_id, h.name, r.starts_at, r.ends_at, r.description,
	                  EXISTS(SELECT 1 FROM feedback f WHERE f.reservation_id = r.id)
	           FROM reservations r
	           LEFT JOIN halls h ON h.id = r.hall_id
	           WHERE r.user_id = ? AND r.status = 'APPROVED' AND r.ends_at <= ?
	           ORDER BY r.ends_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]PastApproved, 0)
	for rows.Next() {
		var (
			p        PastApproved
			hallName sql.NullString
			descr    sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.HallID, &hallName, &p.StartsAt, &p.EndsAt, &descr, &p.FeedbackSubmitted); err != nil {
			return nil, err
		}
		if hallName.Valid {
			p.HallName = hallName.String
		} else {
			p.HallName = "Hall Unavailable"
		}
		if descr.Valid {
			d := descr.String
			p.Description = &d
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
