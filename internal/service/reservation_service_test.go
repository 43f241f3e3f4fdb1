package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/hall-reservation/internal/model"
	"github.com/iliyamo/hall-reservation/internal/queue"
	"github.com/iliyamo/hall-reservation/internal/repository"
)

// memoryStore is an in-memory implementation of every store interface the
// service depends on.  Transactions are a no-op: the runner calls fn with
// a nil *sql.Tx, which the store methods never touch.  trace records the
// lock, status-write, commit and unlock steps in the order they happen.
type memoryStore struct {
	nextID        uint64
	reservations  map[uint64]*model.Reservation
	resources     map[uint64][]uint64
	halls         map[uint64]*model.Hall
	adminIDs      []uint64
	notifications []sentNote
	feedback      []*model.Feedback
	locks         map[uint64]int
	trace         []string
}

type sentNote struct {
	userID  uint64
	message string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		reservations: map[uint64]*model.Reservation{},
		resources:    map[uint64][]uint64{},
		halls:        map[uint64]*model.Hall{},
		adminIDs:     []uint64{10, 11},
		locks:        map[uint64]int{},
	}
}

func (m *memoryStore) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func (m *memoryStore) RunHallTx(ctx context.Context, hallID uint64, fn func(tx *sql.Tx) error) error {
	m.locks[hallID]++
	m.trace = append(m.trace, "lock")
	defer func() {
		m.locks[hallID]--
		m.trace = append(m.trace, "unlock")
	}()
	if err := fn(nil); err != nil {
		return err
	}
	m.trace = append(m.trace, "commit")
	return nil
}

func (m *memoryStore) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return m.GetTx(ctx, nil, id)
}

func (m *memoryStore) OverlapsTx(ctx context.Context, tx *sql.Tx, hallID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	for _, r := range m.reservations {
		if r.ID == excludeID || r.HallID != hallID || r.Status != model.StatusApproved {
			continue
		}
		if model.Overlaps(r.StartsAt, r.EndsAt, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	m.nextID++
	res.ID = m.nextID
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	cp := *res
	m.reservations[res.ID] = &cp
	return nil
}

func (m *memoryStore) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *memoryStore) UpdateDetailsTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	r, ok := m.reservations[res.ID]
	if !ok {
		return sql.ErrNoRows
	}
	r.HallID = res.HallID
	r.StartsAt = res.StartsAt
	r.EndsAt = res.EndsAt
	r.Description = res.Description
	return nil
}

func (m *memoryStore) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.Status, adminMessage *string) error {
	r, ok := m.reservations[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	if adminMessage != nil {
		r.AdminMessage = adminMessage
	}
	m.trace = append(m.trace, "write-status")
	return nil
}

func (m *memoryStore) ReplaceResourcesTx(ctx context.Context, tx *sql.Tx, reservationID uint64, resourceIDs []uint64) error {
	m.resources[reservationID] = append([]uint64(nil), resourceIDs...)
	return nil
}

func (m *memoryStore) GetHallTx(hallID uint64) (*model.Hall, error) {
	h, ok := m.halls[hallID]
	if !ok {
		return nil, repository.ErrHallNotFound
	}
	return h, nil
}

func (m *memoryStore) AdminIDsTx(ctx context.Context, tx *sql.Tx) ([]uint64, error) {
	return m.adminIDs, nil
}

func (m *memoryStore) notesFor(userID uint64) []string {
	var out []string
	for _, n := range m.notifications {
		if n.userID == userID {
			out = append(out, n.message)
		}
	}
	return out
}

// hallStore adapts memoryStore to the HallStore interface.
type hallStore struct{ m *memoryStore }

func (h hallStore) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Hall, error) {
	return h.m.GetHallTx(id)
}

// noteStore adapts memoryStore to the NotificationStore interface.
type noteStore struct{ m *memoryStore }

func (n noteStore) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64, message string) error {
	n.m.notifications = append(n.m.notifications, sentNote{userID: userID, message: message})
	return nil
}

// fbStore adapts memoryStore to the FeedbackStore interface.
type fbStore struct{ m *memoryStore }

func (f fbStore) CreateTx(ctx context.Context, tx *sql.Tx, fb *model.Feedback) error {
	for _, existing := range f.m.feedback {
		if existing.ReservationID == fb.ReservationID {
			return repository.ErrFeedbackExists
		}
	}
	fb.ID = uint64(len(f.m.feedback) + 1)
	fb.CreatedAt = time.Now().UTC()
	f.m.feedback = append(f.m.feedback, fb)
	return nil
}

// capturePublisher records every event handed to it.
type capturePublisher struct {
	events []queue.ReservationEvent
}

func (p *capturePublisher) PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func newTestService(m *memoryStore, pub EventPublisher) *ReservationService {
	return NewReservationService(m, m, hallStore{m}, m, noteStore{m}, fbStore{m}, pub)
}

func seedHall(m *memoryStore, id uint64, name string) {
	m.halls[id] = &model.Hall{ID: id, Name: name, Capacity: 120}
}

func slot(h int) (time.Time, time.Time) {
	base := time.Date(2026, 10, 1, h, 0, 0, 0, time.UTC)
	return base, base.Add(2 * time.Hour)
}

func TestCreatePendingRequests(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	r1, err := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, r1.Status)

	// A second pending request over the same slot does not conflict;
	// only APPROVED rows occupy the hall.
	r2, err := svc.Create(ctx, 200, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)

	// Both requests broadcast to every admin.
	assert.Len(t, m.notesFor(10), 2)
	assert.Len(t, m.notesFor(11), 2)
	assert.Equal(t, "New reservation request for Main Hall", m.notesFor(10)[0])
}

func TestCreateValidation(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, _ := slot(9)

	_, err := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: start})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = svc.Create(ctx, 100, ReservationInput{HallID: 9, StartsAt: start, EndsAt: start.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrHallNotFound)
}

func TestCreateConflictsWithApproved(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	r1, err := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)
	_, err = svc.Approve(ctx, r1.ID, nil)
	assert.NoError(t, err)

	// Overlapping interval against an approved row conflicts.
	_, err = svc.Create(ctx, 200, ReservationInput{HallID: 1, StartsAt: start.Add(time.Hour), EndsAt: end.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Intervals are half open: a request starting exactly at the
	// approved end is fine.
	_, err = svc.Create(ctx, 200, ReservationInput{HallID: 1, StartsAt: end, EndsAt: end.Add(time.Hour)})
	assert.NoError(t, err)

	// A different hall never conflicts.
	seedHall(m, 2, "Annex")
	_, err = svc.Create(ctx, 200, ReservationInput{HallID: 2, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)
}

func TestApproveConflictThenCancelThenRetry(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(14)

	r1, err := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)
	r2, err := svc.Create(ctx, 200, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)

	_, err = svc.Approve(ctx, r1.ID, nil)
	assert.NoError(t, err)

	// The second pending request now collides at approval time.
	_, err = svc.Approve(ctx, r2.ID, nil)
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Cancelling the approved reservation frees the slot.
	_, err = svc.Cancel(ctx, 100, r1.ID)
	assert.NoError(t, err)

	approved, err := svc.Approve(ctx, r2.ID, nil)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
}

func TestApproveMissingOrDecided(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	_, err := svc.Approve(ctx, 42, nil)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	r, err := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)
	_, err = svc.Deny(ctx, r.ID, nil)
	assert.NoError(t, err)

	// A decided reservation is no longer visible to approve or deny.
	_, err = svc.Approve(ctx, r.ID, nil)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	_, err = svc.Deny(ctx, r.ID, nil)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestDenyReasonMessages(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	r1, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	denied, err := svc.Deny(ctx, r1.ID, nil)
	assert.NoError(t, err)
	assert.Nil(t, denied.AdminMessage)
	notes := m.notesFor(100)
	assert.Equal(t, "Your reservation for Main Hall has been denied. Reason: No reason provided", notes[len(notes)-1])

	reason := "Hall closed for maintenance"
	r2, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	denied, err = svc.Deny(ctx, r2.ID, &reason)
	assert.NoError(t, err)
	if assert.NotNil(t, denied.AdminMessage) {
		assert.Equal(t, reason, *denied.AdminMessage)
	}
	notes = m.notesFor(100)
	assert.Equal(t, "Your reservation for Main Hall has been denied. Reason: Hall closed for maintenance", notes[len(notes)-1])
}

func TestApproveNotifiesOwner(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	r, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	_, err := svc.Approve(ctx, r.ID, nil)
	assert.NoError(t, err)

	notes := m.notesFor(100)
	assert.Equal(t, "Your reservation for Main Hall has been approved.", notes[len(notes)-1])
}

func TestCancelMessages(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	// Pending cancellation uses the routine wording.
	r1, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	_, err := svc.Cancel(ctx, 100, r1.ID)
	assert.NoError(t, err)
	notes := m.notesFor(10)
	assert.Equal(t, fmt.Sprintf("Reservation #%d for Main Hall has been cancelled by the user", r1.ID), notes[len(notes)-1])

	// Cancelling after approval frees a committed slot and is flagged.
	r2, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	_, err = svc.Approve(ctx, r2.ID, nil)
	assert.NoError(t, err)
	_, err = svc.Cancel(ctx, 100, r2.ID)
	assert.NoError(t, err)
	notes = m.notesFor(10)
	assert.Equal(t, fmt.Sprintf("ALERT: Reservation #%d for Main Hall was CANCELLED after being APPROVED", r2.ID), notes[len(notes)-1])
}

func TestCancelGuards(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	r, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})

	// Only the owner may cancel, and the failure does not reveal that
	// the reservation exists.
	_, err := svc.Cancel(ctx, 200, r.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	_, err = svc.Cancel(ctx, 100, r.ID)
	assert.NoError(t, err)

	// Cancelled is terminal.
	_, err = svc.Cancel(ctx, 100, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateRules(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	seedHall(m, 2, "Annex")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	r, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})

	_, err := svc.Update(ctx, 200, r.ID, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.ErrorIs(t, err, ErrReservationNotFound)

	desc := "Robotics club demo"
	updated, err := svc.Update(ctx, 100, r.ID, ReservationInput{
		HallID:      2,
		StartsAt:    start.Add(time.Hour),
		EndsAt:      end.Add(time.Hour),
		Description: &desc,
		ResourceIDs: []uint64{1, 2},
	})
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), updated.HallID)
	assert.Equal(t, []uint64{1, 2}, m.resources[r.ID])

	// Once decided the reservation is frozen.
	_, err = svc.Approve(ctx, r.ID, nil)
	assert.NoError(t, err)
	_, err = svc.Update(ctx, 100, r.ID, ReservationInput{HallID: 2, StartsAt: start, EndsAt: end})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateIgnoresOwnSlot(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	r, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	_, err := svc.Approve(ctx, r.ID, nil)
	assert.NoError(t, err)

	// An approved reservation elsewhere still blocks the move.
	r2, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: end, EndsAt: end.Add(2 * time.Hour)})
	_, err = svc.Update(ctx, 100, r2.ID, ReservationInput{HallID: 1, StartsAt: start.Add(time.Hour), EndsAt: end.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Shrinking inside its own window excludes the reservation itself
	// from the overlap check.
	avail, err := svc.Available(ctx, 1, start, start.Add(time.Hour), r.ID)
	assert.NoError(t, err)
	assert.True(t, avail)
	avail, err = svc.Available(ctx, 1, start, start.Add(time.Hour), 0)
	assert.NoError(t, err)
	assert.False(t, avail)
}

func TestSubmitFeedback(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()

	past := time.Now().UTC().Add(-48 * time.Hour)
	r, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: past, EndsAt: past.Add(2 * time.Hour)})

	// Pending reservations take no feedback.
	_, err := svc.SubmitFeedback(ctx, 100, r.ID, 5, nil)
	assert.ErrorIs(t, err, ErrFeedbackNotAllowed)

	_, err = svc.Approve(ctx, r.ID, nil)
	assert.NoError(t, err)

	comments := "Projector worked great"
	fb, err := svc.SubmitFeedback(ctx, 100, r.ID, 5, &comments)
	assert.NoError(t, err)
	assert.Equal(t, r.ID, fb.ReservationID)
	assert.Equal(t, uint8(5), fb.Rating)

	// One feedback per reservation.
	_, err = svc.SubmitFeedback(ctx, 100, r.ID, 4, nil)
	assert.ErrorIs(t, err, repository.ErrFeedbackExists)

	// Owner check masks existence.
	_, err = svc.SubmitFeedback(ctx, 200, r.ID, 4, nil)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	// Admins hear about the submission.
	notes := m.notesFor(10)
	assert.Equal(t, fmt.Sprintf("New feedback received for reservation #%d", r.ID), notes[len(notes)-1])
}

func TestFeedbackBeforeEnd(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()

	future := time.Now().UTC().Add(24 * time.Hour)
	r, _ := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: future, EndsAt: future.Add(2 * time.Hour)})
	_, err := svc.Approve(ctx, r.ID, nil)
	assert.NoError(t, err)

	_, err = svc.SubmitFeedback(ctx, 100, r.ID, 5, nil)
	assert.ErrorIs(t, err, ErrFeedbackNotAllowed)
}

func TestHallLockHeldThroughCommit(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	svc := newTestService(m, nil)
	ctx := context.Background()
	start, end := slot(9)

	r, err := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)

	// The status write and the commit must both happen while the hall
	// lock is held; releasing before commit would let a concurrent
	// approver pass its overlap check against the pre-commit schedule.
	m.trace = nil
	_, err = svc.Approve(ctx, r.ID, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"lock", "write-status", "commit", "unlock"}, m.trace)

	m.trace = nil
	_, err = svc.Cancel(ctx, 100, r.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"lock", "write-status", "commit", "unlock"}, m.trace)
}

func TestLifecycleEvents(t *testing.T) {
	m := newMemoryStore()
	seedHall(m, 1, "Main Hall")
	pub := &capturePublisher{}
	svc := newTestService(m, pub)
	ctx := context.Background()
	start, end := slot(9)

	r, err := svc.Create(ctx, 100, ReservationInput{HallID: 1, StartsAt: start, EndsAt: end})
	assert.NoError(t, err)
	_, err = svc.Approve(ctx, r.ID, nil)
	assert.NoError(t, err)
	_, err = svc.Cancel(ctx, 100, r.ID)
	assert.NoError(t, err)

	if assert.Len(t, pub.events, 3) {
		assert.Equal(t, queue.KindCreated, pub.events[0].Kind)
		assert.Equal(t, queue.KindApproved, pub.events[1].Kind)
		assert.Equal(t, queue.KindCancelled, pub.events[2].Kind)
		assert.Equal(t, "Main Hall", pub.events[0].HallName)
		assert.Equal(t, r.ID, pub.events[0].ReservationID)
	}

	// Every lock taken was released.
	for hallID, n := range m.locks {
		assert.Zero(t, n, "hall %d lock not released", hallID)
	}
}
