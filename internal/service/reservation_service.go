package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/hall-reservation/internal/model"
	"github.com/iliyamo/hall-reservation/internal/queue"
	"github.com/iliyamo/hall-reservation/internal/repository"
)

// Sentinel errors surfaced by the lifecycle service.  Ownership failures
// are reported as ErrReservationNotFound so callers cannot probe for the
// existence of other users' reservations.
var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrHallNotFound        = errors.New("hall not found")
	ErrInvalidState        = errors.New("reservation status does not permit this operation")
	ErrSlotConflict        = errors.New("time slot overlaps an existing approved reservation")
	ErrInvalidInterval     = errors.New("end time must be after start time")
	ErrFeedbackNotAllowed  = errors.New("feedback is only accepted for approved reservations that have ended")
)

// TxRunner executes a function inside one database transaction.
// RunHallTx additionally holds the hall's advisory lock from before the
// transaction's first read until after its commit or rollback.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	RunHallTx(ctx context.Context, hallID uint64, fn func(tx *sql.Tx) error) error
}

// ReservationStore is the persistence surface the state machine needs.
// Implemented by repository.ReservationRepo.
type ReservationStore interface {
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	OverlapsTx(ctx context.Context, tx *sql.Tx, hallID uint64, start, end time.Time, excludeID uint64) (bool, error)
	CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
	GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error)
	UpdateDetailsTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.Status, adminMessage *string) error
	ReplaceResourcesTx(ctx context.Context, tx *sql.Tx, reservationID uint64, resourceIDs []uint64) error
}

// HallStore resolves hall references.  Implemented by repository.HallRepo.
type HallStore interface {
	GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Hall, error)
}

// UserStore supplies the admin roster for notification fan-out.
// Implemented by repository.UserRepo.
type UserStore interface {
	AdminIDsTx(ctx context.Context, tx *sql.Tx) ([]uint64, error)
}

// NotificationStore writes notification rows inside the transition
// transaction.  Implemented by repository.NotificationRepo.
type NotificationStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, userID uint64, message string) error
}

// FeedbackStore writes feedback rows.  Implemented by repository.FeedbackRepo.
type FeedbackStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, fb *model.Feedback) error
}

// EventPublisher sends lifecycle events to the broker after commit.
// Implemented by queue.Publisher; a nil publisher disables publishing.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error
}

// ReservationService is the reservation lifecycle state machine.  Every
// transition runs inside a single transaction; transitions that can
// produce or remove an APPROVED row run through RunHallTx, which holds
// the hall's advisory lock from before the transaction's first read
// until after its commit.  A competing transition blocks on the lock
// until the winner's write is committed and visible, which closes the
// check-then-act race between concurrent approvals.
type ReservationService struct {
	tx            TxRunner
	reservations  ReservationStore
	halls         HallStore
	users         UserStore
	notifications NotificationStore
	feedback      FeedbackStore
	publisher     EventPublisher // may be nil
}

// NewReservationService wires the state machine to its stores.  The
// publisher is optional; all other dependencies must be non-nil.
func NewReservationService(tx TxRunner, res ReservationStore, halls HallStore, users UserStore, notes NotificationStore, fb FeedbackStore, pub EventPublisher) *ReservationService {
	if tx == nil || res == nil || halls == nil || users == nil || notes == nil || fb == nil {
		panic("nil store passed to NewReservationService")
	}
	return &ReservationService{
		tx:            tx,
		reservations:  res,
		halls:         halls,
		users:         users,
		notifications: notes,
		feedback:      fb,
		publisher:     pub,
	}
}

// ReservationInput carries the user-settable fields of a reservation.
// The same shape serves create and update; resource ids replace the full
// attachment set.
type ReservationInput struct {
	HallID      uint64
	StartsAt    time.Time
	EndsAt      time.Time
	Description *string
	ResourceIDs []uint64
}

func (in ReservationInput) validate() error {
	if !in.EndsAt.After(in.StartsAt) {
		return ErrInvalidInterval
	}
	return nil
}

// notifyAdmins materializes one notification row per admin account inside
// the transition transaction, so the fan-out matches the admin roster at
// the moment of the transition.
func (s *ReservationService) notifyAdmins(ctx context.Context, tx *sql.Tx, message string) error {
	adminIDs, err := s.users.AdminIDsTx(ctx, tx)
	if err != nil {
		return err
	}
	for _, id := range adminIDs {
		if err := s.notifications.CreateTx(ctx, tx, id, message); err != nil {
			return err
		}
	}
	return nil
}

// publish emits a lifecycle event after the transaction committed.
// Failures are logged by the publisher and otherwise ignored; the
// transition itself is already durable.
func (s *ReservationService) publish(ctx context.Context, kind string, res *model.Reservation, hallName string) {
	if s.publisher == nil {
		return
	}
	ev := queue.ReservationEvent{
		Kind:          kind,
		ReservationID: res.ID,
		UserID:        res.UserID,
		HallID:        res.HallID,
		HallName:      hallName,
		StartsAt:      res.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:        res.EndsAt.UTC().Format(time.RFC3339),
		Status:        string(res.Status),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishReservationEvent(ctx, ev); err != nil {
		log.Printf("reservation-service: publish %s event failed: %v", kind, err)
	}
}

// Create inserts a new PENDING reservation for the user.  The hall must
// exist and the proposed interval must not overlap any APPROVED
// reservation for that hall; PENDING requests never block each other.
func (s *ReservationService) Create(ctx context.Context, userID uint64, in ReservationInput) (*model.Reservation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var (
		created  *model.Reservation
		hallName string
	)
	err := s.tx.RunHallTx(ctx, in.HallID, func(tx *sql.Tx) error {
		hall, err := s.halls.GetTx(ctx, tx, in.HallID)
		if err != nil {
			if errors.Is(err, repository.ErrHallNotFound) {
				return ErrHallNotFound
			}
			return err
		}
		hallName = hall.Name

		conflict, err := s.reservations.OverlapsTx(ctx, tx, in.HallID, in.StartsAt, in.EndsAt, 0)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}

		res := &model.Reservation{
			UserID:      &userID,
			HallID:      in.HallID,
			StartsAt:    in.StartsAt,
			EndsAt:      in.EndsAt,
			Status:      model.StatusPending,
			Description: in.Description,
		}
		if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
			return err
		}
		if err := s.reservations.ReplaceResourcesTx(ctx, tx, res.ID, in.ResourceIDs); err != nil {
			return err
		}
		if err := s.notifyAdmins(ctx, tx, newRequestMessage(hall.Name)); err != nil {
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.KindCreated, created, hallName)
	return created, nil
}

// Update rewrites the hall, interval, description and resource set of a
// reservation.  Only the owner may update, and only while the reservation
// is PENDING.  When the hall or interval changed the overlap oracle is
// re-consulted, excluding the reservation itself.
func (s *ReservationService) Update(ctx context.Context, userID, reservationID uint64, in ReservationInput) (*model.Reservation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var updated *model.Reservation
	err := s.tx.RunHallTx(ctx, in.HallID, func(tx *sql.Tx) error {
		res, err := s.reservations.GetTx(ctx, tx, reservationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrReservationNotFound
			}
			return err
		}
		if res.UserID == nil || *res.UserID != userID {
			return ErrReservationNotFound
		}
		if !res.Status.Mutable() {
			return ErrInvalidState
		}
		if _, err := s.halls.GetTx(ctx, tx, in.HallID); err != nil {
			if errors.Is(err, repository.ErrHallNotFound) {
				return ErrHallNotFound
			}
			return err
		}

		moved := in.HallID != res.HallID || !in.StartsAt.Equal(res.StartsAt) || !in.EndsAt.Equal(res.EndsAt)
		if moved {
			conflict, err := s.reservations.OverlapsTx(ctx, tx, in.HallID, in.StartsAt, in.EndsAt, res.ID)
			if err != nil {
				return err
			}
			if conflict {
				return ErrSlotConflict
			}
		}

		res.HallID = in.HallID
		res.StartsAt = in.StartsAt
		res.EndsAt = in.EndsAt
		res.Description = in.Description
		if err := s.reservations.UpdateDetailsTx(ctx, tx, res); err != nil {
			return err
		}
		if err := s.reservations.ReplaceResourcesTx(ctx, tx, res.ID, in.ResourceIDs); err != nil {
			return err
		}
		updated = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Approve transitions a PENDING reservation to APPROVED on behalf of an
// admin.  The overlap oracle is re-consulted excluding the reservation
// itself: several PENDING requests may cover the same slot, and the
// re-check at approval is what actually enforces single occupancy.
// Missing and non-PENDING reservations both report ErrReservationNotFound.
func (s *ReservationService) Approve(ctx context.Context, reservationID uint64, adminMessage *string) (*model.Reservation, error) {
	return s.decide(ctx, reservationID, model.StatusApproved, adminMessage)
}

// Deny transitions a PENDING reservation to DENIED.  No overlap check is
// needed; a denial never occupies the hall.
func (s *ReservationService) Deny(ctx context.Context, reservationID uint64, adminMessage *string) (*model.Reservation, error) {
	return s.decide(ctx, reservationID, model.StatusDenied, adminMessage)
}

// errHallMoved signals that an owner update relocated the reservation
// between the unlocked pre-read and the locked re-read, so the wrong
// hall's lock is held and the transition must restart.
var errHallMoved = errors.New("reservation moved to another hall")

// hallOf reads the reservation outside any lock to learn which hall's
// advisory lock a transition must take.  Callers re-validate everything
// under the lock; this read only picks the lock name.
func (s *ReservationService) hallOf(ctx context.Context, reservationID uint64) (uint64, error) {
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrReservationNotFound
		}
		return 0, err
	}
	return res.HallID, nil
}

func (s *ReservationService) decide(ctx context.Context, reservationID uint64, to model.Status, adminMessage *string) (*model.Reservation, error) {
	for attempt := 0; attempt < 3; attempt++ {
		hallID, err := s.hallOf(ctx, reservationID)
		if err != nil {
			return nil, err
		}
		decided, hallName, err := s.decideInHall(ctx, hallID, reservationID, to, adminMessage)
		if errors.Is(err, errHallMoved) {
			continue
		}
		if err != nil {
			return nil, err
		}
		kind := queue.KindApproved
		if to == model.StatusDenied {
			kind = queue.KindDenied
		}
		s.publish(ctx, kind, decided, hallName)
		return decided, nil
	}
	return nil, repository.ErrLockTimeout
}

func (s *ReservationService) decideInHall(ctx context.Context, hallID, reservationID uint64, to model.Status, adminMessage *string) (*model.Reservation, string, error) {
	var (
		decided  *model.Reservation
		hallName string
	)
	err := s.tx.RunHallTx(ctx, hallID, func(tx *sql.Tx) error {
		res, err := s.reservations.GetTx(ctx, tx, reservationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrReservationNotFound
			}
			return err
		}
		if res.Status != model.StatusPending {
			return ErrReservationNotFound
		}
		if res.HallID != hallID {
			return errHallMoved
		}

		hall, err := s.halls.GetTx(ctx, tx, res.HallID)
		if err != nil {
			if errors.Is(err, repository.ErrHallNotFound) {
				return ErrHallNotFound
			}
			return err
		}
		hallName = hall.Name

		if to == model.StatusApproved {
			conflict, err := s.reservations.OverlapsTx(ctx, tx, res.HallID, res.StartsAt, res.EndsAt, res.ID)
			if err != nil {
				return err
			}
			if conflict {
				return ErrSlotConflict
			}
		}

		if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, to, adminMessage); err != nil {
			return err
		}
		res.Status = to
		res.AdminMessage = adminMessage

		if res.UserID != nil {
			var msg string
			if to == model.StatusApproved {
				msg = approvedMessage(hall.Name)
			} else {
				msg = deniedMessage(hall.Name, adminMessage)
			}
			if err := s.notifications.CreateTx(ctx, tx, *res.UserID, msg); err != nil {
				return err
			}
		}
		decided = res
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return decided, hallName, nil
}

// Cancel transitions a PENDING or APPROVED reservation to CANCELLED on
// behalf of its owner.  Cancelling an APPROVED reservation frees a
// committed slot, so the admin broadcast is marked as an alert.
func (s *ReservationService) Cancel(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
	for attempt := 0; attempt < 3; attempt++ {
		hallID, err := s.hallOf(ctx, reservationID)
		if err != nil {
			return nil, err
		}
		cancelled, hallName, err := s.cancelInHall(ctx, hallID, userID, reservationID)
		if errors.Is(err, errHallMoved) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publish(ctx, queue.KindCancelled, cancelled, hallName)
		return cancelled, nil
	}
	return nil, repository.ErrLockTimeout
}

func (s *ReservationService) cancelInHall(ctx context.Context, hallID, userID, reservationID uint64) (*model.Reservation, string, error) {
	var (
		cancelled *model.Reservation
		hallName  string
	)
	err := s.tx.RunHallTx(ctx, hallID, func(tx *sql.Tx) error {
		res, err := s.reservations.GetTx(ctx, tx, reservationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrReservationNotFound
			}
			return err
		}
		if res.UserID == nil || *res.UserID != userID {
			return ErrReservationNotFound
		}
		if !model.CanTransition(res.Status, model.StatusCancelled) {
			return ErrInvalidState
		}
		if res.HallID != hallID {
			return errHallMoved
		}

		hallName = "Hall Unavailable"
		if hall, err := s.halls.GetTx(ctx, tx, res.HallID); err == nil {
			hallName = hall.Name
		} else if !errors.Is(err, repository.ErrHallNotFound) {
			return err
		}

		wasApproved := res.Status == model.StatusApproved
		if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, model.StatusCancelled, nil); err != nil {
			return err
		}
		res.Status = model.StatusCancelled

		if err := s.notifyAdmins(ctx, tx, cancelledMessage(res.ID, hallName, wasApproved)); err != nil {
			return err
		}
		cancelled = res
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return cancelled, hallName, nil
}

// Available reports whether the interval [start, end) is free of APPROVED
// reservations for the hall.  excludeID, when non-zero, removes one
// reservation from consideration so an existing request can be checked
// against everyone else.
func (s *ReservationService) Available(ctx context.Context, hallID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	var available bool
	err := s.tx.RunTx(ctx, func(tx *sql.Tx) error {
		conflict, err := s.reservations.OverlapsTx(ctx, tx, hallID, start, end, excludeID)
		if err != nil {
			return err
		}
		available = !conflict
		return nil
	})
	return available, err
}

// SubmitFeedback stores feedback for one of the user's own reservations.
// Feedback is accepted only for APPROVED reservations whose end time has
// elapsed and that have no prior feedback; admins are notified of the
// submission in the same transaction.
func (s *ReservationService) SubmitFeedback(ctx context.Context, userID, reservationID uint64, rating uint8, comments *string) (*model.Feedback, error) {
	var created *model.Feedback
	err := s.tx.RunTx(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetTx(ctx, tx, reservationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrReservationNotFound
			}
			return err
		}
		if res.UserID == nil || *res.UserID != userID {
			return ErrReservationNotFound
		}
		if res.Status != model.StatusApproved || res.EndsAt.After(time.Now().UTC()) {
			return ErrFeedbackNotAllowed
		}

		fb := &model.Feedback{
			ReservationID: reservationID,
			Rating:        rating,
			Comments:      comments,
		}
		if err := s.feedback.CreateTx(ctx, tx, fb); err != nil {
			return err
		}
		if err := s.notifyAdmins(ctx, tx, feedbackMessage(reservationID)); err != nil {
			return err
		}
		created = fb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
