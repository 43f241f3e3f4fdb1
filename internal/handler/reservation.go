package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-reservation/internal/model"
	"github.com/iliyamo/hall-reservation/internal/repository"
	"github.com/iliyamo/hall-reservation/internal/service"
)

// ReservationLifecycle is the slice of the reservation service the HTTP
// layer drives.  Declared here so handlers can be tested against a mock.
type ReservationLifecycle interface {
	Create(ctx context.Context, userID uint64, in service.ReservationInput) (*model.Reservation, error)
	Update(ctx context.Context, userID, reservationID uint64, in service.ReservationInput) (*model.Reservation, error)
	Approve(ctx context.Context, reservationID uint64, adminMessage *string) (*model.Reservation, error)
	Deny(ctx context.Context, reservationID uint64, adminMessage *string) (*model.Reservation, error)
	Cancel(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error)
	Available(ctx context.Context, hallID uint64, start, end time.Time, excludeID uint64) (bool, error)
	SubmitFeedback(ctx context.Context, userID, reservationID uint64, rating uint8, comments *string) (*model.Feedback, error)
}

// ReservationHandler serves the student-facing reservation endpoints.
// Writes go through the lifecycle service; listings read the repository
// directly.
type ReservationHandler struct {
	Svc          ReservationLifecycle
	Reservations *repository.ReservationRepo
	Feedback     *repository.FeedbackRepo
}

func NewReservationHandler(svc ReservationLifecycle, res *repository.ReservationRepo, fb *repository.FeedbackRepo) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc, Reservations: res, Feedback: fb}
}

type reservationReq struct {
	HallID      uint64    `json:"hall_id"`
	StartsAt    time.Time `json:"start_datetime"`
	EndsAt      time.Time `json:"end_datetime"`
	Description *string   `json:"description"`
	ResourceIDs []uint64  `json:"resource_ids"`
}

func (r reservationReq) input() service.ReservationInput {
	return service.ReservationInput{
		HallID:      r.HallID,
		StartsAt:    r.StartsAt.UTC(),
		EndsAt:      r.EndsAt.UTC(),
		Description: r.Description,
		ResourceIDs: r.ResourceIDs,
	}
}

// lifecycleError maps service sentinels onto HTTP responses.  Conflicting
// slots and frozen statuses are 409; failed ownership checks surface as
// 404 like a missing row.
func lifecycleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInterval):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end time must be after start time"})
	case errors.Is(err, service.ErrHallNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
	case errors.Is(err, service.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, service.ErrSlotConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "time slot is already reserved"})
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation can no longer be modified"})
	case errors.Is(err, service.ErrFeedbackNotAllowed):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "feedback not allowed for this reservation"})
	case errors.Is(err, repository.ErrFeedbackExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "feedback already submitted"})
	case errors.Is(err, repository.ErrLockTimeout):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "hall is busy, try again"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// Create handles POST /v1/reservations.  New reservations always start
// PENDING and wait for an admin decision.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.HallID == 0 || req.StartsAt.IsZero() || req.EndsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hall_id, start_datetime and end_datetime are required"})
	}

	res, err := h.Svc.Create(c.Request().Context(), userID, req.input())
	if err != nil {
		return lifecycleError(c, err)
	}
	h.attachResources(c, res)
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// attachResources fills in the linked resources on a freshly written
// reservation.  Lookup failures are ignored; the write already committed.
func (h *ReservationHandler) attachResources(c echo.Context, res *model.Reservation) {
	if h.Reservations == nil || res == nil {
		return
	}
	if items, err := h.Reservations.ResourcesFor(c.Request().Context(), res.ID); err == nil {
		res.Resources = items
	}
}

// Update handles PUT /v1/reservations/:id.  Only the owner may update and
// only while the reservation is still PENDING.
func (h *ReservationHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.HallID == 0 || req.StartsAt.IsZero() || req.EndsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hall_id, start_datetime and end_datetime are required"})
	}

	res, err := h.Svc.Update(c.Request().Context(), userID, id, req.input())
	if err != nil {
		return lifecycleError(c, err)
	}
	h.attachResources(c, res)
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Svc.Cancel(c.Request().Context(), userID, id)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// ListMine handles GET /v1/my-reservations with an optional ?status=
// filter.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && !model.ValidStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
	}
	items, err := h.Reservations.ListByUser(c.Request().Context(), userID, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservations failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/reservations/:id.  Owners see their own
// reservations; admins see any.  Everyone else gets 404 so the endpoint
// never leaks which ids exist.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	detail, err := h.Reservations.GetDetail(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservation failed"})
	}
	if !isAdmin(c) && (detail.UserID == nil || *detail.UserID != userID) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}

// PastApproved handles GET /v1/my-reservations/past: the user's elapsed
// APPROVED reservations, each flagged when feedback was already left.
func (h *ReservationHandler) PastApproved(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Reservations.ListPastApproved(c.Request().Context(), userID, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservations failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Availability handles GET /v1/halls/:id/availability.  start and end are
// RFC 3339 query parameters; exclude optionally removes one reservation
// from the check.
func (h *ReservationHandler) Availability(c echo.Context) error {
	hallID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall id"})
	}
	start, ok := queryTime(c, "start")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start must be RFC 3339"})
	}
	end, ok := queryTime(c, "end")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end must be RFC 3339"})
	}
	if !end.After(start) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end time must be after start time"})
	}
	var excludeID uint64
	if raw := c.QueryParam("exclude"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid exclude id"})
		}
		excludeID = n
	}

	available, err := h.Svc.Available(c.Request().Context(), hallID, start, end, excludeID)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": available})
}

// ListFeedback handles GET /v1/reservations/:id/feedback.  Owners see
// feedback on their own reservations; admins on any.
func (h *ReservationHandler) ListFeedback(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Reservations.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservation failed"})
	}
	if !isAdmin(c) && (res.UserID == nil || *res.UserID != userID) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	items, err := h.Feedback.ListByReservation(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load feedback failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// SubmitFeedback handles POST /v1/reservations/:id/feedback.
func (h *ReservationHandler) SubmitFeedback(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req struct {
		Rating   uint8   `json:"rating"`
		Comments *string `json:"comments"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 1 and 5"})
	}

	fb, err := h.Svc.SubmitFeedback(c.Request().Context(), userID, id, req.Rating, req.Comments)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": fb})
}
