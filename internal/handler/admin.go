package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-reservation/internal/model"
	"github.com/iliyamo/hall-reservation/internal/repository"
)

// AdminReservationHandler serves the admin review surface: the pending
// queue, approve/deny decisions, the calendar of committed bookings and
// the feedback inbox.
type AdminReservationHandler struct {
	Svc          ReservationLifecycle
	Reservations *repository.ReservationRepo
	Feedback     *repository.FeedbackRepo
	Users        *repository.UserRepo
}

func NewAdminReservationHandler(svc ReservationLifecycle, res *repository.ReservationRepo, fb *repository.FeedbackRepo, users *repository.UserRepo) *AdminReservationHandler {
	if svc == nil {
		panic("nil service passed to NewAdminReservationHandler")
	}
	return &AdminReservationHandler{Svc: svc, Reservations: res, Feedback: fb, Users: users}
}

// List handles GET /v1/admin/reservations with optional status, hall_id,
// from and to query filters.
func (h *AdminReservationHandler) List(c echo.Context) error {
	var f repository.AdminFilter

	if status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))); status != "" {
		if !model.ValidStatus(status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
		}
		f.Status = status
	}
	if raw := c.QueryParam("hall_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall_id"})
		}
		f.HallID = n
	}
	if from, ok := queryTime(c, "from"); ok {
		f.StartFrom = from
	} else if c.QueryParam("from") != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC 3339"})
	}
	if to, ok := queryTime(c, "to"); ok {
		f.StartTo = to
	} else if c.QueryParam("to") != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be RFC 3339"})
	}

	items, err := h.Reservations.ListAll(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservations failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type decisionReq struct {
	AdminMessage *string `json:"admin_message"`
}

// Approve handles POST /v1/admin/reservations/:id/approve.  Approval
// re-checks the slot against other APPROVED reservations; a conflict
// returns 409 and leaves the reservation PENDING.
func (h *AdminReservationHandler) Approve(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req decisionReq
	_ = c.Bind(&req) // body is optional

	res, err := h.Svc.Approve(c.Request().Context(), id, req.AdminMessage)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Deny handles POST /v1/admin/reservations/:id/deny.
func (h *AdminReservationHandler) Deny(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req decisionReq
	_ = c.Bind(&req)

	res, err := h.Svc.Deny(c.Request().Context(), id, req.AdminMessage)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Calendar handles GET /v1/admin/calendar: APPROVED reservations inside
// [from, to], optionally limited to one hall.  Defaults to the coming
// month when no range is given.
func (h *AdminReservationHandler) Calendar(c echo.Context) error {
	now := time.Now().UTC()
	from, ok := queryTime(c, "from")
	if !ok {
		if c.QueryParam("from") != "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC 3339"})
		}
		from = now
	}
	to, ok := queryTime(c, "to")
	if !ok {
		if c.QueryParam("to") != "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be RFC 3339"})
		}
		to = from.AddDate(0, 1, 0)
	}
	if !to.After(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be after from"})
	}
	var hallID uint64
	if raw := c.QueryParam("hall_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall_id"})
		}
		hallID = n
	}

	items, err := h.Reservations.ListApprovedBetween(c.Request().Context(), from, to, hallID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load calendar failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListFeedback handles GET /v1/admin/feedback and, when reservation_id is
// given, narrows to one reservation.
func (h *AdminReservationHandler) ListFeedback(c echo.Context) error {
	if raw := c.QueryParam("reservation_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation_id"})
		}
		items, err := h.Feedback.ListByReservation(c.Request().Context(), id)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load feedback failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"items": items})
	}
	items, err := h.Feedback.ListAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load feedback failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminReservationHandler) ListUsers(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load users failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users})
}
