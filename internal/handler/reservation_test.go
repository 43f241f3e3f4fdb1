package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/hall-reservation/internal/model"
	"github.com/iliyamo/hall-reservation/internal/service"
)

// mockLifecycle implements ReservationLifecycle with per-test function
// fields.  Unset methods fail loudly via nil dereference.
type mockLifecycle struct {
	create         func(ctx context.Context, userID uint64, in service.ReservationInput) (*model.Reservation, error)
	update         func(ctx context.Context, userID, id uint64, in service.ReservationInput) (*model.Reservation, error)
	approve        func(ctx context.Context, id uint64, msg *string) (*model.Reservation, error)
	deny           func(ctx context.Context, id uint64, msg *string) (*model.Reservation, error)
	cancel         func(ctx context.Context, userID, id uint64) (*model.Reservation, error)
	available      func(ctx context.Context, hallID uint64, start, end time.Time, excludeID uint64) (bool, error)
	submitFeedback func(ctx context.Context, userID, id uint64, rating uint8, comments *string) (*model.Feedback, error)
}

func (m *mockLifecycle) Create(ctx context.Context, userID uint64, in service.ReservationInput) (*model.Reservation, error) {
	return m.create(ctx, userID, in)
}
func (m *mockLifecycle) Update(ctx context.Context, userID, id uint64, in service.ReservationInput) (*model.Reservation, error) {
	return m.update(ctx, userID, id, in)
}
func (m *mockLifecycle) Approve(ctx context.Context, id uint64, msg *string) (*model.Reservation, error) {
	return m.approve(ctx, id, msg)
}
func (m *mockLifecycle) Deny(ctx context.Context, id uint64, msg *string) (*model.Reservation, error) {
	return m.deny(ctx, id, msg)
}
func (m *mockLifecycle) Cancel(ctx context.Context, userID, id uint64) (*model.Reservation, error) {
	return m.cancel(ctx, userID, id)
}
func (m *mockLifecycle) Available(ctx context.Context, hallID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	return m.available(ctx, hallID, start, end, excludeID)
}
func (m *mockLifecycle) SubmitFeedback(ctx context.Context, userID, id uint64, rating uint8, comments *string) (*model.Feedback, error) {
	return m.submitFeedback(ctx, userID, id, rating, comments)
}

// newContext builds an echo context carrying the claims JWTAuth would
// have injected.  JWT numbers decode as float64.
func newContext(method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(userID))
	c.Set("role", role)
	return c, rec
}

func TestCreateReservation(t *testing.T) {
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	m := &mockLifecycle{
		create: func(ctx context.Context, userID uint64, in service.ReservationInput) (*model.Reservation, error) {
			assert.Equal(t, uint64(7), userID)
			assert.Equal(t, uint64(1), in.HallID)
			assert.Equal(t, start, in.StartsAt)
			assert.Equal(t, []uint64{3, 4}, in.ResourceIDs)
			uid := userID
			return &model.Reservation{ID: 99, UserID: &uid, HallID: in.HallID, StartsAt: in.StartsAt, EndsAt: in.EndsAt, Status: model.StatusPending}, nil
		},
	}
	h := NewReservationHandler(m, nil, nil)

	body := `{"hall_id":1,"start_datetime":"2026-10-01T09:00:00Z","end_datetime":"2026-10-01T11:00:00Z","resource_ids":[3,4]}`
	c, rec := newContext(http.MethodPost, "/v1/reservations", body, 7, model.RoleStudent)
	assert.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Item model.Reservation `json:"item"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(99), resp.Item.ID)
	assert.Equal(t, model.StatusPending, resp.Item.Status)
}

func TestCreateReservationErrors(t *testing.T) {
	m := &mockLifecycle{
		create: func(ctx context.Context, userID uint64, in service.ReservationInput) (*model.Reservation, error) {
			return nil, service.ErrSlotConflict
		},
	}
	h := NewReservationHandler(m, nil, nil)

	// Missing required fields never reach the service.
	c, rec := newContext(http.MethodPost, "/v1/reservations", `{"hall_id":0}`, 7, model.RoleStudent)
	assert.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A slot conflict maps to 409.
	body := `{"hall_id":1,"start_datetime":"2026-10-01T09:00:00Z","end_datetime":"2026-10-01T11:00:00Z"}`
	c, rec = newContext(http.MethodPost, "/v1/reservations", body, 7, model.RoleStudent)
	assert.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateReservationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", service.ErrReservationNotFound, http.StatusNotFound},
		{"frozen", service.ErrInvalidState, http.StatusConflict},
		{"conflict", service.ErrSlotConflict, http.StatusConflict},
		{"hall missing", service.ErrHallNotFound, http.StatusNotFound},
	}
	body := `{"hall_id":1,"start_datetime":"2026-10-01T09:00:00Z","end_datetime":"2026-10-01T11:00:00Z"}`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockLifecycle{
				update: func(ctx context.Context, userID, id uint64, in service.ReservationInput) (*model.Reservation, error) {
					return nil, tt.err
				},
			}
			h := NewReservationHandler(m, nil, nil)
			c, rec := newContext(http.MethodPut, "/v1/reservations/5", body, 7, model.RoleStudent)
			c.SetParamNames("id")
			c.SetParamValues("5")
			assert.NoError(t, h.Update(c))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestCancelReservation(t *testing.T) {
	m := &mockLifecycle{
		cancel: func(ctx context.Context, userID, id uint64) (*model.Reservation, error) {
			assert.Equal(t, uint64(7), userID)
			assert.Equal(t, uint64(5), id)
			uid := userID
			return &model.Reservation{ID: id, UserID: &uid, Status: model.StatusCancelled}, nil
		},
	}
	h := NewReservationHandler(m, nil, nil)
	c, rec := newContext(http.MethodDelete, "/v1/reservations/5", "", 7, model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("5")
	assert.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Item model.Reservation `json:"item"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.StatusCancelled, resp.Item.Status)
}

func TestAvailabilityParams(t *testing.T) {
	m := &mockLifecycle{
		available: func(ctx context.Context, hallID uint64, start, end time.Time, excludeID uint64) (bool, error) {
			assert.Equal(t, uint64(2), hallID)
			assert.Equal(t, uint64(9), excludeID)
			return true, nil
		},
	}
	h := NewReservationHandler(m, nil, nil)

	c, rec := newContext(http.MethodGet, "/v1/halls/2/availability?start=2026-10-01T09:00:00Z&end=2026-10-01T11:00:00Z&exclude=9", "", 7, model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("2")
	assert.NoError(t, h.Availability(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":true}`, rec.Body.String())

	// end before start is rejected before reaching the service.
	c, rec = newContext(http.MethodGet, "/v1/halls/2/availability?start=2026-10-01T11:00:00Z&end=2026-10-01T09:00:00Z", "", 7, model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("2")
	assert.NoError(t, h.Availability(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed timestamps are rejected too.
	c, rec = newContext(http.MethodGet, "/v1/halls/2/availability?start=tomorrow&end=2026-10-01T11:00:00Z", "", 7, model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("2")
	assert.NoError(t, h.Availability(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	called := false
	m := &mockLifecycle{
		submitFeedback: func(ctx context.Context, userID, id uint64, rating uint8, comments *string) (*model.Feedback, error) {
			called = true
			return &model.Feedback{ID: 1, ReservationID: id, Rating: rating, Comments: comments}, nil
		},
	}
	h := NewReservationHandler(m, nil, nil)

	c, rec := newContext(http.MethodPost, "/v1/reservations/5/feedback", `{"rating":6}`, 7, model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("5")
	assert.NoError(t, h.SubmitFeedback(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)

	c, rec = newContext(http.MethodPost, "/v1/reservations/5/feedback", `{"rating":5,"comments":"great"}`, 7, model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("5")
	assert.NoError(t, h.SubmitFeedback(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, called)
}

func TestAdminDecisions(t *testing.T) {
	reason := "double booked"
	m := &mockLifecycle{
		approve: func(ctx context.Context, id uint64, msg *string) (*model.Reservation, error) {
			return nil, service.ErrSlotConflict
		},
		deny: func(ctx context.Context, id uint64, msg *string) (*model.Reservation, error) {
			assert.Equal(t, uint64(8), id)
			if assert.NotNil(t, msg) {
				assert.Equal(t, reason, *msg)
			}
			return &model.Reservation{ID: id, Status: model.StatusDenied, AdminMessage: msg}, nil
		},
	}
	h := NewAdminReservationHandler(m, nil, nil, nil)

	// Approving into an occupied slot reports 409 and leaves the
	// reservation pending.
	c, rec := newContext(http.MethodPost, "/v1/admin/reservations/8/approve", "", 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("8")
	assert.NoError(t, h.Approve(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = newContext(http.MethodPost, "/v1/admin/reservations/8/deny", `{"admin_message":"double booked"}`, 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("8")
	assert.NoError(t, h.Deny(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminDecisionNotFound(t *testing.T) {
	m := &mockLifecycle{
		approve: func(ctx context.Context, id uint64, msg *string) (*model.Reservation, error) {
			return nil, service.ErrReservationNotFound
		},
	}
	h := NewAdminReservationHandler(m, nil, nil, nil)

	c, rec := newContext(http.MethodPost, "/v1/admin/reservations/42/approve", "", 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("42")
	assert.NoError(t, h.Approve(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
