package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-reservation/internal/handler"
	"github.com/iliyamo/hall-reservation/internal/middleware"
)

// RegisterUser registers the authenticated booking endpoints under /v1.
// Both roles are admitted: students book and manage their own
// reservations, and admins share the reservation detail and notification
// endpoints.  Ownership checks happen in the handlers and the service.
func RegisterUser(e *echo.Echo, r *handler.ReservationHandler, n *handler.NotificationHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("STUDENT", "ADMIN"),
	)

	// ---- Reservations ----
	g.POST("/reservations", r.Create)
	g.GET("/reservations/:id", r.Get)
	g.PUT("/reservations/:id", r.Update)
	g.PATCH("/reservations/:id", r.Update)
	g.DELETE("/reservations/:id", r.Cancel)
	g.GET("/my-reservations", r.ListMine)
	g.GET("/my-reservations/past", r.PastApproved)
	g.GET("/halls/:id/availability", r.Availability)

	// ---- Feedback ----
	g.POST("/reservations/:id/feedback", r.SubmitFeedback)
	g.GET("/reservations/:id/feedback", r.ListFeedback)

	// ---- Notifications ----
	g.GET("/notifications", n.List)
	g.GET("/notifications/unread-count", n.UnreadCount)
	g.POST("/notifications/:id/read", n.MarkRead)
	g.POST("/notifications/read-all", n.MarkAllRead)
}
