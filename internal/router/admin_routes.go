package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-reservation/internal/handler"
	"github.com/iliyamo/hall-reservation/internal/middleware"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1: hall and
// resource management plus the reservation review surface.
func RegisterAdmin(e *echo.Echo, a *handler.AdminReservationHandler, h *handler.HallHandler, r *handler.ResourceHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)

	// ---- Halls ----
	// Listing halls is handled by the public browse API.
	g.POST("/halls", h.Create)

	// ---- Resources ----
	g.POST("/resources", r.Create)
	g.DELETE("/resources/:id", r.Delete)

	// ---- Reservation review ----
	g.GET("/admin/reservations", a.List)
	g.POST("/admin/reservations/:id/approve", a.Approve)
	g.POST("/admin/reservations/:id/deny", a.Deny)
	g.GET("/admin/calendar", a.Calendar)
	g.GET("/admin/feedback", a.ListFeedback)
	g.GET("/admin/users", a.ListUsers)
}
