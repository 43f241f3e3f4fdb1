package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-reservation/internal/model"
	"github.com/iliyamo/hall-reservation/internal/repository"
)

// HallHandler exposes hall management for admins and hall browsing for
// everyone.
type HallHandler struct {
	Halls *repository.HallRepo
}

func NewHallHandler(h *repository.HallRepo) *HallHandler {
	if h == nil {
		panic("nil repository passed to NewHallHandler")
	}
	return &HallHandler{Halls: h}
}

type hallReq struct {
	Name     string `json:"name"`
	Capacity uint32 `json:"capacity"`
}

// Create handles POST /v1/halls (admin).  Capacity is informational and
// never enforced against reservations.
func (h *HallHandler) Create(c echo.Context) error {
	var req hallReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}

	hall := &model.Hall{Name: req.Name, Capacity: req.Capacity}
	if err := h.Halls.Create(c.Request().Context(), hall); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create hall failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": hall})
}

// List handles GET /v1/halls (public).
func (h *HallHandler) List(c echo.Context) error {
	halls, err := h.Halls.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load halls failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": halls})
}

// Get handles GET /v1/halls/:id (public).
func (h *HallHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall id"})
	}
	hall, err := h.Halls.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrHallNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load hall failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": hall})
}
