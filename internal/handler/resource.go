package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-reservation/internal/model"
	"github.com/iliyamo/hall-reservation/internal/repository"
)

// ResourceHandler manages the catalog of attachable resources such as
// projectors and sound systems.  Creation and deletion are admin only;
// the listing is public so students can pick resources when booking.
type ResourceHandler struct {
	Resources *repository.ResourceRepo
}

func NewResourceHandler(r *repository.ResourceRepo) *ResourceHandler {
	if r == nil {
		panic("nil repository passed to NewResourceHandler")
	}
	return &ResourceHandler{Resources: r}
}

// Create handles POST /v1/resources (admin).
func (h *ResourceHandler) Create(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	res := &model.Resource{Name: req.Name}
	if err := h.Resources.Create(c.Request().Context(), res); err != nil {
		if err == repository.ErrResourceNameExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "resource name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create resource failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// Delete handles DELETE /v1/resources/:id (admin).  Attachments to
// existing reservations are removed by the foreign key cascade.
func (h *ResourceHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	if err := h.Resources.Delete(c.Request().Context(), id); err != nil {
		if err == repository.ErrResourceNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete resource failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/resources (public).
func (h *ResourceHandler) List(c echo.Context) error {
	items, err := h.Resources.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load resources failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
