package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
	"github.com/iliyamo/clinic-slot-reservation/internal/repository"
)

// ProviderHandler exposes administrative CRUD for providers.  This is
// plumbing around the reservation engine: no locking is involved
// because provider rows never participate in the claim protocol.
type ProviderHandler struct {
	ProviderRepo *repository.ProviderRepo
	SlotRepo     *repository.SlotRepo
}

// NewProviderHandler constructs a ProviderHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewProviderHandler(providerRepo *repository.ProviderRepo, slotRepo *repository.SlotRepo) *ProviderHandler {
	if providerRepo == nil || slotRepo == nil {
		panic("nil repository passed to NewProviderHandler")
	}
	return &ProviderHandler{ProviderRepo: providerRepo, SlotRepo: slotRepo}
}

// CreateProvider handles POST /v1/providers.
func (h *ProviderHandler) CreateProvider(c echo.Context) error {
	var body struct {
		Name      string `json:"name"`
		Specialty string `json:"specialty"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	p := &model.Provider{Name: name, Specialty: strings.TrimSpace(body.Specialty)}
	if err := h.ProviderRepo.Create(c.Request().Context(), p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create provider"})
	}
	return c.JSON(http.StatusCreated, p)
}

// ListProviders handles GET /v1/providers.
func (h *ProviderHandler) ListProviders(c echo.Context) error {
	items, err := h.ProviderRepo.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetProvider handles GET /v1/providers/:id.
func (h *ProviderHandler) GetProvider(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	p, err := h.ProviderRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateProvider handles PUT /v1/providers/:id.
func (h *ProviderHandler) UpdateProvider(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	var body struct {
		Name      string `json:"name"`
		Specialty string `json:"specialty"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	ctx := c.Request().Context()
	if err := h.ProviderRepo.Update(ctx, id, name, strings.TrimSpace(body.Specialty)); err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	updated, err := h.ProviderRepo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteProvider handles DELETE /v1/providers/:id.  Providers that
// still own slots cannot be deleted.
func (h *ProviderHandler) DeleteProvider(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	if err := h.ProviderRepo.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "provider still has slots"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
