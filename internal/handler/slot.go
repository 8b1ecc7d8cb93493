package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
	"github.com/iliyamo/clinic-slot-reservation/internal/repository"
)

// SlotHandler exposes administrative slot endpoints: creating slots for
// a provider, browsing the open pool and deleting unused slots.
// Availability changes are never made here; only the reservation
// engine flips the available flag.
type SlotHandler struct {
	SlotRepo     *repository.SlotRepo
	ProviderRepo *repository.ProviderRepo
}

// NewSlotHandler constructs a SlotHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewSlotHandler(slotRepo *repository.SlotRepo, providerRepo *repository.ProviderRepo) *SlotHandler {
	if slotRepo == nil || providerRepo == nil {
		panic("nil repository passed to NewSlotHandler")
	}
	return &SlotHandler{SlotRepo: slotRepo, ProviderRepo: providerRepo}
}

// CreateSlot handles POST /v1/providers/:id/slots.  The body must
// contain date ("2006-01-02"), time ("15:04" or "15:04:05") and an
// optional duration in minutes (default 30).  Duplicate (provider,
// date, time) combinations are rejected with 409.
func (h *SlotHandler) CreateSlot(c echo.Context) error {
	providerID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || providerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	ctx := c.Request().Context()
	if _, err := h.ProviderRepo.GetByID(ctx, providerID); err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	var body struct {
		Date        string `json:"date"`
		Time        string `json:"time"`
		DurationMin uint32 `json:"duration_min"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(body.Date)); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	startTime := strings.TrimSpace(body.Time)
	if _, err := time.Parse("15:04:05", startTime); err != nil {
		if _, err := time.Parse("15:04", startTime); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "time must be HH:MM or HH:MM:SS"})
		}
		startTime += ":00"
	}
	duration := body.DurationMin
	if duration == 0 {
		duration = 30
	}
	slot := &model.Slot{
		ProviderID:  providerID,
		SlotDate:    strings.TrimSpace(body.Date),
		StartTime:   startTime,
		DurationMin: duration,
	}
	if err := h.SlotRepo.Create(ctx, slot); err != nil {
		if strings.Contains(err.Error(), "1062") {
			return c.JSON(http.StatusConflict, echo.Map{"error": "slot already exists for this provider, date and time"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create slot"})
	}
	return c.JSON(http.StatusCreated, slot)
}

// ListProviderSlots handles GET /v1/providers/:id/slots and returns
// every slot of the provider, booked or not.
func (h *SlotHandler) ListProviderSlots(c echo.Context) error {
	providerID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || providerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	ctx := c.Request().Context()
	if _, err := h.ProviderRepo.GetByID(ctx, providerID); err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	items, err := h.SlotRepo.ListByProvider(ctx, providerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListOpenSlots handles GET /v1/slots and returns available future
// slots.  Optional query parameters: provider_id, date (YYYY-MM-DD).
// The availability seen here is advisory only — the claim re-checks it
// under the row lock.
func (h *SlotHandler) ListOpenSlots(c echo.Context) error {
	var providerID *uint64
	if raw := c.QueryParam("provider_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider_id"})
		}
		providerID = &id
	}
	var date *string
	if raw := c.QueryParam("date"); raw != "" {
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		date = &raw
	}
	items, err := h.SlotRepo.ListOpen(c.Request().Context(), providerID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// DeleteSlot handles DELETE /v1/slots/:id.  Slots referenced by any
// reservation cannot be deleted.
func (h *SlotHandler) DeleteSlot(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	if err := h.SlotRepo.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "slot has reservations"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
