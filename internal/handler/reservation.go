package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-slot-reservation/internal/model"
	"github.com/iliyamo/clinic-slot-reservation/internal/queue"
	"github.com/iliyamo/clinic-slot-reservation/internal/repository"
	"github.com/iliyamo/clinic-slot-reservation/internal/service"
)

// ReservationHandler translates HTTP requests into calls on the
// reservation engine and maps its typed failures to status codes:
// NotFound → 404, Conflict → 409, InvalidState → 422.  Everything else
// is a 500; the engine guarantees no partial mutation in that case.
type ReservationHandler struct {
	Manager *service.ReservationManager
}

// NewReservationHandler constructs a ReservationHandler.  The manager
// must be non-nil.
func NewReservationHandler(manager *service.ReservationManager) *ReservationHandler {
	if manager == nil {
		panic("nil manager passed to NewReservationHandler")
	}
	return &ReservationHandler{Manager: manager}
}

// writeServiceError maps a service failure to an HTTP response.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// CreateReservation handles POST /v1/reservations.  The body must
// contain slot_id, requester_name and requester_contact;
// requester_phone is optional.  On success it returns 201 with the
// confirmed reservation and publishes a reservation.confirmed event
// best-effort in the background.
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	var body struct {
		SlotID           uint64  `json:"slot_id"`
		RequesterName    string  `json:"requester_name"`
		RequesterContact string  `json:"requester_contact"`
		RequesterPhone   *string `json:"requester_phone"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.SlotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id is required"})
	}
	name := strings.TrimSpace(body.RequesterName)
	contact := strings.TrimSpace(body.RequesterContact)
	if name == "" || contact == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "requester_name and requester_contact are required"})
	}

	res, err := h.Manager.Create(c.Request().Context(), body.SlotID, service.Requester{
		Name:    name,
		Contact: contact,
		Phone:   body.RequesterPhone,
	})
	if err != nil {
		return writeServiceError(c, err)
	}

	// Publish outside the request's transaction and lifetime; a broker
	// outage must never undo or delay a committed reservation.
	go publishConfirmed(h.Manager, res)

	return c.JSON(http.StatusCreated, res)
}

// publishConfirmed loads display metadata for the event and publishes
// it.  Failures are logged only.  Runs detached from the request, so it
// carries its own deadline instead of the request context.
func publishConfirmed(m *service.ReservationManager, res *model.Reservation) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	detail, err := m.GetByID(ctx, res.ID)
	if err != nil {
		log.Printf("reservation event: load detail failed: %v", err)
		return
	}
	confirmedAt := ""
	if detail.ConfirmedAt != nil {
		confirmedAt = detail.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	_ = queue.PublishReservationConfirmed(ctx, queue.ReservationConfirmedEvent{
		ReservationID: detail.ID,
		SlotID:        detail.SlotID,
		ProviderID:    detail.ProviderID,
		ProviderName:  detail.ProviderName,
		SlotDate:      detail.SlotDate,
		StartTime:     detail.StartTime,
		RequesterName: detail.RequesterName,
		ConfirmedAt:   confirmedAt,
	})
}

// CancelReservation handles DELETE /v1/reservations/:id.  Returns 204
// on success; cancelling restores the slot to the pool when the
// reservation was holding it.
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Manager.Cancel(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetReservation handles GET /v1/reservations/:id.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	detail, err := h.Manager.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}

// ListReservations handles GET /v1/reservations.  Optional query
// parameters: status, provider_id, date (slot date, YYYY-MM-DD).
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	var f repository.ListFilter
	if raw := c.QueryParam("status"); raw != "" {
		st := model.Status(strings.ToUpper(raw))
		if !st.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		f.Status = &st
	}
	if raw := c.QueryParam("provider_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider_id"})
		}
		f.ProviderID = &id
	}
	if raw := c.QueryParam("date"); raw != "" {
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		f.Date = &raw
	}
	items, err := h.Manager.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ReservationStats handles GET /v1/reservations/stats and returns
// aggregate counts per status.
func (h *ReservationHandler) ReservationStats(c echo.Context) error {
	counts, err := h.Manager.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load stats"})
	}
	return c.JSON(http.StatusOK, echo.Map{"counts": counts})
}
