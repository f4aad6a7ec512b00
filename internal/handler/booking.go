package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rmcalister/rinkroster/internal/audit"
	"github.com/rmcalister/rinkroster/internal/format"
	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/repository"
)

// BookingHandler serves green bookings.  Creation and mutation are
// manager operations; the upcoming listing backs the public browse
// endpoint.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Audit    *audit.Logger
}

func NewBookingHandler(b *repository.BookingRepo, a *audit.Logger) *BookingHandler {
	if b == nil {
		panic("nil repository passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Audit: a}
}

type bookingReq struct {
	BookedOn  string `json:"booked_on" validate:"required"`
	Session   uint32 `json:"session" validate:"required,min=1,max=4"`
	RinkCount uint32 `json:"rink_count" validate:"required,min=1,max=8"`
	Format    string `json:"format" validate:"required"`
	Gender    string `json:"gender" validate:"required,oneof=MEN WOMEN MIXED"`
	EventType string `json:"event_type" validate:"required,oneof=SOCIAL COMPETITION ROLLUP"`
}

func (req *bookingReq) toModel() (*model.Booking, error) {
	day, err := time.Parse("2006-01-02", req.BookedOn)
	if err != nil {
		return nil, err
	}
	return &model.Booking{
		BookedOn:  day,
		Session:   req.Session,
		RinkCount: req.RinkCount,
		Format:    strings.ToUpper(strings.TrimSpace(req.Format)),
		Gender:    req.Gender,
		EventType: req.EventType,
	}, nil
}

// Create books rinks for a date and session.
func (h *BookingHandler) Create(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := req.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booked_on must be YYYY-MM-DD"})
	}
	if !format.Valid(format.Format(b.Format)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown format"})
	}
	b.CreatedBy = actorID

	if err := h.Bookings.Create(c.Request().Context(), b); err != nil {
		return writeServiceError(c, err)
	}
	h.Audit.LogCreate(c.Request().Context(), audit.EntityBooking, b.ID, actorID,
		b.Format+" booking on "+b.BookedOn.Format("2006-01-02"))
	return c.JSON(http.StatusCreated, b)
}

// Get returns one booking.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListUpcoming returns bookings from today onward.  Publicly
// reachable and fronted by the response cache.
func (h *BookingHandler) ListUpcoming(c echo.Context) error {
	from := time.Now().UTC().Truncate(24 * time.Hour)
	bookings, err := h.Bookings.ListUpcoming(c.Request().Context(), from)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// Update rewrites a booking.  Changing the format is rejected once
// team instances exist for it.
func (h *BookingHandler) Update(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := req.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booked_on must be YYYY-MM-DD"})
	}
	if !format.Valid(format.Format(b.Format)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown format"})
	}
	b.ID = id

	if err := withRetry(func() error { return h.Bookings.Update(c.Request().Context(), b) }); err != nil {
		return writeServiceError(c, err)
	}
	h.Audit.LogUpdate(c.Request().Context(), audit.EntityBooking, id, actorID, "booking updated", nil)
	return c.JSON(http.StatusOK, b)
}

// Delete removes a booking along with its pool and templates.
// Rejected while team instances exist.
func (h *BookingHandler) Delete(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := withRetry(func() error { return h.Bookings.Delete(c.Request().Context(), id) }); err != nil {
		return writeServiceError(c, err)
	}
	h.Audit.LogDelete(c.Request().Context(), audit.EntityBooking, id, actorID, "booking deleted")
	return c.NoContent(http.StatusNoContent)
}
