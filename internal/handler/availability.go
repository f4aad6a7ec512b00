package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/service"
)

// AvailabilityHandler serves availability confirmation and
// substitution on team assignments.  Members confirm their own
// assignment; substitution is a manager operation.
type AvailabilityHandler struct {
	Availability *service.AvailabilityService
}

func NewAvailabilityHandler(a *service.AvailabilityService) *AvailabilityHandler {
	if a == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Availability: a}
}

type confirmReq struct {
	Availability string `json:"availability" validate:"required,oneof=AVAILABLE UNAVAILABLE"`
}

// Confirm records the caller's one-time availability answer.
// POST /assignments/:id/confirm.
func (h *AvailabilityHandler) Confirm(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var a *model.Assignment
	err = withRetry(func() error {
		var cerr error
		if req.Availability == model.AvailabilityAvailable {
			a, cerr = h.Availability.ConfirmAvailable(c.Request().Context(), actorID, assignmentID)
		} else {
			a, cerr = h.Availability.ConfirmUnavailable(c.Request().Context(), actorID, assignmentID)
		}
		return cerr
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

type substituteReq struct {
	MemberID uint64 `json:"member_id" validate:"required,min=1"`
	Reason   string `json:"reason" validate:"max=255"`
}

// Substitute replaces an assignment's occupant and appends to the
// substitution log.  POST /assignments/:id/substitute, manager only.
func (h *AvailabilityHandler) Substitute(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	var req substituteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := c.Validate(&req); err != nil {
		return err
	}

	var a *model.Assignment
	err = withRetry(func() error {
		var serr error
		a, serr = h.Availability.Substitute(c.Request().Context(), actorID, assignmentID, req.MemberID, req.Reason)
		return serr
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// GetAssignment returns one assignment row.
func (h *AvailabilityHandler) GetAssignment(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	a, err := h.Availability.GetAssignment(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
