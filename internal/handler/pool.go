package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/service"
)

// PoolHandler serves the registration pool workflow.  Opening,
// closing and selection are manager operations; registering,
// withdrawing and marking availability act on the caller's own row.
type PoolHandler struct {
	Pools *service.PoolService
}

func NewPoolHandler(p *service.PoolService) *PoolHandler {
	if p == nil {
		panic("nil service passed to NewPoolHandler")
	}
	return &PoolHandler{Pools: p}
}

type openPoolReq struct {
	AutoCloseAt *time.Time `json:"auto_close_at"`
}

// Open creates the pool on a booking.  POST /bookings/:id/pool.
func (h *PoolHandler) Open(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req openPoolReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.AutoCloseAt != nil && !req.AutoCloseAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "auto_close_at must be in the future"})
	}

	pool, err := h.Pools.OpenPool(c.Request().Context(), actorID, bookingID, req.AutoCloseAt)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, pool)
}

// GetByBooking returns the pool attached to a booking together with
// per-status registration counts.  Publicly reachable.
func (h *PoolHandler) GetByBooking(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	pool, err := h.Pools.GetByBooking(c.Request().Context(), bookingID)
	if err != nil {
		return writeServiceError(c, err)
	}
	regs, err := h.Pools.ListByStatus(c.Request().Context(), pool.ID, "")
	if err != nil {
		return writeServiceError(c, err)
	}
	counts := map[string]int{}
	for _, reg := range regs {
		counts[reg.Status]++
	}
	return c.JSON(http.StatusOK, echo.Map{"pool": pool, "counts": counts})
}

// Close shuts a pool to new registrations.  Idempotent.
func (h *PoolHandler) Close(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	poolID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	pool, err := h.Pools.ClosePool(c.Request().Context(), actorID, poolID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, pool)
}

// Register adds the caller to the pool.  Re-registering after a
// withdrawal reactivates the original row.
func (h *PoolHandler) Register(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	poolID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	var reg *model.PoolRegistration
	err = withRetry(func() error {
		var rerr error
		reg, rerr = h.Pools.Register(c.Request().Context(), actorID, poolID)
		return rerr
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, reg)
}

// Withdraw removes the caller, or for managers any member, from the
// pool.  DELETE /pools/:id/registrations/:memberID or /self.
func (h *PoolHandler) Withdraw(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	poolID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	memberID := actorID
	if param := c.Param("memberID"); param != "" {
		target, ok := pathID(c, "memberID")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
		}
		if target != actorID && c.Get("role") != model.RoleManager {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		memberID = target
	}
	reg, err := h.Pools.Withdraw(c.Request().Context(), actorID, poolID, memberID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// MarkAvailable moves the caller's own registration to AVAILABLE.
func (h *PoolHandler) MarkAvailable(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	poolID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	reg, err := h.Pools.MarkAvailable(c.Request().Context(), actorID, poolID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// Select moves a member's registration to SELECTED.  Manager only.
func (h *PoolHandler) Select(c echo.Context) error {
	return h.managerTransition(c, h.Pools.Select)
}

// Unselect returns a SELECTED member to AVAILABLE.  Manager only.
func (h *PoolHandler) Unselect(c echo.Context) error {
	return h.managerTransition(c, h.Pools.Unselect)
}

func (h *PoolHandler) managerTransition(c echo.Context,
	op func(ctx context.Context, actorID, poolID, memberID uint64) (*model.PoolRegistration, error)) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	poolID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	memberID, ok := pathID(c, "memberID")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	reg, err := op(c.Request().Context(), actorID, poolID, memberID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// ListRegistrations returns a pool's registrations, optionally
// filtered by ?status=.
func (h *PoolHandler) ListRegistrations(c echo.Context) error {
	poolID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pool id"})
	}
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	regs, err := h.Pools.ListByStatus(c.Request().Context(), poolID, status)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"registrations": regs})
}
