package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/repository"
)

// MemberHandler serves the member directory.  Listing and mutation
// are manager operations; Me is available to any authenticated
// member.
type MemberHandler struct {
	Members *repository.MemberRepo
}

func NewMemberHandler(m *repository.MemberRepo) *MemberHandler {
	if m == nil {
		panic("nil repository passed to NewMemberHandler")
	}
	return &MemberHandler{Members: m}
}

// Me returns the authenticated member's own record.
func (h *MemberHandler) Me(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	m, err := h.Members.GetByID(c.Request().Context(), memberID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// List returns the directory, optionally filtered by ?status=.
func (h *MemberHandler) List(c echo.Context) error {
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && !model.ValidMemberStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	members, err := h.Members.List(c.Request().Context(), status)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"members": members})
}

// Get returns one member by id.
func (h *MemberHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	m, err := h.Members.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

type updateStatusReq struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus changes a member's club status.
func (h *MemberHandler) UpdateStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if !model.ValidMemberStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	if err := h.Members.UpdateStatus(c.Request().Context(), id, status); err != nil {
		return writeServiceError(c, err)
	}
	m, err := h.Members.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

type updateRoleReq struct {
	Role string `json:"role" validate:"required,oneof=MEMBER MANAGER"`
}

// UpdateRole promotes or demotes a member.
func (h *MemberHandler) UpdateRole(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	var req updateRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.Members.UpdateRole(c.Request().Context(), id, req.Role); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		}
		return writeServiceError(c, err)
	}
	m, err := h.Members.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}
