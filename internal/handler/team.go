package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/service"
)

// TeamHandler serves team templates and their instantiation.  All
// mutating endpoints are manager operations.
type TeamHandler struct {
	Teams *service.TeamService
}

func NewTeamHandler(t *service.TeamService) *TeamHandler {
	if t == nil {
		panic("nil service passed to NewTeamHandler")
	}
	return &TeamHandler{Teams: t}
}

type createTemplateReq struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateTemplate adds a named template under a booking with one empty
// slot per position of the booking's format.
func (h *TeamHandler) CreateTemplate(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req createTemplateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := c.Validate(&req); err != nil {
		return err
	}

	tmpl, err := h.Teams.CreateTemplate(c.Request().Context(), actorID, bookingID, req.Name)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, tmpl)
}

// GetTemplate returns one template with its slots.
func (h *TeamHandler) GetTemplate(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	tmpl, err := h.Teams.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, tmpl)
}

// ListTemplates returns a booking's templates.
func (h *TeamHandler) ListTemplates(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	templates, err := h.Teams.ListTemplates(c.Request().Context(), bookingID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"templates": templates})
}

type assignPositionReq struct {
	MemberID uint64 `json:"member_id" validate:"required,min=1"`
}

// AssignPosition places a member into one slot of a template.
// PUT /templates/:id/positions/:position.
func (h *TeamHandler) AssignPosition(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	templateID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	position := strings.ToUpper(strings.TrimSpace(c.Param("position")))
	var req assignPositionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tmpl, err := h.Teams.AssignPosition(c.Request().Context(), actorID, templateID, position, req.MemberID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, tmpl)
}

// ClearPosition empties one slot of a template.
// DELETE /templates/:id/positions/:position.
func (h *TeamHandler) ClearPosition(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	templateID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	position := strings.ToUpper(strings.TrimSpace(c.Param("position")))

	tmpl, err := h.Teams.ClearPosition(c.Request().Context(), actorID, templateID, position)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, tmpl)
}

type instantiateReq struct {
	TemplateID uint64 `json:"template_id" validate:"required,min=1"`
}

// Instantiate copies a template into a team instance for a booking.
// POST /bookings/:id/teams.
func (h *TeamHandler) Instantiate(c echo.Context) error {
	actorID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req instantiateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var ti *model.TeamInstance
	err = withRetry(func() error {
		var ierr error
		ti, ierr = h.Teams.Instantiate(c.Request().Context(), actorID, req.TemplateID, bookingID)
		return ierr
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, ti)
}

// GetInstance returns one team instance with its assignments and
// substitution history.
func (h *TeamHandler) GetInstance(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid team id"})
	}
	ti, err := h.Teams.GetInstance(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, ti)
}

// ListInstances returns a booking's team instances.
func (h *TeamHandler) ListInstances(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	instances, err := h.Teams.ListInstances(c.Request().Context(), bookingID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"teams": instances})
}
