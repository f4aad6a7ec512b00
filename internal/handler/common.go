// Package handler defines the HTTP handlers.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rmcalister/rinkroster/internal/repository"
)

// getMemberID extracts the authenticated member id placed in the
// context by the JWT middleware and converts it to uint64.
func getMemberID(c echo.Context) (uint64, error) {
	switch t := c.Get("member_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid member_id in context")
}

// pathID parses a numeric path parameter; zero is invalid.
func pathID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	return n, err == nil && n > 0
}

// writeServiceError maps the repository sentinels onto HTTP status
// codes: unresolved ids are 404, state conflicts 409, bad input 422,
// ownership failures 403.  Anything unrecognized becomes a 500.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrMemberNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrPoolNotFound),
		errors.Is(err, repository.ErrRegistrationNotFound),
		errors.Is(err, repository.ErrTemplateNotFound),
		errors.Is(err, repository.ErrInstanceNotFound),
		errors.Is(err, repository.ErrAssignmentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrPoolExists),
		errors.Is(err, repository.ErrPoolClosed),
		errors.Is(err, repository.ErrAlreadyConfirmed),
		errors.Is(err, repository.ErrAlreadyInstantiated),
		errors.Is(err, repository.ErrMemberAlreadyAssigned),
		errors.Is(err, repository.ErrFormatLocked),
		errors.Is(err, repository.ErrBookingHasTeams),
		errors.Is(err, repository.ErrDuplicateTemplateName),
		errors.Is(err, repository.ErrEmailTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrInvalidPosition),
		errors.Is(err, repository.ErrFormatMismatch),
		errors.Is(err, repository.ErrInvalidTransition),
		errors.Is(err, repository.ErrTemplateIncomplete),
		errors.Is(err, repository.ErrMemberInactive):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})

	case errors.Is(err, repository.ErrRetryConflict):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporary contention, retry"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// withRetry runs op and repeats it once when the database reports a
// transient lock conflict.
func withRetry(op func() error) error {
	err := op()
	if errors.Is(err, repository.ErrRetryConflict) {
		return op()
	}
	return err
}
