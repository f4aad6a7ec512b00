// Package repository contains the MySQL persistence layer.  This file
// defines the sentinel errors shared across repositories so that
// handlers and services can distinguish failure scenarios with
// errors.Is.  Each sentinel names the invariant that blocked the
// operation; handlers translate them into HTTP status codes.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Not-found errors: the referenced entity id does not resolve.
var (
	ErrMemberNotFound       = errors.New("member not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrPoolNotFound         = errors.New("pool not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrTemplateNotFound     = errors.New("team template not found")
	ErrInstanceNotFound     = errors.New("team instance not found")
	ErrAssignmentNotFound   = errors.New("assignment not found")
)

// State-conflict errors: the operation is invalid for the entity's
// current status.
var (
	ErrPoolExists            = errors.New("booking already has a pool")
	ErrPoolClosed            = errors.New("pool is closed")
	ErrAlreadyConfirmed      = errors.New("availability already confirmed")
	ErrAlreadyInstantiated   = errors.New("template already instantiated for this booking")
	ErrMemberAlreadyAssigned = errors.New("member already assigned to a team for this booking")
	ErrFormatLocked          = errors.New("booking format is locked while team instances exist")
	ErrBookingHasTeams       = errors.New("booking still has team instances")
)

// Validation errors: the request names something invalid regardless
// of current state.
var (
	ErrInvalidPosition       = errors.New("position is not part of the booking's format")
	ErrFormatMismatch        = errors.New("template format does not match booking format")
	ErrDuplicateTemplateName = errors.New("template name already used for this booking")
	ErrInvalidTransition     = errors.New("invalid registration status transition")
	ErrTemplateIncomplete    = errors.New("template has unfilled positions")
	ErrMemberInactive        = errors.New("member is not an active playing member")
	ErrEmailTaken            = errors.New("email already registered")
)

// ErrRetryConflict signals lock contention (deadlock or lock wait
// timeout).  Callers should retry the operation once before
// surfacing a failure.
var ErrRetryConflict = errors.New("transient lock conflict, retry")

// ErrForbidden is returned when the acting member may not operate on
// the resource, e.g. confirming someone else's assignment.
var ErrForbidden = errors.New("forbidden")

// mapLockErr converts MySQL deadlock (1213) and lock wait timeout
// (1205) errors into ErrRetryConflict and passes everything else
// through unchanged.
func mapLockErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1213, 1205:
			return ErrRetryConflict
		}
	}
	return err
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (1062), used to turn unique-index violations into the matching
// domain sentinel.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// isForeignKeyErr reports whether err is a MySQL foreign-key
// violation (1452), raised when a referenced parent row is missing.
func isForeignKeyErr(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1452
}

// errWithSentinel pairs a sentinel (for errors.Is dispatch) with a
// more specific cause message.
func errWithSentinel(sentinel, cause error) error {
	return fmt.Errorf("%w: %s", sentinel, cause.Error())
}
