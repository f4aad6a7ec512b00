package model

import (
	"fmt"
	"time"
)

// Registration statuses.  WITHDRAWN is not terminal; re-registering a
// withdrawn member reactivates the same row.
const (
	RegistrationRegistered = "REGISTERED"
	RegistrationAvailable  = "AVAILABLE"
	RegistrationSelected   = "SELECTED"
	RegistrationWithdrawn  = "WITHDRAWN"
)

// Pool is the registration list attached to one booking.  Members may
// only register while the pool is open.  Closing an already-closed
// pool is a no-op.
//
// Fields:
//  ID          – primary key identifier.
//  BookingID   – owning booking (one pool per booking).
//  IsOpen      – whether new registrations are accepted.
//  AutoCloseAt – optional timestamp after which the pool closes itself.
//  CreatedAt   – when the pool was opened.
//  ClosedAt    – when the pool was closed, if it has been.
type Pool struct {
	ID          uint64     `json:"id"`
	BookingID   uint64     `json:"booking_id"`
	IsOpen      bool       `json:"is_open"`
	AutoCloseAt *time.Time `json:"auto_close_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// PoolRegistration records one member's interest in a pool.  There is
// exactly one row per (pool, member) pair for all time; the status
// lifecycle runs over that single row.
type PoolRegistration struct {
	ID           uint64     `json:"id"`
	PoolID       uint64     `json:"pool_id"`
	MemberID     uint64     `json:"member_id"`
	Status       string     `json:"status"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastUpdated  time.Time  `json:"last_updated"`
	WithdrawnAt  *time.Time `json:"withdrawn_at,omitempty"`
}

// registrationTransitions enumerates the permitted status moves.  Any
// status may move to WITHDRAWN, which is handled separately in
// CanTransition.
var registrationTransitions = map[string][]string{
	RegistrationRegistered: {RegistrationAvailable},
	RegistrationAvailable:  {RegistrationSelected},
	RegistrationSelected:   {RegistrationAvailable},
	RegistrationWithdrawn:  {RegistrationRegistered},
}

// ValidRegistrationStatus reports whether s is a known registration
// status code.
func ValidRegistrationStatus(s string) bool {
	switch s {
	case RegistrationRegistered, RegistrationAvailable, RegistrationSelected, RegistrationWithdrawn:
		return true
	}
	return false
}

// CanTransition reports whether a registration may move from one
// status to another.  Withdrawal is allowed from every status except
// WITHDRAWN itself (withdrawing twice is treated as a no-op by the
// caller, not a transition).
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	if to == RegistrationWithdrawn {
		return from != RegistrationWithdrawn
	}
	for _, next := range registrationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a descriptive error when the move from one
// registration status to another is not permitted.
func CheckTransition(from, to string) error {
	if !ValidRegistrationStatus(to) {
		return fmt.Errorf("unknown registration status %q", to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("registration cannot move from %s to %s", from, to)
	}
	return nil
}
