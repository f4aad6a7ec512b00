package model

import "time"

// Assignment availability statuses.  Confirmation is one-way: once an
// assignment leaves PENDING it never returns, and the answer never
// flips.  A manager substitution replaces the occupant and resets the
// new occupant to PENDING.
const (
	AvailabilityPending     = "PENDING"
	AvailabilityAvailable   = "AVAILABLE"
	AvailabilityUnavailable = "UNAVAILABLE"
)

// TeamInstance is a dated snapshot of a team template copied for one
// booking occurrence.  TemplateID records lineage only; edits to the
// template after instantiation never propagate here and vice versa.
//
// Fields:
//  ID            – primary key identifier.
//  BookingID     – booking occurrence this instance belongs to.
//  TemplateID    – template the instance was copied from.
//  TemplateName  – template name captured at copy time.
//  Assignments   – one per position slot of the booking's format.
//  Substitutions – append-only substitution history, oldest first.
//  CreatedAt     – when the copy was made.
type TeamInstance struct {
	ID            uint64         `json:"id"`
	BookingID     uint64         `json:"booking_id"`
	TemplateID    uint64         `json:"template_id"`
	TemplateName  string         `json:"template_name"`
	Assignments   []Assignment   `json:"assignments,omitempty"`
	Substitutions []Substitution `json:"substitutions,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Assignment is one member's occupancy of one position slot within a
// team instance.
//
// Fields:
//  ID            – primary key identifier.
//  InstanceID    – owning team instance.
//  Position      – position name within the format.
//  MemberID      – current occupant.
//  IsSubstitute  – whether the occupant arrived via substitution.
//  Availability  – PENDING, AVAILABLE or UNAVAILABLE.
//  ConfirmedAt   – set once when availability is first confirmed.
//  SubstitutedAt – set when a substitution last replaced the occupant.
type Assignment struct {
	ID            uint64     `json:"id"`
	InstanceID    uint64     `json:"instance_id"`
	Position      string     `json:"position"`
	MemberID      uint64     `json:"member_id"`
	IsSubstitute  bool       `json:"is_substitute"`
	Availability  string     `json:"availability"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	SubstitutedAt *time.Time `json:"substituted_at,omitempty"`
}

// Confirmed reports whether the assignment's availability has been
// answered.  A confirmed assignment can only change occupant through
// a manager substitution.
func (a *Assignment) Confirmed() bool {
	return a.ConfirmedAt != nil
}

// Substitution is one entry of a team instance's append-only
// substitution log.  Entries are never edited or removed.
type Substitution struct {
	ID                 uint64    `json:"id"`
	InstanceID         uint64    `json:"instance_id"`
	Position           string    `json:"position"`
	OriginalMemberID   uint64    `json:"original_member_id"`
	SubstituteMemberID uint64    `json:"substitute_member_id"`
	ActorID            uint64    `json:"actor_id"`
	Reason             string    `json:"reason"`
	CreatedAt          time.Time `json:"created_at"`
}
