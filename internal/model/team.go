package model

import "time"

// TeamTemplate is a reusable, date-independent team shape under a
// booking.  Template names are unique per booking (Team A, Team B and
// so on).  Slot occupants at template level are informational; they
// become live assignments only when the template is instantiated.
type TeamTemplate struct {
	ID        uint64     `json:"id"`
	BookingID uint64     `json:"booking_id"`
	Name      string     `json:"name"`
	Positions []Position `json:"positions"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Position is one slot of a team template.  Slots are created with
// the template, one per position name of the booking's format, and
// are updated in place rather than rebuilt.
type Position struct {
	ID         uint64  `json:"id"`
	TemplateID uint64  `json:"template_id"`
	Position   string  `json:"position"`
	MemberID   *uint64 `json:"member_id,omitempty"`
}
