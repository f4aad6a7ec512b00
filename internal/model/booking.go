package model

import "time"

// Event type codes for bookings.
const (
	EventSocial      = "SOCIAL"
	EventCompetition = "COMPETITION"
	EventRollUp      = "ROLLUP"
)

// Gender codes for bookings.
const (
	GenderMen   = "MEN"
	GenderWomen = "WOMEN"
	GenderMixed = "MIXED"
)

// Booking is one scheduled occurrence on the green.  It anchors at
// most one registration pool and any number of team instances.  The
// format must not change once team instances exist because position
// slot counts are derived from it.
//
// Fields:
//  ID        – primary key identifier.
//  BookedOn  – calendar date of the occurrence.
//  Session   – session slot within the day (1-based).
//  RinkCount – number of rinks reserved.
//  Format    – game format code (SINGLES, PAIRS, TRIPLES, FOURS).
//  Gender    – gender code (MEN, WOMEN, MIXED).
//  EventType – event type code (SOCIAL, COMPETITION, ROLLUP).
//  CreatedBy – member who created the booking.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last modification timestamp.
type Booking struct {
	ID        uint64    `json:"id"`
	BookedOn  time.Time `json:"booked_on"`
	Session   uint32    `json:"session"`
	RinkCount uint32    `json:"rink_count"`
	Format    string    `json:"format"`
	Gender    string    `json:"gender"`
	EventType string    `json:"event_type"`
	CreatedBy uint64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
