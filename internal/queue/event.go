// Package queue defines message payloads exchanged over the message broker.
package queue

// PoolRegisteredEvent is published when a member successfully joins a
// booking's registration pool.  It carries enough context for
// downstream consumers to log or notify without querying the primary
// database.
type PoolRegisteredEvent struct {
	EventID      string `json:"event_id"`
	PoolID       uint64 `json:"pool_id"`
	BookingID    uint64 `json:"booking_id"`
	MemberID     uint64 `json:"member_id"`
	MemberName   string `json:"member_name"`
	Status       string `json:"status"`
	Reactivated  bool   `json:"reactivated"`
	RegisteredAt string `json:"registered_at"`
}

// TeamSubstitutedEvent is published when a manager substitutes one
// assignment's occupant for another member.
type TeamSubstitutedEvent struct {
	EventID            string `json:"event_id"`
	InstanceID         uint64 `json:"instance_id"`
	BookingID          uint64 `json:"booking_id"`
	Position           string `json:"position"`
	OriginalMemberID   uint64 `json:"original_member_id"`
	SubstituteMemberID uint64 `json:"substitute_member_id"`
	ActorID            uint64 `json:"actor_id"`
	Reason             string `json:"reason"`
	SubstitutedAt      string `json:"substituted_at"`
}
