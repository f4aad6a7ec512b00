package model

import "time"

// Membership statuses.  Only the three active statuses make a member
// eligible for pool registration or team assignment.
const (
	MemberFull      = "FULL"
	MemberSocial    = "SOCIAL"
	MemberLife      = "LIFE"
	MemberInactive  = "INACTIVE"
	MemberSuspended = "SUSPENDED"
)

// Account roles stored on the members table and carried in the JWT
// "role" claim.
const (
	RoleMember  = "MEMBER"
	RoleManager = "MANAGER"
)

// ValidMemberStatus reports whether s is a known membership status.
func ValidMemberStatus(s string) bool {
	switch s {
	case MemberFull, MemberSocial, MemberLife, MemberInactive, MemberSuspended:
		return true
	}
	return false
}

// Member is one club member, combining the directory entry with the
// account credentials used to sign in.
//
// Fields:
//  ID           – primary key identifier.
//  FirstName    – given name.
//  LastName     – family name.
//  Email        – unique sign-in address.
//  PasswordHash – bcrypt hash of the account password.
//  Role         – MEMBER or MANAGER.
//  Status       – membership status (FULL, SOCIAL, LIFE, INACTIVE,
//                 SUSPENDED).
//  CreatedAt    – when the member record was created.
//  UpdatedAt    – last modification timestamp.
type Member struct {
	ID           uint64    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Active reports whether the member holds one of the playing
// membership statuses and may register for pools or be assigned to
// teams.
func (m *Member) Active() bool {
	switch m.Status {
	case MemberFull, MemberSocial, MemberLife:
		return true
	}
	return false
}

// Name returns the member's display name.
func (m *Member) Name() string {
	return m.FirstName + " " + m.LastName
}
