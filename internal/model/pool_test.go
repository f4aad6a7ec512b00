package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"registered to available", RegistrationRegistered, RegistrationAvailable, true},
		{"available to selected", RegistrationAvailable, RegistrationSelected, true},
		{"selected back to available", RegistrationSelected, RegistrationAvailable, true},
		{"registered straight to selected", RegistrationRegistered, RegistrationSelected, false},
		{"withdraw from registered", RegistrationRegistered, RegistrationWithdrawn, true},
		{"withdraw from selected", RegistrationSelected, RegistrationWithdrawn, true},
		{"withdraw twice", RegistrationWithdrawn, RegistrationWithdrawn, false},
		{"re-register after withdrawal", RegistrationWithdrawn, RegistrationRegistered, true},
		{"withdrawn cannot jump to available", RegistrationWithdrawn, RegistrationAvailable, false},
		{"no self transition", RegistrationAvailable, RegistrationAvailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCheckTransition(t *testing.T) {
	require.NoError(t, CheckTransition(RegistrationRegistered, RegistrationAvailable))

	err := CheckTransition(RegistrationRegistered, RegistrationSelected)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot move from REGISTERED to SELECTED")

	err = CheckTransition(RegistrationRegistered, "PAUSED")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown registration status")
}

func TestMemberActive(t *testing.T) {
	for _, s := range []string{MemberFull, MemberSocial, MemberLife} {
		m := Member{Status: s}
		assert.True(t, m.Active(), s)
	}
	for _, s := range []string{MemberInactive, MemberSuspended, ""} {
		m := Member{Status: s}
		assert.False(t, m.Active(), s)
	}
}
