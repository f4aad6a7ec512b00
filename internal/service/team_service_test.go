package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rmcalister/rinkroster/internal/format"
	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/repository"
)

func newTeamFixture(t *testing.T) (*TeamService, *memStore, *recordingAudit) {
	t.Helper()
	store := newMemStore()
	audit := &recordingAudit{}
	svc := NewTeamService(templateDirectory{store}, instanceDirectory{store}, memberDirectory{store}, audit, zap.NewNop())
	return svc, store, audit
}

// fillTemplate assigns a fresh active member to every slot and
// returns them in position order.
func fillTemplate(t *testing.T, svc *TeamService, store *memStore, templateID uint64, f format.Format) []*model.Member {
	t.Helper()
	order, err := format.Positions(f)
	require.NoError(t, err)
	members := make([]*model.Member, 0, len(order))
	for _, pos := range order {
		m := store.addMember(model.MemberFull)
		_, err := svc.AssignPosition(context.Background(), 1, templateID, pos, m.ID)
		require.NoError(t, err)
		members = append(members, m)
	}
	return members
}

func TestCreateTemplateBuildsSlotsForFormat(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	cases := []struct {
		f    format.Format
		want []string
	}{
		{format.Singles, []string{"SKIP"}},
		{format.Pairs, []string{"LEAD", "SKIP"}},
		{format.Triples, []string{"LEAD", "SECOND", "SKIP"}},
		{format.Fours, []string{"LEAD", "SECOND", "THIRD", "SKIP"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.f), func(t *testing.T) {
			booking := store.addBooking(tc.f)
			tmpl, err := svc.CreateTemplate(ctx, 1, booking.ID, "A Team")
			require.NoError(t, err)
			require.Len(t, tmpl.Positions, len(tc.want))
			for i, pos := range tmpl.Positions {
				assert.Equal(t, tc.want[i], pos.Position)
				assert.Nil(t, pos.MemberID, "new slots start empty")
			}
		})
	}
}

func TestCreateTemplateDuplicateName(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Fours)
	_, err := svc.CreateTemplate(ctx, 1, booking.ID, "Tuesday Firsts")
	require.NoError(t, err)

	_, err = svc.CreateTemplate(ctx, 1, booking.ID, "Tuesday Firsts")
	assert.ErrorIs(t, err, repository.ErrDuplicateTemplateName)

	// the same name under a different booking is fine
	other := store.addBooking(format.Fours)
	_, err = svc.CreateTemplate(ctx, 1, other.ID, "Tuesday Firsts")
	assert.NoError(t, err)
}

func TestAssignPositionRejectsUnknownSlot(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Pairs)
	tmpl, err := svc.CreateTemplate(ctx, 1, booking.ID, "Pair One")
	require.NoError(t, err)
	member := store.addMember(model.MemberFull)

	// THIRD exists in FOURS but not in PAIRS
	_, err = svc.AssignPosition(ctx, 1, tmpl.ID, "THIRD", member.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidPosition)
}

func TestAssignPositionRejectsInactiveMember(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Pairs)
	tmpl, err := svc.CreateTemplate(ctx, 1, booking.ID, "Pair One")
	require.NoError(t, err)
	inactive := store.addMember(model.MemberInactive)

	_, err = svc.AssignPosition(ctx, 1, tmpl.ID, "LEAD", inactive.ID)
	assert.ErrorIs(t, err, repository.ErrMemberInactive)
}

func TestAssignAndClearLeaveOtherSlotsAlone(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Triples)
	tmpl, err := svc.CreateTemplate(ctx, 1, booking.ID, "Trips")
	require.NoError(t, err)
	lead := store.addMember(model.MemberFull)
	skip := store.addMember(model.MemberFull)

	_, err = svc.AssignPosition(ctx, 1, tmpl.ID, "LEAD", lead.ID)
	require.NoError(t, err)
	got, err := svc.AssignPosition(ctx, 1, tmpl.ID, "SKIP", skip.ID)
	require.NoError(t, err)

	require.NotNil(t, got.Positions[0].MemberID)
	assert.Equal(t, lead.ID, *got.Positions[0].MemberID)
	assert.Nil(t, got.Positions[1].MemberID)

	got, err = svc.ClearPosition(ctx, 1, tmpl.ID, "SKIP")
	require.NoError(t, err)
	require.NotNil(t, got.Positions[0].MemberID, "clearing SKIP must not touch LEAD")
	assert.Equal(t, lead.ID, *got.Positions[0].MemberID)
	assert.Nil(t, got.Positions[2].MemberID)
}

func TestInstantiateCopiesTemplate(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Fours)
	tmpl, err := svc.CreateTemplate(ctx, 1, booking.ID, "Firsts")
	require.NoError(t, err)
	members := fillTemplate(t, svc, store, tmpl.ID, format.Fours)

	ti, err := svc.Instantiate(ctx, 1, tmpl.ID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, ti.TemplateID)
	assert.Equal(t, "Firsts", ti.TemplateName)
	require.Len(t, ti.Assignments, 4)

	seen := map[uint64]bool{}
	for _, a := range ti.Assignments {
		assert.Equal(t, model.AvailabilityPending, a.Availability)
		assert.False(t, a.IsSubstitute)
		assert.Nil(t, a.ConfirmedAt)
		seen[a.MemberID] = true
	}
	for _, m := range members {
		assert.True(t, seen[m.ID])
	}
}

func TestInstantiateTwiceFails(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Pairs)
	tmpl, err := svc.CreateTemplate(ctx, 1, booking.ID, "Pair One")
	require.NoError(t, err)
	fillTemplate(t, svc, store, tmpl.ID, format.Pairs)

	_, err = svc.Instantiate(ctx, 1, tmpl.ID, booking.ID)
	require.NoError(t, err)

	_, err = svc.Instantiate(ctx, 1, tmpl.ID, booking.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyInstantiated)

	instances, err := svc.ListInstances(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Len(t, instances[0].Assignments, 2)
}

func TestInstantiateIncompleteTemplateFails(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Triples)
	tmpl, err := svc.CreateTemplate(ctx, 1, booking.ID, "Trips")
	require.NoError(t, err)
	m := store.addMember(model.MemberFull)
	_, err = svc.AssignPosition(ctx, 1, tmpl.ID, "LEAD", m.ID)
	require.NoError(t, err)

	_, err = svc.Instantiate(ctx, 1, tmpl.ID, booking.ID)
	assert.ErrorIs(t, err, repository.ErrTemplateIncomplete)
}

func TestInstantiateFormatMismatchFails(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	pairsBooking := store.addBooking(format.Pairs)
	foursBooking := store.addBooking(format.Fours)
	tmpl, err := svc.CreateTemplate(ctx, 1, pairsBooking.ID, "Pair One")
	require.NoError(t, err)
	fillTemplate(t, svc, store, tmpl.ID, format.Pairs)

	_, err = svc.Instantiate(ctx, 1, tmpl.ID, foursBooking.ID)
	assert.ErrorIs(t, err, repository.ErrFormatMismatch)
}

func TestInstantiateRejectsMemberAlreadyOnAnotherTeam(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Pairs)
	first, err := svc.CreateTemplate(ctx, 1, booking.ID, "Pair One")
	require.NoError(t, err)
	members := fillTemplate(t, svc, store, first.ID, format.Pairs)
	_, err = svc.Instantiate(ctx, 1, first.ID, booking.ID)
	require.NoError(t, err)

	second, err := svc.CreateTemplate(ctx, 1, booking.ID, "Pair Two")
	require.NoError(t, err)
	other := store.addMember(model.MemberFull)
	_, err = svc.AssignPosition(ctx, 1, second.ID, "LEAD", members[0].ID)
	require.NoError(t, err)
	_, err = svc.AssignPosition(ctx, 1, second.ID, "SKIP", other.ID)
	require.NoError(t, err)

	_, err = svc.Instantiate(ctx, 1, second.ID, booking.ID)
	assert.ErrorIs(t, err, repository.ErrMemberAlreadyAssigned)
}

func TestInstanceDetachedFromTemplate(t *testing.T) {
	svc, store, _ := newTeamFixture(t)
	ctx := context.Background()

	booking := store.addBooking(format.Singles)
	tmpl, err := svc.CreateTemplate(ctx, 1, booking.ID, "Solo")
	require.NoError(t, err)
	original := fillTemplate(t, svc, store, tmpl.ID, format.Singles)

	ti, err := svc.Instantiate(ctx, 1, tmpl.ID, booking.ID)
	require.NoError(t, err)

	// editing the template afterwards must not touch the instance
	replacement := store.addMember(model.MemberFull)
	_, err = svc.AssignPosition(ctx, 1, tmpl.ID, "SKIP", replacement.ID)
	require.NoError(t, err)

	got, err := svc.GetInstance(ctx, ti.ID)
	require.NoError(t, err)
	require.Len(t, got.Assignments, 1)
	assert.Equal(t, original[0].ID, got.Assignments[0].MemberID)
}
