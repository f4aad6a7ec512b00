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

type availabilityFixture struct {
	pools        *PoolService
	teams        *TeamService
	availability *AvailabilityService
	store        *memStore
	audit        *recordingAudit
	events       *recordingPublisher
}

func newAvailabilityFixture(t *testing.T) *availabilityFixture {
	t.Helper()
	store := newMemStore()
	audit := &recordingAudit{}
	events := &recordingPublisher{}
	log := zap.NewNop()
	return &availabilityFixture{
		pools:        NewPoolService(poolDirectory{store}, memberDirectory{store}, audit, events, log),
		teams:        NewTeamService(templateDirectory{store}, instanceDirectory{store}, memberDirectory{store}, audit, log),
		availability: NewAvailabilityService(instanceDirectory{store}, memberDirectory{store}, audit, events, log),
		store:        store,
		audit:        audit,
		events:       events,
	}
}

// buildInstance creates a booking of the given format, fills a
// template with fresh members and instantiates it.
func (f *availabilityFixture) buildInstance(t *testing.T, fm format.Format) (*model.TeamInstance, []*model.Member) {
	t.Helper()
	ctx := context.Background()
	booking := f.store.addBooking(fm)
	tmpl, err := f.teams.CreateTemplate(ctx, 1, booking.ID, "Selected Side")
	require.NoError(t, err)
	members := fillTemplate(t, f.teams, f.store, tmpl.ID, fm)
	ti, err := f.teams.Instantiate(ctx, 1, tmpl.ID, booking.ID)
	require.NoError(t, err)
	return ti, members
}

func TestConfirmAvailableIsOneWay(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	ti, members := f.buildInstance(t, format.Pairs)
	a := ti.Assignments[0]

	got, err := f.availability.ConfirmAvailable(ctx, members[0].ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityAvailable, got.Availability)
	require.NotNil(t, got.ConfirmedAt)
	firstConfirmed := *got.ConfirmedAt

	// no second answer, not even the same one
	_, err = f.availability.ConfirmAvailable(ctx, members[0].ID, a.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyConfirmed)
	_, err = f.availability.ConfirmUnavailable(ctx, members[0].ID, a.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyConfirmed)

	after, err := f.availability.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityAvailable, after.Availability)
	require.NotNil(t, after.ConfirmedAt)
	assert.Equal(t, firstConfirmed, *after.ConfirmedAt)
}

func TestConfirmUnavailableSticks(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	ti, members := f.buildInstance(t, format.Singles)
	a := ti.Assignments[0]

	got, err := f.availability.ConfirmUnavailable(ctx, members[0].ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityUnavailable, got.Availability)

	_, err = f.availability.ConfirmAvailable(ctx, members[0].ID, a.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyConfirmed)
}

func TestConfirmSomeoneElsesAssignmentForbidden(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	ti, members := f.buildInstance(t, format.Pairs)
	lead := ti.Assignments[0]

	_, err := f.availability.ConfirmAvailable(ctx, members[1].ID, lead.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	after, err := f.availability.GetAssignment(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityPending, after.Availability)
	assert.Nil(t, after.ConfirmedAt)
}

func TestSubstituteReplacesAndLogs(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()
	manager := f.store.addMember(model.MemberFull)

	ti, members := f.buildInstance(t, format.Fours)
	third := ti.Assignments[2]
	require.Equal(t, "THIRD", third.Position)

	// outgoing member had already confirmed available
	_, err := f.availability.ConfirmAvailable(ctx, members[2].ID, third.ID)
	require.NoError(t, err)

	replacement := f.store.addMember(model.MemberFull)
	got, err := f.availability.Substitute(ctx, manager.ID, third.ID, replacement.ID, "car broke down")
	require.NoError(t, err)

	assert.Equal(t, replacement.ID, got.MemberID)
	assert.True(t, got.IsSubstitute)
	assert.Equal(t, model.AvailabilityPending, got.Availability, "incoming member answers afresh")
	assert.Nil(t, got.ConfirmedAt)
	require.NotNil(t, got.SubstitutedAt)

	instance, err := f.teams.GetInstance(ctx, ti.ID)
	require.NoError(t, err)
	require.Len(t, instance.Substitutions, 1, "exactly one log entry per substitution")
	entry := instance.Substitutions[0]
	assert.Equal(t, "THIRD", entry.Position)
	assert.Equal(t, members[2].ID, entry.OriginalMemberID)
	assert.Equal(t, replacement.ID, entry.SubstituteMemberID)
	assert.Equal(t, manager.ID, entry.ActorID)
	assert.Equal(t, "car broke down", entry.Reason)

	require.Len(t, f.events.substituted, 1)
	assert.Equal(t, ti.ID, f.events.substituted[0].InstanceID)
	assert.Equal(t, members[2].ID, f.events.substituted[0].OriginalMemberID)
	assert.Equal(t, replacement.ID, f.events.substituted[0].SubstituteMemberID)

	// replacement can now confirm where the original cannot
	_, err = f.availability.ConfirmAvailable(ctx, members[2].ID, third.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	confirmed, err := f.availability.ConfirmAvailable(ctx, replacement.ID, third.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityAvailable, confirmed.Availability)
}

func TestSubstituteInactiveMemberFails(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	ti, _ := f.buildInstance(t, format.Pairs)
	suspended := f.store.addMember(model.MemberSuspended)

	_, err := f.availability.Substitute(ctx, 1, ti.Assignments[0].ID, suspended.ID, "")
	assert.ErrorIs(t, err, repository.ErrMemberInactive)

	instance, err := f.teams.GetInstance(ctx, ti.ID)
	require.NoError(t, err)
	assert.Empty(t, instance.Substitutions)
}

func TestSubstituteMemberAlreadyOnTeamFails(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	ti, members := f.buildInstance(t, format.Fours)

	// moving the SKIP into the LEAD slot would double-book them
	_, err := f.availability.Substitute(ctx, 1, ti.Assignments[0].ID, members[3].ID, "")
	assert.ErrorIs(t, err, repository.ErrMemberAlreadyAssigned)
}

func TestSubstitutionHistoryAccumulates(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	ti, members := f.buildInstance(t, format.Singles)
	a := ti.Assignments[0]

	first := f.store.addMember(model.MemberFull)
	second := f.store.addMember(model.MemberFull)

	_, err := f.availability.Substitute(ctx, 1, a.ID, first.ID, "illness")
	require.NoError(t, err)
	_, err = f.availability.Substitute(ctx, 1, a.ID, second.ID, "illness again")
	require.NoError(t, err)

	instance, err := f.teams.GetInstance(ctx, ti.ID)
	require.NoError(t, err)
	require.Len(t, instance.Substitutions, 2)
	assert.Equal(t, members[0].ID, instance.Substitutions[0].OriginalMemberID)
	assert.Equal(t, first.ID, instance.Substitutions[0].SubstituteMemberID)
	assert.Equal(t, first.ID, instance.Substitutions[1].OriginalMemberID)
	assert.Equal(t, second.ID, instance.Substitutions[1].SubstituteMemberID)
	assert.Equal(t, second.ID, instance.Assignments[0].MemberID)
}

// Full selection-day walkthrough: open a pool, take registrations,
// pick a side, instantiate it, collect answers and cover the one
// member who cannot play.
func TestSelectionDayWorkflow(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()
	manager := f.store.addMember(model.MemberFull)

	booking := f.store.addBooking(format.Fours)
	pool, err := f.pools.OpenPool(ctx, manager.ID, booking.ID, nil)
	require.NoError(t, err)

	players := make([]*model.Member, 0, 5)
	for i := 0; i < 5; i++ {
		players = append(players, f.store.addMember(model.MemberFull))
	}
	for _, p := range players {
		_, err := f.pools.Register(ctx, p.ID, pool.ID)
		require.NoError(t, err)
		_, err = f.pools.MarkAvailable(ctx, p.ID, pool.ID)
		require.NoError(t, err)
	}
	for _, p := range players[:4] {
		_, err := f.pools.Select(ctx, manager.ID, pool.ID, p.ID)
		require.NoError(t, err)
	}

	tmpl, err := f.teams.CreateTemplate(ctx, manager.ID, booking.ID, "Saturday Firsts")
	require.NoError(t, err)
	order, err := format.Positions(format.Fours)
	require.NoError(t, err)
	for i, pos := range order {
		_, err := f.teams.AssignPosition(ctx, manager.ID, tmpl.ID, pos, players[i].ID)
		require.NoError(t, err)
	}

	_, err = f.pools.ClosePool(ctx, manager.ID, pool.ID)
	require.NoError(t, err)

	ti, err := f.teams.Instantiate(ctx, manager.ID, tmpl.ID, booking.ID)
	require.NoError(t, err)
	require.Len(t, ti.Assignments, 4)

	// three can play, the SECOND cannot
	for i, a := range ti.Assignments {
		if a.Position == "SECOND" {
			_, err = f.availability.ConfirmUnavailable(ctx, players[i].ID, a.ID)
		} else {
			_, err = f.availability.ConfirmAvailable(ctx, players[i].ID, a.ID)
		}
		require.NoError(t, err)
	}

	var secondID uint64
	for _, a := range ti.Assignments {
		if a.Position == "SECOND" {
			secondID = a.ID
		}
	}
	reserve := players[4]
	got, err := f.availability.Substitute(ctx, manager.ID, secondID, reserve.ID, "unavailable")
	require.NoError(t, err)
	assert.Equal(t, reserve.ID, got.MemberID)

	_, err = f.availability.ConfirmAvailable(ctx, reserve.ID, secondID)
	require.NoError(t, err)

	final, err := f.teams.GetInstance(ctx, ti.ID)
	require.NoError(t, err)
	require.Len(t, final.Substitutions, 1)
	for _, a := range final.Assignments {
		assert.Equal(t, model.AvailabilityAvailable, a.Availability)
		require.NotNil(t, a.ConfirmedAt)
	}
}
