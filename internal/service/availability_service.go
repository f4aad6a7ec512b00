package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/queue"
	"github.com/rmcalister/rinkroster/internal/repository"
)

// AssignmentStore defines the persistence operations behind
// availability confirmation and substitution.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, id uint64) (*model.Assignment, error)
	GetByID(ctx context.Context, instanceID uint64) (*model.TeamInstance, error)
	Confirm(ctx context.Context, assignmentID uint64, availability string, expectMember *uint64) (*model.Assignment, error)
	Substitute(ctx context.Context, assignmentID, newMemberID, actorID uint64, reason string) (*model.Assignment, *model.Substitution, error)
}

// AvailabilityService tracks per-member confirmation and
// manager-directed replacement, preserving a durable history.
type AvailabilityService struct {
	assignments AssignmentStore
	members     MemberStore
	audit       AuditLogger
	events      EventPublisher
	log         *zap.Logger
}

// NewAvailabilityService wires an AvailabilityService.
func NewAvailabilityService(assignments AssignmentStore, members MemberStore, audit AuditLogger, events EventPublisher, log *zap.Logger) *AvailabilityService {
	return &AvailabilityService{assignments: assignments, members: members, audit: audit, events: events, log: log}
}

// ConfirmAvailable records that the assigned member can play.
// Confirmation is one-way and permanent: there is no unconfirm, and a
// second confirm fails whichever way the first one went.  Members can
// only confirm their own assignment; changing a confirmed answer
// requires a manager substitution.
func (s *AvailabilityService) ConfirmAvailable(ctx context.Context, actorID, assignmentID uint64) (*model.Assignment, error) {
	return s.confirm(ctx, actorID, assignmentID, model.AvailabilityAvailable)
}

// ConfirmUnavailable records that the assigned member cannot play.
// Same one-way rule as ConfirmAvailable.
func (s *AvailabilityService) ConfirmUnavailable(ctx context.Context, actorID, assignmentID uint64) (*model.Assignment, error) {
	return s.confirm(ctx, actorID, assignmentID, model.AvailabilityUnavailable)
}

func (s *AvailabilityService) confirm(ctx context.Context, actorID, assignmentID uint64, availability string) (*model.Assignment, error) {
	a, err := s.assignments.Confirm(ctx, assignmentID, availability, &actorID)
	if err != nil {
		return nil, err
	}
	s.audit.LogUpdate(ctx, "assignment", a.ID, actorID, "availability confirmed", map[string]string{
		"availability": model.AvailabilityPending + " -> " + a.Availability,
	})
	return a, nil
}

// Substitute replaces an assignment's occupant with another active
// member, regardless of whether the outgoing member had confirmed.
// The replacement and the log append happen atomically; the incoming
// member starts over at PENDING.
func (s *AvailabilityService) Substitute(ctx context.Context, actorID, assignmentID, newMemberID uint64, reason string) (*model.Assignment, error) {
	sub, err := s.members.GetByID(ctx, newMemberID)
	if err != nil {
		return nil, err
	}
	if !sub.Active() {
		return nil, repository.ErrMemberInactive
	}
	a, entry, err := s.assignments.Substitute(ctx, assignmentID, newMemberID, actorID, reason)
	if err != nil {
		return nil, err
	}
	s.audit.LogUpdate(ctx, "assignment", a.ID, actorID, "member substituted", map[string]string{
		"member":       uintsTo(entry.OriginalMemberID, entry.SubstituteMemberID),
		"availability": "-> " + model.AvailabilityPending,
	})
	instance, ierr := s.assignments.GetByID(ctx, a.InstanceID)
	if ierr != nil {
		s.log.Warn("instance lookup for event failed", zap.Uint64("instance_id", a.InstanceID), zap.Error(ierr))
		return a, nil
	}
	ev := queue.TeamSubstitutedEvent{
		EventID:            uuid.New().String(),
		InstanceID:         a.InstanceID,
		BookingID:          instance.BookingID,
		Position:           entry.Position,
		OriginalMemberID:   entry.OriginalMemberID,
		SubstituteMemberID: entry.SubstituteMemberID,
		ActorID:            actorID,
		Reason:             reason,
		SubstitutedAt:      entry.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishTeamSubstituted(ctx, ev); err != nil {
		s.log.Warn("substitution event publish failed", zap.Uint64("assignment_id", a.ID), zap.Error(err))
	}
	return a, nil
}

// GetAssignment returns one assignment row.
func (s *AvailabilityService) GetAssignment(ctx context.Context, id uint64) (*model.Assignment, error) {
	return s.assignments.GetAssignment(ctx, id)
}

func uintsTo(from, to uint64) string {
	return fmt.Sprintf("%d -> %d", from, to)
}
