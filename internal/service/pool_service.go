// Package service implements the pool, template and team workflow on
// top of the repository layer.  Services take explicit actor ids on
// every mutating operation; there is no ambient current-user state.
// Each service depends on narrow store interfaces so the business
// rules can be exercised against fakes.
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

// MemberStore is the read-only member directory view the services
// need: resolve an id and check the member's status.
type MemberStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Member, error)
}

// PoolStore defines the persistence operations behind PoolService.
type PoolStore interface {
	Create(ctx context.Context, bookingID uint64, autoCloseAt *time.Time) (*model.Pool, error)
	GetByID(ctx context.Context, id uint64) (*model.Pool, error)
	GetByBooking(ctx context.Context, bookingID uint64) (*model.Pool, error)
	Close(ctx context.Context, poolID uint64) (*model.Pool, error)
	Register(ctx context.Context, poolID, memberID uint64) (*model.PoolRegistration, repository.RegisterOutcome, error)
	Withdraw(ctx context.Context, poolID, memberID uint64) (*model.PoolRegistration, bool, error)
	Transition(ctx context.Context, poolID, memberID uint64, to string) (*model.PoolRegistration, string, error)
	ListByStatus(ctx context.Context, poolID uint64, status string) ([]model.PoolRegistration, error)
}

// AuditLogger records workflow state transitions.  Implementations
// must never fail the operation they describe.
type AuditLogger interface {
	LogCreate(ctx context.Context, entityType string, entityID, actorID uint64, description string)
	LogUpdate(ctx context.Context, entityType string, entityID, actorID uint64, description string, changes map[string]string)
	LogDelete(ctx context.Context, entityType string, entityID, actorID uint64, description string)
}

// EventPublisher sends workflow events to the message broker.
// Publishing is best-effort.
type EventPublisher interface {
	PublishPoolRegistered(ctx context.Context, ev queue.PoolRegisteredEvent) error
	PublishTeamSubstituted(ctx context.Context, ev queue.TeamSubstitutedEvent) error
}

// PoolService governs who may express interest in a booking and the
// state of that interest.
type PoolService struct {
	pools   PoolStore
	members MemberStore
	audit   AuditLogger
	events  EventPublisher
	log     *zap.Logger
}

// NewPoolService wires a PoolService.
func NewPoolService(pools PoolStore, members MemberStore, audit AuditLogger, events EventPublisher, log *zap.Logger) *PoolService {
	return &PoolService{pools: pools, members: members, audit: audit, events: events, log: log}
}

// OpenPool creates the registration pool on a booking.  A booking
// holds at most one pool; opening a second fails.
func (s *PoolService) OpenPool(ctx context.Context, actorID, bookingID uint64, autoCloseAt *time.Time) (*model.Pool, error) {
	p, err := s.pools.Create(ctx, bookingID, autoCloseAt)
	if err != nil {
		return nil, err
	}
	s.audit.LogCreate(ctx, "pool", p.ID, actorID,
		fmt.Sprintf("pool opened on booking %d", bookingID))
	return p, nil
}

// Register records a member's interest in an open pool.  Only active
// playing members may register.  A withdrawn registration is
// reactivated in place; a live one is returned unchanged.
func (s *PoolService) Register(ctx context.Context, actorID, poolID uint64) (*model.PoolRegistration, error) {
	member, err := s.members.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !member.Active() {
		return nil, repository.ErrMemberInactive
	}
	reg, outcome, err := s.pools.Register(ctx, poolID, actorID)
	if err != nil {
		return nil, err
	}
	if outcome == repository.RegisterUnchanged {
		return reg, nil
	}
	desc := "registered for pool"
	if outcome == repository.RegisterReactivated {
		desc = "re-registered after withdrawal"
	}
	s.audit.LogUpdate(ctx, "pool_registration", reg.ID, actorID, desc, map[string]string{
		"status": "-> " + reg.Status,
	})
	pool, perr := s.pools.GetByID(ctx, poolID)
	if perr != nil {
		s.log.Warn("pool lookup for event failed", zap.Uint64("pool_id", poolID), zap.Error(perr))
		return reg, nil
	}
	ev := queue.PoolRegisteredEvent{
		EventID:      uuid.New().String(),
		PoolID:       poolID,
		BookingID:    pool.BookingID,
		MemberID:     actorID,
		MemberName:   member.Name(),
		Status:       reg.Status,
		Reactivated:  outcome == repository.RegisterReactivated,
		RegisteredAt: reg.LastUpdated.UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishPoolRegistered(ctx, ev); err != nil {
		s.log.Warn("pool registered event publish failed", zap.Uint64("pool_id", poolID), zap.Error(err))
	}
	return reg, nil
}

// Withdraw removes a member from a pool.  Members withdraw
// themselves; managers may withdraw anyone.  Withdrawing twice is a
// no-op.
func (s *PoolService) Withdraw(ctx context.Context, actorID, poolID, memberID uint64) (*model.PoolRegistration, error) {
	reg, changed, err := s.pools.Withdraw(ctx, poolID, memberID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.audit.LogUpdate(ctx, "pool_registration", reg.ID, actorID, "withdrawn from pool", map[string]string{
			"status": "-> " + model.RegistrationWithdrawn,
		})
	}
	return reg, nil
}

// MarkAvailable moves the acting member's own registration from
// REGISTERED to AVAILABLE.
func (s *PoolService) MarkAvailable(ctx context.Context, actorID, poolID uint64) (*model.PoolRegistration, error) {
	return s.transition(ctx, actorID, poolID, actorID, model.RegistrationAvailable, "confirmed ready to play")
}

// Select moves a member's registration from AVAILABLE to SELECTED.
// Manager operation.
func (s *PoolService) Select(ctx context.Context, actorID, poolID, memberID uint64) (*model.PoolRegistration, error) {
	return s.transition(ctx, actorID, poolID, memberID, model.RegistrationSelected, "selected for a team")
}

// Unselect moves a member's registration from SELECTED back to
// AVAILABLE without losing the row.  Manager operation.
func (s *PoolService) Unselect(ctx context.Context, actorID, poolID, memberID uint64) (*model.PoolRegistration, error) {
	return s.transition(ctx, actorID, poolID, memberID, model.RegistrationAvailable, "unselected, returned to available")
}

func (s *PoolService) transition(ctx context.Context, actorID, poolID, memberID uint64, to, desc string) (*model.PoolRegistration, error) {
	reg, from, err := s.pools.Transition(ctx, poolID, memberID, to)
	if err != nil {
		return nil, err
	}
	s.audit.LogUpdate(ctx, "pool_registration", reg.ID, actorID, desc, map[string]string{
		"status": from + " -> " + reg.Status,
	})
	return reg, nil
}

// ClosePool closes a pool to new registrations.  Idempotent.
func (s *PoolService) ClosePool(ctx context.Context, actorID, poolID uint64) (*model.Pool, error) {
	before, err := s.pools.GetByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	p, err := s.pools.Close(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if before.IsOpen && !p.IsOpen {
		s.audit.LogUpdate(ctx, "pool", p.ID, actorID, "pool closed", map[string]string{
			"is_open": "true -> false",
		})
	}
	return p, nil
}

// GetByBooking returns the pool attached to a booking.
func (s *PoolService) GetByBooking(ctx context.Context, bookingID uint64) (*model.Pool, error) {
	return s.pools.GetByBooking(ctx, bookingID)
}

// ListByStatus returns a pool's registrations, optionally filtered by
// status.  Read-only.
func (s *PoolService) ListByStatus(ctx context.Context, poolID uint64, status string) ([]model.PoolRegistration, error) {
	if status != "" && !model.ValidRegistrationStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", repository.ErrInvalidTransition, status)
	}
	return s.pools.ListByStatus(ctx, poolID, status)
}
