package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rmcalister/rinkroster/internal/model"
	"github.com/rmcalister/rinkroster/internal/repository"
)

// TemplateStore defines the persistence operations behind team
// template editing.
type TemplateStore interface {
	Create(ctx context.Context, bookingID uint64, name string) (*model.TeamTemplate, error)
	GetByID(ctx context.Context, id uint64) (*model.TeamTemplate, error)
	ListByBooking(ctx context.Context, bookingID uint64) ([]model.TeamTemplate, error)
	AssignPosition(ctx context.Context, templateID uint64, position string, memberID uint64) error
	ClearPosition(ctx context.Context, templateID uint64, position string) error
}

// InstanceStore defines the persistence operations behind team
// instantiation.
type InstanceStore interface {
	Instantiate(ctx context.Context, templateID, bookingID uint64) (*model.TeamInstance, error)
	GetByID(ctx context.Context, id uint64) (*model.TeamInstance, error)
	ListByBooking(ctx context.Context, bookingID uint64) ([]model.TeamInstance, error)
}

// TeamService defines reusable team shapes and turns them into dated
// team instances.
type TeamService struct {
	templates TemplateStore
	instances InstanceStore
	members   MemberStore
	audit     AuditLogger
	log       *zap.Logger
}

// NewTeamService wires a TeamService.
func NewTeamService(templates TemplateStore, instances InstanceStore, members MemberStore, audit AuditLogger, log *zap.Logger) *TeamService {
	return &TeamService{templates: templates, instances: instances, members: members, audit: audit, log: log}
}

// CreateTemplate adds a named template under a booking, with one
// empty slot per position of the booking's format.
func (s *TeamService) CreateTemplate(ctx context.Context, actorID, bookingID uint64, name string) (*model.TeamTemplate, error) {
	t, err := s.templates.Create(ctx, bookingID, name)
	if err != nil {
		return nil, err
	}
	s.audit.LogCreate(ctx, "team_template", t.ID, actorID,
		fmt.Sprintf("template %q created on booking %d", name, bookingID))
	return t, nil
}

// AssignPosition places an active member into one slot of a template.
// The write touches that slot alone; other slots are never rebuilt.
func (s *TeamService) AssignPosition(ctx context.Context, actorID, templateID uint64, position string, memberID uint64) (*model.TeamTemplate, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !member.Active() {
		return nil, repository.ErrMemberInactive
	}
	if err := s.templates.AssignPosition(ctx, templateID, position, memberID); err != nil {
		return nil, err
	}
	s.audit.LogUpdate(ctx, "team_template", templateID, actorID, "position assigned", map[string]string{
		position: fmt.Sprintf("-> member %d", memberID),
	})
	return s.templates.GetByID(ctx, templateID)
}

// ClearPosition empties one slot of a template.
func (s *TeamService) ClearPosition(ctx context.Context, actorID, templateID uint64, position string) (*model.TeamTemplate, error) {
	if err := s.templates.ClearPosition(ctx, templateID, position); err != nil {
		return nil, err
	}
	s.audit.LogUpdate(ctx, "team_template", templateID, actorID, "position cleared", map[string]string{
		position: "-> empty",
	})
	return s.templates.GetByID(ctx, templateID)
}

// GetTemplate returns one template with its slots.
func (s *TeamService) GetTemplate(ctx context.Context, id uint64) (*model.TeamTemplate, error) {
	return s.templates.GetByID(ctx, id)
}

// ListTemplates returns a booking's templates.
func (s *TeamService) ListTemplates(ctx context.Context, bookingID uint64) ([]model.TeamTemplate, error) {
	return s.templates.ListByBooking(ctx, bookingID)
}

// Instantiate copies a template into a team instance for a booking.
// The copy is all-or-nothing and every new assignment starts PENDING;
// afterwards the instance lives its own life, disconnected from the
// template.
func (s *TeamService) Instantiate(ctx context.Context, actorID, templateID, bookingID uint64) (*model.TeamInstance, error) {
	ti, err := s.instances.Instantiate(ctx, templateID, bookingID)
	if err != nil {
		return nil, err
	}
	s.audit.LogCreate(ctx, "team_instance", ti.ID, actorID,
		fmt.Sprintf("template %d instantiated for booking %d with %d assignments",
			templateID, bookingID, len(ti.Assignments)))
	return ti, nil
}

// GetInstance returns one team instance with assignments and the
// substitution log.
func (s *TeamService) GetInstance(ctx context.Context, id uint64) (*model.TeamInstance, error) {
	return s.instances.GetByID(ctx, id)
}

// ListInstances returns a booking's team instances.
func (s *TeamService) ListInstances(ctx context.Context, bookingID uint64) ([]model.TeamInstance, error) {
	return s.instances.ListByBooking(ctx, bookingID)
}
