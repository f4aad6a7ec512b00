// Package audit records structured audit entries for every state
// transition in the pool and team workflow.  Entries are fire and
// forget: recording never fails the mutating operation it describes.
package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entity type labels used in audit entries.
const (
	EntityPool         = "pool"
	EntityRegistration = "pool_registration"
	EntityTemplate     = "team_template"
	EntityInstance     = "team_instance"
	EntityAssignment   = "assignment"
	EntityBooking      = "booking"
	EntityMember       = "member"
)

// Logger writes audit entries through a zap logger.  Each entry
// carries the acting member, the entity touched and a free-form
// description; updates additionally carry a before/after change set.
type Logger struct {
	log *zap.Logger
}

// New returns a Logger writing through the given zap logger.
func New(log *zap.Logger) *Logger {
	return &Logger{log: log.Named("audit")}
}

func (l *Logger) entry(action, entityType string, entityID, actorID uint64, description string) []zap.Field {
	return []zap.Field{
		zap.String("audit_id", uuid.New().String()),
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.Uint64("entity_id", entityID),
		zap.Uint64("actor_id", actorID),
		zap.String("description", description),
	}
}

// LogCreate records the creation of an entity.
func (l *Logger) LogCreate(ctx context.Context, entityType string, entityID, actorID uint64, description string) {
	l.log.Info("create", l.entry("create", entityType, entityID, actorID, description)...)
}

// LogUpdate records a state transition on an entity.  changes maps
// field names to "before -> after" strings.
func (l *Logger) LogUpdate(ctx context.Context, entityType string, entityID, actorID uint64, description string, changes map[string]string) {
	fields := l.entry("update", entityType, entityID, actorID, description)
	for k, v := range changes {
		fields = append(fields, zap.String("change."+k, v))
	}
	l.log.Info("update", fields...)
}

// LogDelete records the removal of an entity.
func (l *Logger) LogDelete(ctx context.Context, entityType string, entityID, actorID uint64, description string) {
	l.log.Info("delete", l.entry("delete", entityType, entityID, actorID, description)...)
}
