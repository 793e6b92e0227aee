// Package audit records structured security events for authentication
// reconciliation. Events are written to the application log and, when a
// store is configured, persisted for later review.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/getaido/aido/provider"
)

// Event represents one reconciliation outcome. It carries identifying
// fields only; raw claims and secrets never enter an event.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`   // e.g. "oauth2.user.created"
	Status     string            `json:"status"` // "success" or "failure"
	Email      string            `json:"email"`
	Provider   provider.Provider `json:"provider"`
	ExternalID string            `json:"external_id"`
	UserID     uint              `json:"user_id,omitempty"`
	Message    string            `json:"message,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Reconciliation event types, one per branch of the reconcile algorithm.
const (
	EventUserCreated      = "oauth2.user.created"
	EventUserUpdated      = "oauth2.user.updated"
	EventUserRelinked     = "oauth2.user.relinked"
	EventProviderConflict = "oauth2.provider.conflict"
)

// Store persists audit events.
type Store interface {
	SaveEvent(ctx context.Context, event *Event) error
}

// Hooks provides extension points for audit behavior.
type Hooks struct {
	// BeforeSave runs before persisting; returning an error skips the save.
	BeforeSave func(ctx context.Context, event *Event) error

	// IDGenerator generates event IDs. If nil, the store assigns them.
	IDGenerator func() string
}

// Logger emits audit events to the application log and to an optional
// store. Persistence is best effort: a store failure is logged and never
// surfaces to the authentication attempt.
type Logger struct {
	log   *zap.Logger
	store Store
	hooks Hooks
}

// NewLogger creates an audit logger. store may be nil for log-only use.
func NewLogger(log *zap.Logger, store Store, hooks Hooks) *Logger {
	return &Logger{log: log, store: store, hooks: hooks}
}

// Record emits one event.
func (l *Logger) Record(ctx context.Context, event *Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.ID == "" && l.hooks.IDGenerator != nil {
		event.ID = l.hooks.IDGenerator()
	}

	l.log.Info("audit event",
		zap.String("type", event.Type),
		zap.String("status", event.Status),
		zap.String("email", event.Email),
		zap.String("provider", event.Provider.String()),
		zap.String("external_id", event.ExternalID),
		zap.Uint("user_id", event.UserID),
	)

	if l.store == nil {
		return
	}
	if l.hooks.BeforeSave != nil {
		if err := l.hooks.BeforeSave(ctx, event); err != nil {
			l.log.Warn("audit before-save hook rejected event", zap.Error(err))
			return
		}
	}
	if err := l.store.SaveEvent(ctx, event); err != nil {
		l.log.Warn("failed to persist audit event",
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}
