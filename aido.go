// Package aido provides convenience constructors over the default wiring
// of the authentication backend.
package aido

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/getaido/aido/audit"
	"github.com/getaido/aido/persistence"
	"github.com/getaido/aido/reconcile"
	"github.com/getaido/aido/user"
)

// Default types for convenience
type User = user.User
type Principal = user.Principal

// NewDefaultReconciler creates a Reconciler over a GORM-backed store with
// audit events written to the same database.
func NewDefaultReconciler(db *gorm.DB, log *zap.Logger) *reconcile.Reconciler {
	repo := persistence.NewRepository(db)
	auditLog := audit.NewLogger(log, repo, audit.Hooks{})
	return reconcile.NewReconciler(repo, auditLog)
}
