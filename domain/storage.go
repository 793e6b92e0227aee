package domain

import (
	"context"

	"github.com/getaido/aido/audit"
	"github.com/getaido/aido/provider"
	"github.com/getaido/aido/user"
)

// Storage defines the interface for all persistence operations.
type Storage interface {
	UserStorage
	AuditStorage
}

// UserStorage is the user-record collaborator the reconciler operates
// against. Lookups return (nil, nil) when no record matches; errors are
// reserved for store faults.
type UserStorage interface {
	FindByProviderAndExternalID(ctx context.Context, p provider.Provider, externalID string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	Create(ctx context.Context, u *user.User) (*user.User, error)
	Update(ctx context.Context, u *user.User) (*user.User, error)

	ListUsers(ctx context.Context) ([]user.User, error)
	GetUser(ctx context.Context, id uint) (*user.User, error)
	SearchUsers(ctx context.Context, keyword string) ([]user.User, error)
	DeleteUser(ctx context.Context, id uint) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// AuditStorage persists audit events.
type AuditStorage interface {
	SaveEvent(ctx context.Context, event *audit.Event) error
}
