// Package user provides the core user record and principal types for Aido.
//
// A User is the persisted account a provider claim reconciles against. A
// Principal is the read-only projection handed to the web layer after a
// successful reconciliation; it is never persisted.
//
// # Invariants
//
//   - Email is unique across all user records.
//   - (Provider, ProviderID) is unique whenever ProviderID is non-empty.
package user

import (
	"time"

	"github.com/getaido/aido/provider"
)

// User represents a registered account.
type User struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Name            string            `gorm:"not null" json:"name"`
	Email           string            `gorm:"not null;uniqueIndex" json:"email"`
	Provider        provider.Provider `gorm:"not null;size:20;index:idx_provider_external,priority:1" json:"provider"`
	ProviderID      string            `gorm:"size:100;index:idx_provider_external,priority:2" json:"provider_id"`
	ProfileImageURL string            `gorm:"size:500" json:"profile_image_url,omitempty"`
	Enabled         bool              `gorm:"not null;default:true" json:"enabled"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Principal is the authenticated identity exposed to the web layer.
// Attributes holds the raw provider claim payload for the attempt.
type Principal struct {
	UserID      uint              `json:"user_id"`
	DisplayName string            `json:"display_name"`
	Email       string            `json:"email"`
	Provider    provider.Provider `json:"provider"`
	Attributes  map[string]any    `json:"-"`
}

// NewPrincipal projects a user record and the raw claim attributes into a
// Principal.
func NewPrincipal(u *User, attrs map[string]any) *Principal {
	return &Principal{
		UserID:      u.ID,
		DisplayName: u.Name,
		Email:       u.Email,
		Provider:    u.Provider,
		Attributes:  attrs,
	}
}
