// Package reconcile matches provider-asserted identity claims against the
// user store, deciding per attempt whether to create, update, relink, or
// reject an account.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/getaido/aido/audit"
	"github.com/getaido/aido/provider"
	"github.com/getaido/aido/user"
)

// Store is the user-record collaborator reconciliation operates against.
// Lookups return (nil, nil) when no record matches.
type Store interface {
	FindByProviderAndExternalID(ctx context.Context, p provider.Provider, externalID string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	Create(ctx context.Context, u *user.User) (*user.User, error)
	Update(ctx context.Context, u *user.User) (*user.User, error)
}

// MissingEmailError is returned when a claim carries no email address.
// Reconciliation requires an email before any store access.
type MissingEmailError struct {
	Provider provider.Provider
}

func (e *MissingEmailError) Error() string {
	return fmt.Sprintf("reconcile: email not found from %s provider", e.Provider)
}

// ProviderConflictError is returned when the claim's email is already
// registered under a different provider. No mutation occurs.
type ProviderConflictError struct {
	Email    string
	Existing provider.Provider
	Attempt  provider.Provider
}

func (e *ProviderConflictError) Error() string {
	return fmt.Sprintf("reconcile: email already registered with %s provider, please login with your %s account",
		e.Existing, e.Existing)
}

// Reconciler applies the identity reconciliation algorithm. Errors it
// returns are terminal for the authentication attempt and must not be
// retried.
type Reconciler struct {
	store  Store
	audit  *audit.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTracer attaches an OpenTelemetry tracer to reconcile calls.
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) { r.tracer = t }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a Reconciler over the given store and audit logger.
func NewReconciler(store Store, auditLog *audit.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		audit:  auditLog,
		tracer: noop.NewTracerProvider().Tracer("reconcile"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile maps one claim to a Principal. Ordered, first match wins:
//
//  1. Lookup by (provider, external id): update name and avatar in place.
//  2. Lookup by email: a different stored provider is a conflict; the same
//     provider with a new external id is a relink.
//  3. Otherwise create a new enabled user record.
//
// attrs is the raw provider payload carried into the Principal; it never
// reaches the store or the audit trail.
func (r *Reconciler) Reconcile(ctx context.Context, p provider.Provider, claim *provider.Claim, attrs map[string]any) (*user.Principal, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.Reconcile",
		trace.WithAttributes(attribute.String("auth.provider", p.String())))
	defer span.End()

	if strings.TrimSpace(claim.Email) == "" {
		return nil, &MissingEmailError{Provider: p}
	}

	existing, err := r.store.FindByProviderAndExternalID(ctx, p, claim.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: lookup by provider id: %w", err)
	}
	if existing != nil {
		updated, err := r.applyClaim(ctx, existing, claim)
		if err != nil {
			return nil, err
		}
		r.record(ctx, audit.EventUserUpdated, "success", updated, p, claim)
		return user.NewPrincipal(updated, attrs), nil
	}

	byEmail, err := r.store.FindByEmail(ctx, claim.Email)
	if err != nil {
		return nil, fmt.Errorf("reconcile: lookup by email: %w", err)
	}
	if byEmail != nil {
		if byEmail.Provider != p {
			conflict := &ProviderConflictError{Email: claim.Email, Existing: byEmail.Provider, Attempt: p}
			r.record(ctx, audit.EventProviderConflict, "failure", byEmail, p, claim)
			return nil, conflict
		}

		// Same provider issued a new subject identifier for a known email.
		byEmail.ProviderID = claim.ExternalID
		relinked, err := r.applyClaim(ctx, byEmail, claim)
		if err != nil {
			return nil, err
		}
		r.record(ctx, audit.EventUserRelinked, "success", relinked, p, claim)
		return user.NewPrincipal(relinked, attrs), nil
	}

	now := r.now()
	created, err := r.store.Create(ctx, &user.User{
		Name:            claim.DisplayName,
		Email:           claim.Email,
		Provider:        p,
		ProviderID:      claim.ExternalID,
		ProfileImageURL: claim.AvatarURL,
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: create user: %w", err)
	}
	r.record(ctx, audit.EventUserCreated, "success", created, p, claim)
	return user.NewPrincipal(created, attrs), nil
}

// applyClaim overwrites the mutable profile fields from the claim and
// persists. Email and provider are never changed here.
func (r *Reconciler) applyClaim(ctx context.Context, u *user.User, claim *provider.Claim) (*user.User, error) {
	u.Name = claim.DisplayName
	u.ProfileImageURL = claim.AvatarURL
	u.UpdatedAt = r.now()

	updated, err := r.store.Update(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("reconcile: update user: %w", err)
	}
	return updated, nil
}

func (r *Reconciler) record(ctx context.Context, eventType, status string, u *user.User, p provider.Provider, claim *provider.Claim) {
	if r.audit == nil {
		return
	}
	event := &audit.Event{
		Type:       eventType,
		Status:     status,
		Email:      claim.Email,
		Provider:   p,
		ExternalID: claim.ExternalID,
	}
	if u != nil {
		event.UserID = u.ID
	}
	r.audit.Record(ctx, event)
}
