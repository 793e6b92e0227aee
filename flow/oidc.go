// Package flow drives the OAuth login flow: authorization URL issuance,
// code exchange, ID token verification, and handoff of the verified claims
// to identity reconciliation.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/getaido/aido/config"
	"github.com/getaido/aido/provider"
	"github.com/getaido/aido/reconcile"
	"github.com/getaido/aido/user"
)

// ErrProviderNotFound is returned for callbacks naming a provider that is
// not configured or not available.
var ErrProviderNotFound = errors.New("flow: provider not found")

type OIDCManager struct {
	reconciler *reconcile.Reconciler
	providers  map[string]*OIDCProviderData
}

type OIDCProviderData struct {
	Provider    *oidc.Provider
	OAuthConfig *oauth2.Config
}

// NewOIDCManager performs OIDC discovery for every available provider.
// Unavailable providers (missing or disabled credentials) are skipped, not
// errors.
func NewOIDCManager(ctx context.Context, reconciler *reconcile.Reconciler, configs map[string]config.OAuthProvider) (*OIDCManager, error) {
	providers := make(map[string]*OIDCProviderData)

	for name, cfg := range configs {
		if !cfg.Available() {
			continue
		}

		p, err := oidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("flow: failed to get provider %s: %w", name, err)
		}

		oauthConfig := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     p.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}

		providers[name] = &OIDCProviderData{
			Provider:    p,
			OAuthConfig: oauthConfig,
		}
	}

	return &OIDCManager{
		reconciler: reconciler,
		providers:  providers,
	}, nil
}

// Available reports whether the named provider completed discovery.
func (m *OIDCManager) Available(providerID string) bool {
	if m == nil {
		return false
	}
	_, ok := m.providers[providerID]
	return ok
}

// AuthCodeURL returns the provider's authorization URL for the given state.
func (m *OIDCManager) AuthCodeURL(providerID, state string) (string, error) {
	if m == nil {
		return "", ErrProviderNotFound
	}
	p, ok := m.providers[providerID]
	if !ok {
		return "", ErrProviderNotFound
	}
	return p.OAuthConfig.AuthCodeURL(state), nil
}

// HandleCallback exchanges the authorization code, verifies the ID token,
// and reconciles the asserted identity against the user store.
func (m *OIDCManager) HandleCallback(ctx context.Context, providerID, code string) (*user.Principal, error) {
	if m == nil {
		return nil, ErrProviderNotFound
	}
	p, ok := m.providers[providerID]
	if !ok {
		return nil, ErrProviderNotFound
	}

	token, err := p.OAuthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("flow: failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("flow: no id_token in token response")
	}

	verifier := p.Provider.Verifier(&oidc.Config{ClientID: p.OAuthConfig.ClientID})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("flow: failed to verify id token: %w", err)
	}

	var attrs map[string]any
	if err := idToken.Claims(&attrs); err != nil {
		return nil, fmt.Errorf("flow: failed to parse claims: %w", err)
	}

	prov := provider.FromString(providerID)
	claim, err := provider.Normalize(prov, attrs)
	if err != nil {
		return nil, err
	}

	return m.reconciler.Reconcile(ctx, prov, claim, attrs)
}
