// Package auth signs users in through an OpenID Connect provider and
// keeps the session in a signed cookie.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultIssuer is Google's OpenID Connect issuer
const DefaultIssuer = "https://accounts.google.com"

// Identity is the verified profile returned by the provider
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Provider is the external identity provider.
type Provider interface {
	// AuthCodeURL returns the URL the browser is sent to.
	AuthCodeURL(state, nonce, redirectURL string) string
	// Exchange trades an authorization code for a verified identity.
	Exchange(ctx context.Context, code, redirectURL, nonce string) (Identity, error)
}

// OIDCProvider implements Provider with the authorization code flow.
type OIDCProvider struct {
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ Provider = (*OIDCProvider)(nil)

// NewOIDCProvider discovers issuer and prepares the client
func NewOIDCProvider(ctx context.Context, issuer, clientID, clientSecret string) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider: %w", err)
	}

	return &OIDCProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *OIDCProvider) AuthCodeURL(state, nonce, redirectURL string) string {
	cfg := p.config
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state, oidc.Nonce(nonce))
}

func (p *OIDCProvider) Exchange(ctx context.Context, code, redirectURL, nonce string) (Identity, error) {
	cfg := p.config
	cfg.RedirectURL = redirectURL

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawID, ok := token.Extra("id_token").(string)
	if !ok {
		return Identity{}, errors.New("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to verify id token: %w", err)
	}
	if idToken.Nonce != nonce {
		return Identity{}, errors.New("id token nonce mismatch")
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("failed to decode id token claims: %w", err)
	}

	return Identity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
