// Package oidc verifies Google ID tokens presented at sign-in.
package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// GoogleIssuer is the issuer Google signs ID tokens with.
const GoogleIssuer = "https://accounts.google.com"

// Verifier checks ID token signatures against the provider's published keys
// and the audience against the configured client ID.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer. Discovery needs network
// access, so callers create the verifier once at startup.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("oidc client id is required")
	}
	if issuer == "" {
		issuer = GoogleIssuer
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewVerifierWithKeys builds a verifier from an explicit key set, skipping
// discovery. algs defaults to RS256 when empty.
func NewVerifierWithKeys(issuer, clientID string, keys oidc.KeySet, algs ...string) *Verifier {
	return &Verifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID, SupportedSigningAlgs: algs})}
}

// Verify validates raw and returns its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (map[string]interface{}, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	return claims, nil
}
