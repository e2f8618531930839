package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// rsaKeySet verifies RS256 tokens against a single key so tests can mint
// ID tokens locally without discovery.
type rsaKeySet struct{ pub *rsa.PublicKey }

func (k rsaKeySet) VerifySignature(ctx context.Context, raw string) ([]byte, error) {
	_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return k.pub, nil },
		jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

func TestVerifierWithKeys(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewVerifierWithKeys(GoogleIssuer, "client-1", rsaKeySet{pub: &key.PublicKey})

	mint := func(aud string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":            GoogleIssuer,
			"aud":            aud,
			"sub":            "google-123",
			"email":          "x@example.com",
			"email_verified": true,
			"iat":            time.Now().Unix(),
			"exp":            time.Now().Add(time.Hour).Unix(),
		})
		s, err := tok.SignedString(key)
		require.NoError(t, err)
		return s
	}

	claims, err := v.Verify(context.Background(), mint("client-1"))
	require.NoError(t, err)
	require.Equal(t, "x@example.com", claims["email"])
	require.Equal(t, true, claims["email_verified"])

	_, err = v.Verify(context.Background(), mint("someone-else"))
	require.Error(t, err)

	_, err = v.Verify(context.Background(), "garbage")
	require.Error(t, err)
}

func TestNewVerifierRequiresClientID(t *testing.T) {
	_, err := NewVerifier(context.Background(), GoogleIssuer, "")
	require.Error(t, err)
}
