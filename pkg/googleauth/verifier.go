// Package googleauth validates Google-issued ID tokens and extracts the
// identity claims this application cares about. The cryptographic work is
// delegated to Google's public keys via the idtoken package.
package googleauth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

var ErrInvalidIDToken = errors.New("invalid google id token")

// Claims is the verified identity claim set for a Google account.
type Claims struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Claims, error)
}

type verifier struct {
	clientID string
}

// NewVerifier returns a Verifier that checks signatures against Google's
// published keys and requires the token audience to equal clientID.
func NewVerifier(clientID string) Verifier {
	return &verifier{clientID: clientID}
}

func (v *verifier) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	if rawIDToken == "" {
		return nil, ErrInvalidIDToken
	}

	payload, err := idtoken.Validate(ctx, rawIDToken, v.clientID)
	if err != nil {
		return nil, ErrInvalidIDToken
	}

	claims := &Claims{
		Sub:     payload.Subject,
		Email:   stringClaim(payload, "email"),
		Name:    stringClaim(payload, "name"),
		Picture: stringClaim(payload, "picture"),
	}
	if claims.Sub == "" || claims.Email == "" {
		return nil, ErrInvalidIDToken
	}

	return claims, nil
}

func stringClaim(payload *idtoken.Payload, key string) string {
	if v, ok := payload.Claims[key].(string); ok {
		return v
	}
	return ""
}
