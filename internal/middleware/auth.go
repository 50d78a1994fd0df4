package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/finance-tracker/backend/internal/token"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the verified caller attached to authenticated requests.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

type AuthMiddleware struct {
	issuer *token.Issuer
}

func NewAuthMiddleware(issuer *token.Issuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

// Authenticate gates a request on a valid bearer access token. The check is
// purely computational (signature + expiry); no store lookup happens here, so
// an access token stays valid for its full lifetime even after the owning
// refresh token is revoked. The 401 body never distinguishes a missing header
// from a malformed or expired token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(w)
			return
		}

		claims, err := m.issuer.Parse(parts[1])
		if err != nil {
			unauthorized(w)
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			unauthorized(w)
			return
		}

		identity := Identity{UserID: userID, Email: claims.Email}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"message":"Invalid or expired token"}`))
}

// GetIdentity returns the authenticated caller attached by Authenticate.
func GetIdentity(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
