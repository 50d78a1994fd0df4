package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted record backing a refresh token. The token
// itself is never stored; only its SHA-256 digest is.
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RefreshTokenRepository interface {
	Create(token *RefreshToken) error
	GetByTokenHash(tokenHash string) (*RefreshToken, error)
	DeleteByTokenHash(tokenHash string) error
	DeleteByUserID(userID uuid.UUID) error
	// DeleteExpired removes every record whose expiry is before now and
	// reports how many were removed.
	DeleteExpired(now time.Time) (int64, error)
}
