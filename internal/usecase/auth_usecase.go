package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finance-tracker/backend/internal/domain"
	"github.com/finance-tracker/backend/internal/token"
	"github.com/finance-tracker/backend/pkg/googleauth"
)

var (
	ErrInvalidCredential     = errors.New("invalid identity assertion")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrRefreshTokenRevoked   = errors.New("refresh token revoked or not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrStoreUnavailable      = errors.New("token store unavailable")
)

type AuthUsecase struct {
	userRepo  domain.UserRepository
	tokenRepo domain.RefreshTokenRepository
	verifier  googleauth.Verifier
	issuer    *token.Issuer
	logger    *slog.Logger
	now       func() time.Time
}

type LoginResult struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
	// FirstLogin reports whether this login provisioned a new user record.
	FirstLogin bool `json:"-"`
}

func NewAuthUsecase(
	userRepo domain.UserRepository,
	tokenRepo domain.RefreshTokenRepository,
	verifier googleauth.Verifier,
	issuer *token.Issuer,
	logger *slog.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		verifier:  verifier,
		issuer:    issuer,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the usecase clock. Intended for tests.
func (u *AuthUsecase) WithClock(now func() time.Time) *AuthUsecase {
	u.now = now
	return u
}

// Login exchanges a Google ID token for an access/refresh pair, provisioning
// the user on first login. Any prior refresh token for the user is revoked so
// at most one record stays live. Failure to persist the new record is logged
// but does not fail the login; the pair is still valid standalone and only a
// later refresh call will notice the missing record.
func (u *AuthUsecase) Login(ctx context.Context, rawIDToken string) (*LoginResult, error) {
	claims, err := u.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	user, created, err := u.findOrCreateUser(claims)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := u.issuer.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExpiry, err := u.issuer.IssueRefresh(user)
	if err != nil {
		return nil, err
	}

	if err := u.replaceRefreshToken(user.ID, refreshToken, refreshExpiry); err != nil {
		u.logger.Error("failed to persist refresh token",
			"user_id", user.ID, "error", err)
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		FirstLogin:   created,
	}, nil
}

// findOrCreateUser looks the user up by the stable Google subject id and
// provisions a record on first login. The returned flag distinguishes
// provisioning from a returning user.
func (u *AuthUsecase) findOrCreateUser(claims *googleauth.Claims) (*domain.User, bool, error) {
	user, err := u.userRepo.GetByGoogleID(claims.Sub)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user != nil {
		return user, false, nil
	}

	user = &domain.User{
		GoogleID: claims.Sub,
		Email:    claims.Email,
		Name:     claims.Name,
		Picture:  claims.Picture,
	}
	if err := u.userRepo.Create(user); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, true, nil
}

func (u *AuthUsecase) replaceRefreshToken(userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	if err := u.tokenRepo.DeleteByUserID(userID); err != nil {
		return err
	}
	return u.tokenRepo.Create(&domain.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: expiresAt,
	})
}

// Refresh issues a new access token against a previously stored refresh
// token. The refresh token's own signature and expiry are checked first; only
// then is the store consulted, so a well-formed token that was revoked (or
// replaced by a newer login) fails distinctly.
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := u.issuer.Parse(refreshToken)
	if err != nil {
		return "", ErrInvalidOrExpiredToken
	}

	stored, err := u.tokenRepo.GetByTokenHash(hashToken(refreshToken))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if stored == nil {
		return "", ErrRefreshTokenRevoked
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", ErrInvalidOrExpiredToken
	}
	user, err := u.userRepo.GetByID(userID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	accessToken, _, err := u.issuer.IssueAccess(user)
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// Revoke deletes the store record for this exact refresh token. Revoking an
// unknown or already-revoked token succeeds as a no-op, so logout is
// idempotent.
func (u *AuthUsecase) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := u.tokenRepo.DeleteByTokenHash(hashToken(refreshToken)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SweepExpired removes refresh-token records already past expiry. Expired
// tokens are rejected at refresh time regardless, so this is housekeeping.
func (u *AuthUsecase) SweepExpired(ctx context.Context) (int64, error) {
	return u.tokenRepo.DeleteExpired(u.now())
}

// RunSweeper sweeps once immediately and then on every interval tick until
// ctx is cancelled. Sweep failures are logged and never propagated.
func (u *AuthUsecase) RunSweeper(ctx context.Context, interval time.Duration) {
	sweep := func() {
		count, err := u.SweepExpired(ctx)
		if err != nil {
			u.logger.Warn("refresh token sweep failed", "error", err)
			return
		}
		u.logger.Info("swept expired refresh tokens", "count", count)
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func (u *AuthUsecase) GetUserByID(id uuid.UUID) (*domain.User, error) {
	return u.userRepo.GetByID(id)
}

func (u *AuthUsecase) Issuer() *token.Issuer {
	return u.issuer
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
