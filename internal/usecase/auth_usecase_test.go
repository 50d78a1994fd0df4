package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finance-tracker/backend/internal/domain"
	"github.com/finance-tracker/backend/internal/token"
	"github.com/finance-tracker/backend/internal/usecase"
	"github.com/finance-tracker/backend/pkg/googleauth"
)

// ----- mocks -----

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *domain.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uuid.UUID) (*domain.User, error) {
	args := m.Called(id)
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByGoogleID(googleID string) (*domain.User, error) {
	args := m.Called(googleID)
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Create(token *domain.RefreshToken) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) GetByTokenHash(tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(tokenHash)
	if t, ok := args.Get(0).(*domain.RefreshToken); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteByTokenHash(tokenHash string) error {
	args := m.Called(tokenHash)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteByUserID(userID uuid.UUID) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteExpired(now time.Time) (int64, error) {
	args := m.Called(now)
	return args.Get(0).(int64), args.Error(1)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, rawIDToken string) (*googleauth.Claims, error) {
	args := m.Called(ctx, rawIDToken)
	if c, ok := args.Get(0).(*googleauth.Claims); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

// ----- helpers -----

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIssuer() *token.Issuer {
	return token.NewIssuer("test-secret", 15*time.Minute, 30*24*time.Hour)
}

func googleClaims() *googleauth.Claims {
	return &googleauth.Claims{
		Sub:     "google-sub-123",
		Email:   "user@example.com",
		Name:    "Test User",
		Picture: "https://example.com/avatar.png",
	}
}

// ----- login -----

func TestLoginFirstTimeProvisionsUser(t *testing.T) {
	userRepo := new(MockUserRepository)
	tokenRepo := new(MockRefreshTokenRepository)
	verifier := new(MockVerifier)
	issuer := testIssuer()

	verifier.On("Verify", mock.Anything, "valid-id-token").Return(googleClaims(), nil)
	userRepo.On("GetByGoogleID", "google-sub-123").Return(nil, nil)
	userRepo.On("Create", mock.MatchedBy(func(u *domain.User) bool {
		return u.GoogleID == "google-sub-123" && u.Email == "user@example.com"
	})).Run(func(args mock.Arguments) {
		// The repository assigns the id on insert.
		args.Get(0).(*domain.User).ID = uuid.New()
	}).Return(nil)
	tokenRepo.On("DeleteByUserID", mock.Anything).Return(nil)
	tokenRepo.On("Create", mock.Anything).Return(nil)

	auth := usecase.NewAuthUsecase(userRepo, tokenRepo, verifier, issuer, testLogger())

	result, err := auth.Login(context.Background(), "valid-id-token")
	require.NoError(t, err)
	assert.True(t, result.FirstLogin)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	require.NotNil(t, result.User)

	// The access token's embedded subject is the new user's id.
	claims, err := issuer.Parse(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID.String(), claims.Subject)

	userRepo.AssertNumberOfCalls(t, "Create", 1)
	tokenRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestLoginReturningUserDoesNotProvision(t *testing.T) {
	userRepo := new(MockUserRepository)
	tokenRepo := new(MockRefreshTokenRepository)
	verifier := new(MockVerifier)

	existing := &domain.User{ID: uuid.New(), GoogleID: "google-sub-123", Email: "user@example.com"}

	verifier.On("Verify", mock.Anything, "valid-id-token").Return(googleClaims(), nil)
	userRepo.On("GetByGoogleID", "google-sub-123").Return(existing, nil)
	tokenRepo.On("DeleteByUserID", existing.ID).Return(nil)
	tokenRepo.On("Create", mock.Anything).Return(nil)

	auth := usecase.NewAuthUsecase(userRepo, tokenRepo, verifier, testIssuer(), testLogger())

	result, err := auth.Login(context.Background(), "valid-id-token")
	require.NoError(t, err)
	assert.False(t, result.FirstLogin)
	assert.Equal(t, existing.ID, result.User.ID)
	userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestLoginRevokesPriorRefreshTokensBeforeInsert(t *testing.T) {
	userRepo := new(MockUserRepository)
	tokenRepo := new(MockRefreshTokenRepository)
	verifier := new(MockVerifier)

	existing := &domain.User{ID: uuid.New(), GoogleID: "google-sub-123", Email: "user@example.com"}

	verifier.On("Verify", mock.Anything, mock.Anything).Return(googleClaims(), nil)
	userRepo.On("GetByGoogleID", mock.Anything).Return(existing, nil)

	var order []string
	tokenRepo.On("DeleteByUserID", existing.ID).Run(func(mock.Arguments) {
		order = append(order, "delete")
	}).Return(nil)
	tokenRepo.On("Create", mock.Anything).Run(func(mock.Arguments) {
		order = append(order, "create")
	}).Return(nil)

	auth := usecase.NewAuthUsecase(userRepo, tokenRepo, verifier, testIssuer(), testLogger())

	// Two logins in a row: each deletes all prior records before inserting,
	// so at most one record is live at any point.
	_, err := auth.Login(context.Background(), "id-token")
	require.NoError(t, err)
	_, err = auth.Login(context.Background(), "id-token")
	require.NoError(t, err)

	assert.Equal(t, []string{"delete", "create", "delete", "create"}, order)
}

func TestLoginInvalidAssertionFails(t *testing.T) {
	userRepo := new(MockUserRepository)
	tokenRepo := new(MockRefreshTokenRepository)
	verifier := new(MockVerifier)

	verifier.On("Verify", mock.Anything, "forged").Return(nil, googleauth.ErrInvalidIDToken)

	auth := usecase.NewAuthUsecase(userRepo, tokenRepo, verifier, testIssuer(), testLogger())

	_, err := auth.Login(context.Background(), "forged")
	assert.ErrorIs(t, err, usecase.ErrInvalidCredential)
	userRepo.AssertNotCalled(t, "GetByGoogleID", mock.Anything)
}

func TestLoginSucceedsWhenRefreshTokenPersistFails(t *testing.T) {
	userRepo := new(MockUserRepository)
	tokenRepo := new(MockRefreshTokenRepository)
	verifier := new(MockVerifier)

	existing := &domain.User{ID: uuid.New(), GoogleID: "google-sub-123", Email: "user@example.com"}

	verifier.On("Verify", mock.Anything, mock.Anything).Return(googleClaims(), nil)
	userRepo.On("GetByGoogleID", mock.Anything).Return(existing, nil)
	tokenRepo.On("DeleteByUserID", existing.ID).Return(nil)
	tokenRepo.On("Create", mock.Anything).Return(errors.New("connection refused"))

	auth := usecase.NewAuthUsecase(userRepo, tokenRepo, verifier, testIssuer(), testLogger())

	// The pair is still returned; only a later refresh call will notice.
	result, err := auth.Login(context.Background(), "id-token")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
}

// ----- refresh -----

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	userRepo := new(MockUserRepository)
	tokenRepo := new(MockRefreshTokenRepository)
	issuer := testIssuer()

	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	refreshToken, expiresAt, err := issuer.IssueRefresh(user)
	require.NoError(t, err)

	tokenRepo.On("GetByTokenHash", mock.Anything).Return(&domain.RefreshToken{
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}, nil)
	userRepo.On("GetByID", user.ID).Return(user, nil)

	auth := usecase.NewAuthUsecase(userRepo, tokenRepo, new(MockVerifier), issuer, testLogger())

	accessToken, err := auth.Refresh(context.Background(), refreshToken)
	require.NoError(t, err)

	claims, err := issuer.Parse(accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
}

func TestRefreshStoreAbsentFailsAsRevoked(t *testing.T) {
	userRepo := new(MockUserRepository)
	tokenRepo := new(MockRefreshTokenRepository)
	issuer := testIssuer()

	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	refreshToken, _, err := issuer.IssueRefresh(user)
	require.NoError(t, err)

	// Syntactically valid token, but no store record: revoked, not invalid.
	tokenRepo.On("GetByTokenHash", mock.Anything).Return(nil, nil)

	auth := usecase.NewAuthUsecase(userRepo, tokenRepo, new(MockVerifier), issuer, testLogger())

	_, err = auth.Refresh(context.Background(), refreshToken)
	assert.ErrorIs(t, err, usecase.ErrRefreshTokenRevoked)
	assert.NotErrorIs(t, err, usecase.ErrInvalidOrExpiredToken)
}

func TestRefreshGarbageTokenFailsAsInvalid(t *testing.T) {
	auth := usecase.NewAuthUsecase(
		new(MockUserRepository), new(MockRefreshTokenRepository),
		new(MockVerifier), testIssuer(), testLogger())

	_, err := auth.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, usecase.ErrInvalidOrExpiredToken)
}

func TestRefreshExpiredTokenFailsBeforeStoreLookup(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	issuer := token.NewIssuer("test-secret", 15*time.Minute, time.Minute).
		WithClock(func() time.Time { return past })

	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	refreshToken, _, err := issuer.IssueRefresh(user)
	require.NoError(t, err)
	issuer.WithClock(time.Now)

	tokenRepo := new(MockRefreshTokenRepository)
	auth := usecase.NewAuthUsecase(new(MockUserRepository), tokenRepo, new(MockVerifier), issuer, testLogger())

	_, err = auth.Refresh(context.Background(), refreshToken)
	assert.ErrorIs(t, err, usecase.ErrInvalidOrExpiredToken)
	tokenRepo.AssertNotCalled(t, "GetByTokenHash", mock.Anything)
}

func TestRefreshMissingUserFails(t *testing.T) {
	userRepo := new(MockUserRepository)
	tokenRepo := new(MockRefreshTokenRepository)
	issuer := testIssuer()

	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	refreshToken, expiresAt, err := issuer.IssueRefresh(user)
	require.NoError(t, err)

	tokenRepo.On("GetByTokenHash", mock.Anything).Return(&domain.RefreshToken{
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}, nil)
	userRepo.On("GetByID", user.ID).Return(nil, nil)

	auth := usecase.NewAuthUsecase(userRepo, tokenRepo, new(MockVerifier), issuer, testLogger())

	_, err = auth.Refresh(context.Background(), refreshToken)
	assert.ErrorIs(t, err, usecase.ErrUserNotFound)
}

// ----- revoke -----

func TestRevokeIsIdempotent(t *testing.T) {
	tokenRepo := new(MockRefreshTokenRepository)
	// Deleting a row that does not exist is not an error at the store level.
	tokenRepo.On("DeleteByTokenHash", mock.Anything).Return(nil)

	auth := usecase.NewAuthUsecase(
		new(MockUserRepository), tokenRepo, new(MockVerifier), testIssuer(), testLogger())

	require.NoError(t, auth.Revoke(context.Background(), "never-seen-token"))
	require.NoError(t, auth.Revoke(context.Background(), "never-seen-token"))
}

func TestRevokeEmptyTokenIsNoOp(t *testing.T) {
	tokenRepo := new(MockRefreshTokenRepository)
	auth := usecase.NewAuthUsecase(
		new(MockUserRepository), tokenRepo, new(MockVerifier), testIssuer(), testLogger())

	require.NoError(t, auth.Revoke(context.Background(), ""))
	tokenRepo.AssertNotCalled(t, "DeleteByTokenHash", mock.Anything)
}

func TestRevokeStoreErrorSurfaces(t *testing.T) {
	tokenRepo := new(MockRefreshTokenRepository)
	tokenRepo.On("DeleteByTokenHash", mock.Anything).Return(errors.New("connection refused"))

	auth := usecase.NewAuthUsecase(
		new(MockUserRepository), tokenRepo, new(MockVerifier), testIssuer(), testLogger())

	err := auth.Revoke(context.Background(), "some-token")
	assert.ErrorIs(t, err, usecase.ErrStoreUnavailable)
}

// ----- sweep -----

func TestSweepExpiredPassesFixedClock(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokenRepo := new(MockRefreshTokenRepository)
	tokenRepo.On("DeleteExpired", fixed).Return(int64(3), nil)

	auth := usecase.NewAuthUsecase(
		new(MockUserRepository), tokenRepo, new(MockVerifier), testIssuer(), testLogger()).
		WithClock(func() time.Time { return fixed })

	count, err := auth.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

// memoryTokenStore is a map-backed store for exercising sweep semantics
// end to end rather than through expectations.
type memoryTokenStore struct {
	records map[string]*domain.RefreshToken
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{records: map[string]*domain.RefreshToken{}}
}

func (s *memoryTokenStore) Create(t *domain.RefreshToken) error {
	s.records[t.TokenHash] = t
	return nil
}

func (s *memoryTokenStore) GetByTokenHash(hash string) (*domain.RefreshToken, error) {
	return s.records[hash], nil
}

func (s *memoryTokenStore) DeleteByTokenHash(hash string) error {
	delete(s.records, hash)
	return nil
}

func (s *memoryTokenStore) DeleteByUserID(userID uuid.UUID) error {
	for hash, t := range s.records {
		if t.UserID == userID {
			delete(s.records, hash)
		}
	}
	return nil
}

func (s *memoryTokenStore) DeleteExpired(now time.Time) (int64, error) {
	var count int64
	for hash, t := range s.records {
		if t.ExpiresAt.Before(now) {
			delete(s.records, hash)
			count++
		}
	}
	return count, nil
}

func TestSweepRemovesOnlyExpiredRecords(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := newMemoryTokenStore()
	require.NoError(t, store.Create(&domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TokenHash: "stale",
		ExpiresAt: fixed.Add(-time.Hour),
	}))
	require.NoError(t, store.Create(&domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TokenHash: "live",
		ExpiresAt: fixed.Add(time.Hour),
	}))

	auth := usecase.NewAuthUsecase(
		new(MockUserRepository), store, new(MockVerifier), testIssuer(), testLogger()).
		WithClock(func() time.Time { return fixed })

	count, err := auth.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The live record survived the sweep.
	live, err := store.GetByTokenHash("live")
	require.NoError(t, err)
	assert.NotNil(t, live)
	stale, err := store.GetByTokenHash("stale")
	require.NoError(t, err)
	assert.Nil(t, stale)

	// A second sweep finds nothing left to remove.
	count, err = auth.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRunSweeperSurvivesStoreErrorsAndStopsOnCancel(t *testing.T) {
	tokenRepo := new(MockRefreshTokenRepository)
	tokenRepo.On("DeleteExpired", mock.Anything).Return(int64(0), errors.New("connection refused"))

	auth := usecase.NewAuthUsecase(
		new(MockUserRepository), tokenRepo, new(MockVerifier), testIssuer(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		auth.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	// Give the sweeper the immediate run plus a tick or two; the store error
	// must not kill the loop.
	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}

	tokenRepo.AssertCalled(t, "DeleteExpired", mock.Anything)
	calls := len(tokenRepo.Calls)
	assert.GreaterOrEqual(t, calls, 2, "expected the loop to keep sweeping past the first failure")
}
