package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"food-delivery/internal/domain/models"
	"food-delivery/internal/lib/jwt"
	"food-delivery/internal/lib/sl"
	"food-delivery/internal/storage"
)

type Auth struct {
	logger          *slog.Logger
	userProvider    UserProvider
	passwordUpdater PasswordUpdater
	passwords       PasswordHasher
	tokens          TokenIssuer
	tokenProvider   RefreshTokenProvider
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration

	// Verified against when the number is unknown, so that both failure
	// paths cost one key derivation.
	dummySalt string
	dummyHash string
}

type UserProvider interface {
	UserByNumber(ctx context.Context, number string) (*models.User, error)
}

type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, id int64, salt, hash string) error
}

type PasswordHasher interface {
	Hash(plaintext string) (salt, hash string, err error)
	Verify(plaintext, salt, hash string) (bool, error)
	NeedsRehash(hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(subject string, ttl time.Duration, typ jwt.TokenType) (string, error)
	Decode(token string) (*jwt.Claims, error)
}

type RefreshTokenProvider interface {
	SaveRefreshToken(ctx context.Context, userID int64, token string, ttl time.Duration) error
	RefreshToken(ctx context.Context, userID int64) (string, error)
	DeleteRefreshToken(ctx context.Context, userID int64) error
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWrongTokenType     = errors.New("wrong token type")
	ErrRevokedToken       = errors.New("refresh token revoked")
)

// New returns a new instance of the Auth service. It panics if the hasher
// cannot produce the placeholder credentials used for unknown numbers.
func New(
	logger *slog.Logger,
	userProvider UserProvider,
	passwordUpdater PasswordUpdater,
	passwords PasswordHasher,
	tokens TokenIssuer,
	tokenProvider RefreshTokenProvider,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
) *Auth {
	dummySalt, dummyHash, err := passwords.Hash(rand.Text())
	if err != nil {
		panic("auth.New: placeholder credentials: " + err.Error())
	}

	return &Auth{
		logger:          logger,
		userProvider:    userProvider,
		passwordUpdater: passwordUpdater,
		passwords:       passwords,
		tokens:          tokens,
		tokenProvider:   tokenProvider,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		dummySalt:       dummySalt,
		dummyHash:       dummyHash,
	}
}

// Login checks the credentials and opens a new session for the user,
// replacing any session the user already had.
func (a *Auth) Login(ctx context.Context, number, password string) (models.TokenPair, error) {
	const op = "auth.Login"

	log := a.logger.With(slog.String("op", op))
	log.Info("login request")

	user, err := a.userProvider.UserByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			_, _ = a.passwords.Verify(password, a.dummySalt, a.dummyHash)
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to get user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.Int64("userID", user.ID))

	ok, err := a.passwords.Verify(password, user.PasswordSalt, user.PasswordHash)
	if err != nil {
		log.Error("stored credentials are corrupt", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		log.Warn("invalid password")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	a.rehashIfNeeded(ctx, log, user, password)

	subject := strconv.FormatInt(user.ID, 10)

	access, err := a.tokens.Issue(subject, a.accessTokenTTL, jwt.TypeAccess)
	if err != nil {
		log.Error("failed to issue access token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := a.tokens.Issue(subject, a.refreshTokenTTL, jwt.TypeRefresh)
	if err != nil {
		log.Error("failed to issue refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.tokenProvider.SaveRefreshToken(ctx, user.ID, refresh, a.refreshTokenTTL); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in")

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// rehashIfNeeded upgrades a hash derived with weaker argon2 parameters than
// the current ones. Failures are logged and do not fail the login.
func (a *Auth) rehashIfNeeded(ctx context.Context, log *slog.Logger, user *models.User, password string) {
	stale, err := a.passwords.NeedsRehash(user.PasswordHash)
	if err != nil {
		log.Warn("failed to inspect password hash", sl.Err(err))
		return
	}
	if !stale {
		return
	}

	salt, hash, err := a.passwords.Hash(password)
	if err != nil {
		log.Error("failed to rehash password", sl.Err(err))
		return
	}

	if err := a.passwordUpdater.UpdatePassword(ctx, user.ID, salt, hash); err != nil {
		log.Error("failed to store rehashed password", sl.Err(err))
		return
	}

	log.Info("password rehashed with current parameters")
}

// Refresh issues a new access token for a refresh token that is still the
// current one for its user. The refresh token itself is returned unchanged.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.logger.With(slog.String("op", op))
	log.Info("refresh request")

	userID, err := a.subject(refreshToken, jwt.TypeRefresh)
	if err != nil {
		log.Warn("refresh token rejected", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.Int64("userID", userID))

	stored, err := a.tokenProvider.RefreshToken(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Warn("no active session")
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrRevokedToken)
		}
		log.Error("failed to get refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if stored != refreshToken {
		log.Warn("refresh token superseded")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrRevokedToken)
	}

	access, err := a.tokens.Issue(strconv.FormatInt(userID, 10), a.accessTokenTTL, jwt.TypeAccess)
	if err != nil {
		log.Error("failed to issue access token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("access token refreshed")

	return models.TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

// WhoAmI returns the user id carried by an access token. Refresh tokens are
// rejected with ErrWrongTokenType.
func (a *Auth) WhoAmI(_ context.Context, accessToken string) (int64, error) {
	const op = "auth.WhoAmI"

	userID, err := a.subject(accessToken, jwt.TypeAccess)
	if err != nil {
		a.logger.Debug("access token rejected", slog.String("op", op), sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return userID, nil
}

// Logout ends the session of the access token's owner. It succeeds even when
// there is no session to end.
func (a *Auth) Logout(ctx context.Context, accessToken string) error {
	const op = "auth.Logout"

	log := a.logger.With(slog.String("op", op))

	userID, err := a.subject(accessToken, jwt.TypeAccess)
	if err != nil {
		log.Warn("access token rejected", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.RevokeSessions(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out", slog.Int64("userID", userID))

	return nil
}

// RevokeSessions drops the stored refresh token of userID.
func (a *Auth) RevokeSessions(ctx context.Context, userID int64) error {
	const op = "auth.RevokeSessions"

	if err := a.tokenProvider.DeleteRefreshToken(ctx, userID); err != nil {
		a.logger.Error("failed to delete refresh token",
			slog.String("op", op),
			slog.Int64("userID", userID),
			sl.Err(err),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// subject decodes token, checks its type and returns the user id it names.
func (a *Auth) subject(token string, want jwt.TokenType) (int64, error) {
	claims, err := a.tokens.Decode(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := claims.Expect(want); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWrongTokenType, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}

	return userID, nil
}
