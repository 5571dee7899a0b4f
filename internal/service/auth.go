// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → enforces rules, checks ownership, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so the tests in this
// package run against the in-memory fakes in fakes_test.go.
//
// Services accept primitives and small input structs, never *http.Request,
// and return apperror values. The handler package alone decides how those
// errors look over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/auth"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
)

// ErrSessionEnded is returned by CurrentIdentity when the token is well
// formed but its session row is gone or expired.
var ErrSessionEnded = errors.New("service/auth: session has ended")

// AuthService is the credential store and session provider.
//
//	AuthHandler → AuthService → UserRepository, SessionRepository
//	                          ↘ TokenService (JWT), PasswordService (bcrypt)
//	                          ↘ PhotoStore (account deletion)
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	photos    PhotoStore
	logger    *slog.Logger
	now       func() time.Time
}

var _ auth.IdentityResolver = (*AuthService)(nil)

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	photos PhotoStore,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		passwords: passwords,
		photos:    photos,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles what a successful sign-in produces so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// Register creates an account.
//
// UNIQUENESS:
// The UsernameTaken/EmailTaken pre-checks only exist to give a friendly
// answer in the common case. Two concurrent registrations can both pass
// them; the UNIQUE constraints in the database decide the winner and the
// loser gets the same apperror.ErrDuplicateUsername / ErrDuplicateEmail.
func (s *AuthService) Register(ctx context.Context, username, email, rawPassword string) (*model.User, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "This field is required.")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "This field is required.")
	}
	if rawPassword == "" {
		return nil, apperror.ValidationFailed("password", "This field is required.")
	}

	taken, err := s.users.UsernameTaken(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking username: %w", err)
	}
	if taken {
		return nil, apperror.DuplicateUsername()
	}
	taken, err = s.users.EmailTaken(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}
	if taken {
		return nil, apperror.DuplicateEmail()
	}

	hash, err := s.passwords.Hash(rawPassword)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer.")
	}

	user := &model.User{Identity: model.Identity{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("registration lost a uniqueness race", slog.String("username", username))
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", username),
	)
	return user, nil
}

// Verify checks a username/password pair. An unknown username and a wrong
// password produce the same apperror.ErrInvalidCredentials, and both spend
// one bcrypt comparison.
func (s *AuthService) Verify(ctx context.Context, username, rawPassword string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(rawPassword)
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.Identity.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	return user, nil
}

// Authenticate verifies the credentials, opens a session and signs a token
// for it.
func (s *AuthService) Authenticate(ctx context.Context, username, rawPassword string) (*AuthResult, error) {
	user, err := s.Verify(ctx, username, rawPassword)
	if err != nil {
		s.logger.Info("login failed", slog.String("username", username))
		return nil, err
	}

	now := s.now().UTC()
	session := &model.Session{
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.TTL()),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: creating session for %s: %w", user.ID, err)
	}

	token, err := s.tokens.Generate(user.ID, session.ID)
	if err != nil {
		_ = s.sessions.DeleteSession(ctx, session.ID)
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("sessionID", session.ID),
	)
	return &AuthResult{User: user, Session: session, Token: token}, nil
}

// CurrentIdentity resolves a token to the signed-in user. It fails when the
// token is invalid, when its session was ended or has expired, and when the
// account no longer exists.
func (s *AuthService) CurrentIdentity(ctx context.Context, token string) (*auth.Principal, error) {
	userID, sessionID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrSessionEnded
		}
		return nil, fmt.Errorf("service/auth: loading session %s: %w", sessionID, err)
	}
	if session.UserID != userID || session.Expired(s.now()) {
		return nil, ErrSessionEnded
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	return &auth.Principal{User: user, SessionID: session.ID}, nil
}

// EndSession revokes a session. Ending an unknown session is not an error.
func (s *AuthService) EndSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("service/auth: ending session %s: %w", sessionID, err)
	}
	s.logger.Info("session ended", slog.String("sessionID", sessionID))
	return nil
}

// DeleteAccount removes the user. The database cascades the delete to the
// user's sessions, plants, care events and journal entries; the photos of
// those plants and entries are then removed from storage.
//
// The filenames are read before the delete because the rows naming them are
// gone afterwards. A photo that cannot be removed is logged and skipped.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	photos, err := s.users.ListUserPhotos(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: listing photos of user %s: %w", userID, err)
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: deleting user %s: %w", userID, err)
	}
	for _, name := range photos {
		if err := s.photos.Remove(name); err != nil {
			s.logger.Warn("failed to remove photo of deleted account",
				slog.String("userID", userID),
				slog.String("photo", name),
				slog.String("error", err.Error()),
			)
		}
	}
	s.logger.Info("account deleted",
		slog.String("userID", userID),
		slog.Int("photos", len(photos)),
	)
	return nil
}

// PruneSessions deletes every expired session row and returns how many went.
func (s *AuthService) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("service/auth: pruning sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired sessions pruned", slog.Int64("count", n))
	}
	return n, nil
}
