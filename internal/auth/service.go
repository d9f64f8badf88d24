package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"communityd/internal/mail"
	"communityd/internal/observability"
)

// Service is the authentication core: it decides whether a login succeeds,
// throttles repeated failures, mints and revokes session tokens, and manages
// password-reset tokens. Passwords are stored as bcrypt hashes and verified
// by rehash only; no code path compares plaintext.
type Service struct {
	store   CredentialStore
	resets  ResetTokenStore
	codec   *TokenCodec
	revoked *RevocationList
	mailer  mail.Sender
	logger  *observability.Logger

	resetBaseURL string

	// now returns milliseconds since the Unix epoch. Overridden in tests.
	now func() int64
}

func NewService(
	store CredentialStore,
	resets ResetTokenStore,
	codec *TokenCodec,
	revoked *RevocationList,
	mailer mail.Sender,
	logger *observability.Logger,
	resetBaseURL string,
) *Service {
	return &Service{
		store:        store,
		resets:       resets,
		codec:        codec,
		revoked:      revoked,
		mailer:       mailer,
		logger:       logger,
		resetBaseURL: strings.TrimRight(resetBaseURL, "/"),
		now:          func() int64 { return time.Now().UnixMilli() },
	}
}

// Login verifies a credential pair. The identifier is tried as a username
// first, then as an email. A missing account and a wrong password are
// deliberately indistinguishable to the caller. Every attempt persists
// exactly one write: either the failure counter or the success reset.
func (s *Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.store.FindByUsername(ctx, identifier)
	if err != nil {
		return LoginResult{}, fmt.Errorf("find user by username: %w", err)
	}
	if user == nil {
		user, err = s.store.FindByEmail(ctx, identifier)
		if err != nil {
			return LoginResult{}, fmt.Errorf("find user by email: %w", err)
		}
	}
	if user == nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now()
	state := CheckLock(user, now)
	if state.Locked {
		return LoginResult{}, ErrAccountLocked{RemainingMillis: state.RemainingMillis}
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		attempts, recErr := s.store.RecordLoginFailure(ctx, user.ID, now, state.CounterReset)
		if recErr != nil {
			return LoginResult{}, fmt.Errorf("record login failure: %w", recErr)
		}
		if attempts >= MaxLoginAttempts {
			return LoginResult{}, ErrAccountLocked{RemainingMillis: LockDuration}
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := s.store.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("record login success: %w", err)
	}
	user.FailedAttempts = 0
	user.LastActiveAt = now

	return LoginResult{
		User:  user,
		Token: s.codec.Encode(user.ID, user.Username, user.Email, now),
	}, nil
}

// Logout revokes a session token. An empty token is accepted as a no-op so
// logout never fails from the user's point of view.
func (s *Service) Logout(token string) {
	if token == "" {
		return
	}
	s.revoked.Add(token)
}

// Authenticate classifies a presented session token.
func (s *Service) Authenticate(token string) (TokenClaims, error) {
	return NewTokenValidator(s.codec, s.revoked).Validate(token, s.now())
}

// ChangePassword verifies the old password and replaces the hash. It reuses
// the login comparison semantics but bypasses the throttle: failed old
// passwords here never count toward lockout.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user by id: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

// Register creates a new account with a hashed password. Duplicate usernames
// or emails surface as ErrUserExists from the store.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	id, err := s.store.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id

	return user, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// ErrAccountLocked reports a login rejected by the lockout throttle.
type ErrAccountLocked struct {
	RemainingMillis int64
}

func (e ErrAccountLocked) Error() string {
	return "account temporarily locked, retry in " + FormatRemaining(e.RemainingMillis)
}
