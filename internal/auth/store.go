package auth

import "context"

// CredentialStore is the storage the auth core needs for user records. Find
// methods return (nil, nil) when no row matches.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, user *User) (int64, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error

	// RecordLoginFailure atomically increments the failure counter and stamps
	// the failure time, returning the new counter value. When resetCounter is
	// set (an expired lock was cleared during the same attempt) the increment
	// starts from zero instead of the stored value.
	RecordLoginFailure(ctx context.Context, userID int64, now int64, resetCounter bool) (int, error)

	// RecordLoginSuccess zeroes the failure counter and stamps last activity.
	RecordLoginSuccess(ctx context.Context, userID int64, now int64) error
}

// ResetTokenStore is the storage for password-reset tokens. FindByToken
// returns (nil, nil) when no row matches.
type ResetTokenStore interface {
	FindByToken(ctx context.Context, token string) (*PasswordResetToken, error)
	CreateResetToken(ctx context.Context, token *PasswordResetToken) (int64, error)
	DeleteResetTokensForUser(ctx context.Context, userID int64) error
	DeleteResetToken(ctx context.Context, id int64) error
	DeleteExpiredResetTokens(ctx context.Context, now int64, batchSize int) (int64, error)
}
