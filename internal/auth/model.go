package auth

// User is one account row. Timestamps are milliseconds since the Unix epoch;
// zero means never.
type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   string
	FailedAttempts int
	LastFailedAt   int64
	LastActiveAt   int64
	CreatedAt      int64
}

// TokenClaims is the decoded content of a session token.
type TokenClaims struct {
	UserID   int64
	Username string
	Email    string
	IssuedAt int64
}

// PasswordResetToken authorizes exactly one password change. At most one row
// exists per user; issuing a new token deletes the previous ones.
type PasswordResetToken struct {
	ID        int64
	UserID    int64
	Token     string
	CreatedAt int64
	ExpiresAt int64
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	User  *User
	Token string
}
