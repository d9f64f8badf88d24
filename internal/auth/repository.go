package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository implements CredentialStore and ResetTokenStore on Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, email, password_hash, failed_attempts, last_failed_at, last_active_at, created_at`

func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findUser(ctx, `username = $1`, username)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser(ctx, `email = $1`, email)
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findUser(ctx, `id = $1`, id)
}

func (r *Repository) findUser(ctx context.Context, where string, arg any) (*User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+where,
		arg,
	).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FailedAttempts, &user.LastFailedAt, &user.LastActiveAt, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *User) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, failed_attempts, last_failed_at, last_active_at, created_at)
		VALUES ($1, $2, $3, 0, 0, 0, $4)
		RETURNING id
	`, user.Username, user.Email, user.PasswordHash, user.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	return id, nil
}

func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2
		WHERE id = $1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password rows affected: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("update password hash: user %d not found", userID)
	}

	return nil
}

// RecordLoginFailure runs the read-check-write sequence on the failure
// counter inside a row-locking transaction, so concurrent failing attempts
// for the same account never lose an increment.
func (r *Repository) RecordLoginFailure(ctx context.Context, userID int64, now int64, resetCounter bool) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin login failure tx: %w", err)
	}
	defer tx.Rollback()

	var attempts int
	err = tx.QueryRowContext(ctx, `
		SELECT failed_attempts
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("lock user row: %w", err)
	}

	if resetCounter {
		attempts = 0
	}
	attempts++

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = $2, last_failed_at = $3
		WHERE id = $1
	`, userID, attempts, now); err != nil {
		return 0, fmt.Errorf("update failure counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit login failure tx: %w", err)
	}

	return attempts, nil
}

func (r *Repository) RecordLoginSuccess(ctx context.Context, userID int64, now int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = 0, last_active_at = $2
		WHERE id = $1
	`, userID, now)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}

	return nil
}

func (r *Repository) FindByToken(ctx context.Context, token string) (*PasswordResetToken, error) {
	var record PasswordResetToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, created_at, expires_at
		FROM password_reset_tokens
		WHERE token = $1
	`, token).Scan(&record.ID, &record.UserID, &record.Token, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query reset token: %w", err)
	}

	return &record, nil
}

func (r *Repository) CreateResetToken(ctx context.Context, token *PasswordResetToken) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO password_reset_tokens (user_id, token, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, token.UserID, token.Token, token.CreatedAt, token.ExpiresAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert reset token: %w", err)
	}

	return id, nil
}

func (r *Repository) DeleteResetTokensForUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM password_reset_tokens
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("delete reset tokens for user: %w", err)
	}

	return nil
}

func (r *Repository) DeleteResetToken(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM password_reset_tokens
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}

	return nil
}

// DeleteExpiredResetTokens removes expired reset-token rows in batches. An
// expired row is already rejected by ResetPassword, so this only reclaims
// storage.
func (r *Repository) DeleteExpiredResetTokens(ctx context.Context, now int64, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM password_reset_tokens
			WHERE expires_at < $1
			ORDER BY expires_at ASC
			LIMIT $2
		)
		DELETE FROM password_reset_tokens t
		USING stale
		WHERE t.id = stale.id
	`, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired reset tokens rows affected: %w", err)
	}

	return affected, nil
}

// ClearStaleFailureCounters zeroes failure counters whose lock window ended
// before the cutoff, so abandoned accounts do not keep stale lockout state.
func (r *Repository) ClearStaleFailureCounters(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = 0
		WHERE failed_attempts > 0 AND last_failed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear stale failure counters: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale failure counters rows affected: %w", err)
	}

	return affected, nil
}

var (
	ErrUserExists = errors.New("username or email already registered")

	_ CredentialStore = (*Repository)(nil)
	_ ResetTokenStore = (*Repository)(nil)
)
