package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForgotPasswordUnknownEmail(t *testing.T) {
	resets := newFakeResets()
	mailer := &fakeMailer{}
	svc, _ := newTestService(newFakeStore(), resets, mailer)

	err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.Zero(t, resets.count())
	require.Empty(t, mailer.sent)
}

func TestForgotPasswordIssuesTokenAndMailsLink(t *testing.T) {
	store := newFakeStore()
	user := store.add(User{Username: "alice", Email: "alice@example.com", PasswordHash: hashFor(t, "Passw0rd")})
	resets := newFakeResets()
	mailer := &fakeMailer{}
	svc, _ := newTestService(store, resets, mailer)

	require.NoError(t, svc.ForgotPassword(context.Background(), "alice@example.com"))
	require.Equal(t, 1, resets.count())

	token := tokenFromBody(mailer.lastBody())
	require.NotEmpty(t, token)
	// 32 random bytes, hex encoded.
	require.Len(t, token, 64)
	require.Contains(t, mailer.lastBody(), "https://community.example/html/reset-password.html?token="+token)

	record, err := resets.FindByToken(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, user.ID, record.UserID)
	require.Equal(t, testEpoch, record.CreatedAt)
	require.Equal(t, testEpoch+ResetTokenTTL, record.ExpiresAt)
}

func TestForgotPasswordMailFailureStaysSilent(t *testing.T) {
	store := newFakeStore()
	store.add(User{Username: "alice", Email: "alice@example.com", PasswordHash: hashFor(t, "Passw0rd")})
	resets := newFakeResets()
	mailer := &fakeMailer{fail: errors.New("smtp down")}
	svc, _ := newTestService(store, resets, mailer)

	// Delivery trouble must not change the outcome: the token exists and the
	// caller still reports the generic message.
	require.NoError(t, svc.ForgotPassword(context.Background(), "alice@example.com"))
	require.Equal(t, 1, resets.count())
}

func TestForgotPasswordSupersedesPreviousToken(t *testing.T) {
	store := newFakeStore()
	store.add(User{Username: "alice", Email: "alice@example.com", PasswordHash: hashFor(t, "Passw0rd")})
	resets := newFakeResets()
	mailer := &fakeMailer{}
	svc, _ := newTestService(store, resets, mailer)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	first := tokenFromBody(mailer.lastBody())
	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	second := tokenFromBody(mailer.lastBody())
	require.NotEqual(t, first, second)
	require.Equal(t, 1, resets.count())

	require.ErrorIs(t, svc.ResetPassword(ctx, first, "NewPass"), ErrResetTokenInvalid)
	require.NoError(t, svc.ResetPassword(ctx, second, "NewPass"))
}

func TestResetPasswordSingleUse(t *testing.T) {
	store := newFakeStore()
	user := store.add(User{Username: "alice", Email: "alice@example.com", PasswordHash: hashFor(t, "OldPass")})
	resets := newFakeResets()
	mailer := &fakeMailer{}
	svc, _ := newTestService(store, resets, mailer)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	token := tokenFromBody(mailer.lastBody())

	require.NoError(t, svc.ResetPassword(ctx, token, "NewPass"))
	require.Zero(t, resets.count())

	_, err := svc.Login(ctx, "alice", "NewPass")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", "OldPass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Replaying the consumed token fails.
	require.ErrorIs(t, svc.ResetPassword(ctx, token, "Again"), ErrResetTokenInvalid)
	require.Equal(t, 1, store.get(user.ID).FailedAttempts) // only the OldPass login counted
}

func TestResetPasswordExpiredTokenRejectedButKept(t *testing.T) {
	store := newFakeStore()
	store.add(User{Username: "alice", Email: "alice@example.com", PasswordHash: hashFor(t, "OldPass")})
	resets := newFakeResets()
	mailer := &fakeMailer{}
	svc, clock := newTestService(store, resets, mailer)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	token := tokenFromBody(mailer.lastBody())

	// Exactly at expiry the token still works; past it, it does not, and the
	// row is left for the maintenance sweep.
	*clock = testEpoch + ResetTokenTTL
	record, _ := resets.FindByToken(ctx, token)
	require.NotNil(t, record)

	*clock = testEpoch + ResetTokenTTL + 1
	require.ErrorIs(t, svc.ResetPassword(ctx, token, "NewPass"), ErrResetTokenInvalid)
	require.Equal(t, 1, resets.count())

	// Sweep removes it.
	deleted, err := resets.DeleteExpiredResetTokens(ctx, *clock, 100)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}

func TestResetPasswordUnknownToken(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), newFakeResets(), &fakeMailer{})

	err := svc.ResetPassword(context.Background(), "never-issued", "NewPass")
	require.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestResetPasswordMissingOwner(t *testing.T) {
	resets := newFakeResets()
	_, err := resets.CreateResetToken(context.Background(), &PasswordResetToken{
		UserID:    404,
		Token:     "orphan",
		CreatedAt: testEpoch,
		ExpiresAt: testEpoch + ResetTokenTTL,
	})
	require.NoError(t, err)

	svc, _ := newTestService(newFakeStore(), resets, &fakeMailer{})
	err = svc.ResetPassword(context.Background(), "orphan", "NewPass")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestResetPasswordUpdateFailureKeepsToken(t *testing.T) {
	store := newFakeStore()
	store.add(User{Username: "alice", Email: "alice@example.com", PasswordHash: hashFor(t, "OldPass")})
	resets := newFakeResets()
	mailer := &fakeMailer{}
	svc, _ := newTestService(store, resets, mailer)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	token := tokenFromBody(mailer.lastBody())

	store.updateErr = errors.New("disk full")
	err := svc.ResetPassword(ctx, token, "NewPass")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrResetTokenInvalid)
	require.Equal(t, 1, resets.count())

	// The token survived, so the user can retry once storage recovers.
	store.updateErr = nil
	require.NoError(t, svc.ResetPassword(ctx, token, "NewPass"))
	require.Zero(t, resets.count())
}
