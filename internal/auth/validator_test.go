package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestValidator() (*TokenCodec, *RevocationList, *TokenValidator) {
	codec := NewTokenCodec("test-secret")
	revoked := NewRevocationList()
	return codec, revoked, NewTokenValidator(codec, revoked)
}

func TestValidateAcceptsFreshToken(t *testing.T) {
	codec, _, validator := newTestValidator()
	const issuedAt = int64(1_700_000_000_000)

	token := codec.Encode(42, "alice", "alice@example.com", issuedAt)
	claims, err := validator.Validate(token, issuedAt+1)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, issuedAt, claims.IssuedAt)
}

func TestValidateRevokedWinsOverEverything(t *testing.T) {
	codec, revoked, validator := newTestValidator()
	const issuedAt = int64(1_700_000_000_000)

	// A fresh, well-formed token: revocation alone rejects it.
	fresh := codec.Encode(1, "alice", "a@example.com", issuedAt)
	revoked.Add(fresh)
	_, err := validator.Validate(fresh, issuedAt+1)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// An expired token: still reported as revoked, not expired.
	stale := codec.Encode(1, "alice", "a@example.com", issuedAt-2*SessionTTL)
	revoked.Add(stale)
	_, err = validator.Validate(stale, issuedAt)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// Even a string that would not decode.
	revoked.Add("garbage")
	_, err = validator.Validate("garbage", issuedAt)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestValidateExpiryBoundary(t *testing.T) {
	codec, _, validator := newTestValidator()
	const issuedAt = int64(1_700_000_000_000)
	token := codec.Encode(1, "alice", "a@example.com", issuedAt)

	// Exactly at the TTL the token is still valid; one past it is not.
	_, err := validator.Validate(token, issuedAt+SessionTTL)
	require.NoError(t, err)

	_, err = validator.Validate(token, issuedAt+SessionTTL+1)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidatePropagatesDecodeErrors(t *testing.T) {
	codec, _, validator := newTestValidator()

	_, err := validator.Validate("not-a-token", 0)
	require.ErrorIs(t, err, ErrTokenInvalidFormat)

	encoded := "***"
	_, err = validator.Validate(encoded+"."+codec.sign(encoded), 0)
	require.ErrorIs(t, err, ErrTokenInvalidEncoding)
}
