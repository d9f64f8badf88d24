package auth

import "errors"

// TokenValidator classifies a presented session token. The check order is
// fixed and security relevant: revocation first (a revoked token must never
// validate, even when it would still decode and be inside its TTL), then the
// codec, then expiry.
type TokenValidator struct {
	codec   *TokenCodec
	revoked *RevocationList
}

func NewTokenValidator(codec *TokenCodec, revoked *RevocationList) *TokenValidator {
	return &TokenValidator{codec: codec, revoked: revoked}
}

// Validate returns the claims of a usable token, or one of ErrTokenRevoked,
// ErrTokenInvalidFormat, ErrTokenInvalidEncoding, ErrTokenExpired.
func (v *TokenValidator) Validate(token string, now int64) (TokenClaims, error) {
	if v.revoked.Contains(token) {
		return TokenClaims{}, ErrTokenRevoked
	}

	claims, err := v.codec.Decode(token)
	if err != nil {
		return TokenClaims{}, err
	}

	if now-claims.IssuedAt > SessionTTL {
		return TokenClaims{}, ErrTokenExpired
	}

	return claims, nil
}

var (
	ErrTokenRevoked = errors.New("token has been revoked")
	ErrTokenExpired = errors.New("token has expired")
)
