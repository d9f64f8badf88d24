package auth

import (
	"context"
	"errors"
	"net/http"
)

type contextKey struct{}

var claimsKey contextKey

// ClaimsFromContext returns the token claims the middleware stored for an
// authenticated request.
func ClaimsFromContext(ctx context.Context) (TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(TokenClaims)
	return claims, ok
}

// Middleware rejects requests without a usable session token and stores the
// claims in the request context for the handlers behind it.
func Middleware(service *Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := service.Authenticate(token)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenRevoked):
				writeError(w, http.StatusUnauthorized, "token has been revoked")
			case errors.Is(err, ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "token has expired")
			default:
				writeError(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}
