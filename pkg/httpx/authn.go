package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
	"github.com/aussiebroadwan/minivisionary/pkg/slogx"
)

// RevocationChecker reports whether a session id (jti) was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthnMiddleware requires a valid bearer session. Every rejection is a 401
// with error code "unauthenticated" so clients can treat them uniformly.
// rev may be nil.
func AuthnMiddleware(v jwtx.Verifier, rev RevocationChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeUnauthenticated(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Debug("session token rejected", "err", err)
				writeUnauthenticated(w, "session is invalid or expired")
				return
			}

			if rev != nil {
				revoked, err := rev.IsRevoked(ctx, claims.ID)
				if err != nil {
					log.Error("revocation lookup failed", "err", err)
					WriteError(w, http.StatusInternalServerError, "server_error", "could not verify session")
					return
				}
				if revoked {
					writeUnauthenticated(w, "session has been logged out")
					return
				}
			}

			ctx = WithClaims(ctx, claims)
			ctx = slogx.With(ctx, "user_id", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthenticated(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "unauthenticated", desc)
}
