package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/store"
	"github.com/stepauth/stepauth/pkg/httpx"
	"github.com/stepauth/stepauth/pkg/jwtx"
	"github.com/stepauth/stepauth/pkg/slogx"
)

type ctxKey string

// CtxKeyUserID carries the authenticated user's ID once RequireAdmin has
// verified the bearer token.
const CtxKeyUserID ctxKey = "user_id"

// RequireAdmin verifies the bearer session token and checks the subject
// still holds the administrator role. Role membership is read from the
// database on every request so a demoted admin loses access before their
// token expires.
func RequireAdmin(signer *jwtx.Signer, issuer string, st store.Store) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			token := bearerToken(r)
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_token",
					"Missing or malformed Authorization header")
				return
			}

			claims, err := signer.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_token",
					"Session token is invalid or expired")
				return
			}
			if err := claims.ValidateIssuer(issuer); err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_token",
					"Session token was not issued by this service")
				return
			}

			user, err := st.Users().GetUserByID(ctx, claims.Subject)
			if err != nil {
				log.Warn("admin token for unknown user", "user_id", claims.Subject)
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_token",
					"Session token subject no longer exists")
				return
			}
			if !user.HasRole(domain.AdminRole) {
				httpx.WriteError(w, http.StatusForbidden, "forbidden",
					"Administrator role required")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, CtxKeyUserID, user.ID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
