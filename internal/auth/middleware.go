package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pavkata12/app/internal/models"
)

type contextKey struct{}

// ClaimsFromContext returns the operator claims attached by Middleware
func ClaimsFromContext(ctx context.Context) (*models.AuthClaims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*models.AuthClaims)
	return claims, ok
}

// WithClaims attaches claims to ctx
func WithClaims(ctx context.Context, claims *models.AuthClaims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// Middleware rejects requests without a valid operator token
func (j *JWTManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := ExtractJWTFromRequest(r.Header.Get("Authorization"), r.Header.Get("Cookie"), CookieName)
		if err != nil {
			unauthorized(w, "missing authorization token")
			return
		}

		claims, err := j.ValidateToken(tokenString)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected operator token")
			unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="gcserver"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": "unauthorized"})
}
