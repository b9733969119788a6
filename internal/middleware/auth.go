package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go-file-collector/internal/model"
	"go-file-collector/internal/service"
)

type contextKey string

const claimsKey contextKey = "authClaims"

// RequireAdmin rejects requests that do not carry a valid admin bearer
// token and stores the verified claims on the request context.
func RequireAdmin(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims RequireAdmin stored, or nil when the
// request did not pass through it.
func ClaimsFromContext(ctx context.Context) *model.AuthClaims {
	claims, _ := ctx.Value(claimsKey).(*model.AuthClaims)
	return claims
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: "UNAUTHORIZED", Message: message},
	})
}
