package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	"github.com/clinicbook/backend/pkg/auth"
)

type callerKey struct{}

// WithCaller stores the authenticated caller on ctx
func WithCaller(ctx context.Context, caller entities.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller stored by Authenticate
func CallerFromContext(ctx context.Context) (entities.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(entities.Caller)
	return caller, ok
}

// Authenticate requires an "Authorization: Bearer <jwt>" header and puts the
// token's caller on the request context
func Authenticate(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthenticated(w)
				return
			}

			claims, err := verifier.Parse(raw)
			if err != nil {
				observability.LoggerFromContext(r.Context()).Debug().Err(err).Msg("rejected bearer token")
				unauthenticated(w)
				return
			}

			ctx := WithCaller(r.Context(), entities.Caller{
				UserID: claims.UserID,
				Role:   entities.Role(claims.Role),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"message": "Unauthenticated."})
}
