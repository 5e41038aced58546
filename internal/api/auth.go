package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/susu3304/ruesquiz/internal/auth"
	"github.com/susu3304/ruesquiz/internal/logger"
)

type contextKey int

const userKey contextKey = iota

func withUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// userFrom returns the user authMiddleware attached to the request.
func userFrom(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userKey).(*auth.User)
	return user, ok && user != nil
}

// authenticate resolves the bearer token to a user, writing the 401 itself on failure.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return nil, false
	}

	user, err := a.auth.Authenticate(r.Context(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrMissingToken) {
			logger.Error("Authentication failed: %v", err)
		}
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return nil, false
	}
	return user, true
}

// Middleware
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}
