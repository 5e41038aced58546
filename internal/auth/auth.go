// Package auth turns a bearer credential into the player's identity.
package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid bearer token")
	ErrNotConfigured = errors.New("authentication is not configured")
)

// User is the authenticated player.
type User struct {
	ID       uuid.UUID
	Username string
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

var bearerPattern = regexp.MustCompile(`(?i)^Bearer\s+(.+)$`)

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	m := bearerPattern.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(m[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// Disabled rejects every request. It is used when no identity backend is configured.
type Disabled struct{}

func (Disabled) Authenticate(ctx context.Context, token string) (*User, error) {
	return nil, ErrNotConfigured
}

// usernameFromMetadata picks a display name from the identity provider metadata.
func usernameFromMetadata(meta map[string]any, email string) string {
	for _, key := range []string{"username", "user_name", "full_name", "name"} {
		if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if local, _, ok := strings.Cut(email, "@"); ok {
		return local
	}
	return ""
}
