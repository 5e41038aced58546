package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// IdentityClient asks the hosted auth service who owns an access token.
type IdentityClient struct {
	baseURL string
	apiKey  string
	// base is the transport the oauth2 client wraps; nil means http.DefaultClient.
	base *http.Client
}

func NewIdentityClient(baseURL, apiKey string, base *http.Client) *IdentityClient {
	return &IdentityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		base:    base,
	}
}

type identityUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (c *IdentityClient) Authenticate(ctx context.Context, token string) (*User, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	if c.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: identity service returned status %d", ErrInvalidToken, resp.StatusCode)
	}

	var u identityUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q", ErrInvalidToken, u.ID)
	}

	return &User{ID: id, Username: usernameFromMetadata(u.UserMetadata, u.Email)}, nil
}
