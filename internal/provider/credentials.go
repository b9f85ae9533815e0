package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotRefreshable is returned by credentials that cannot be renewed.
var ErrNotRefreshable = errors.New("credentials cannot be refreshed")

// Credentials supply the bearer token sent to a provider.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// StaticKey is a fixed API key.
type StaticKey string

func (k StaticKey) Token(context.Context) (string, error) { return string(k), nil }

func (k StaticKey) Refresh(context.Context) error { return ErrNotRefreshable }

// expirySkew renews tokens slightly before the server expires them.
const expirySkew = 30 * time.Second

// ClientCredentials obtains short-lived access tokens with the OAuth2
// client-credentials grant and caches them until shortly before expiry.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string

	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewClientCredentials creates a token source for the given endpoint.
func NewClientCredentials(tokenURL, clientID, clientSecret, scope string) *ClientCredentials {
	return &ClientCredentials{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        scope,
		client:       &http.Client{Timeout: 15 * time.Second},
		now:          time.Now,
	}
}

// Token returns the cached token, fetching a new one when it is missing or
// about to expire.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Add(expirySkew).Before(c.expiry) {
		return c.token, nil
	}
	if err := c.fetch(ctx); err != nil {
		return "", err
	}
	return c.token, nil
}

// Refresh discards the cached token and fetches a new one.
func (c *ClientCredentials) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	return c.fetch(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	// ExpiresAt is a unix timestamp in milliseconds, used by some providers
	// instead of expires_in.
	ExpiresAt int64 `json:"expires_at"`
}

func (c *ClientCredentials) fetch(ctx context.Context) error {
	form := url.Values{"grant_type": {"client_credentials"}}
	if c.Scope != "" {
		form.Set("scope", c.Scope)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.New().String())
	req.SetBasicAuth(c.ClientID, c.ClientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Provider: "token endpoint", Code: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if tr.AccessToken == "" {
		return errors.New("token endpoint returned no access_token")
	}

	now := c.now()
	switch {
	case tr.ExpiresAt > 0:
		c.expiry = time.UnixMilli(tr.ExpiresAt)
	case tr.ExpiresIn > 0:
		c.expiry = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		c.expiry = now.Add(30 * time.Minute)
	}
	c.token = tr.AccessToken
	return nil
}
