package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// defaultTokenTTL is used when the token endpoint omits expires_in.
const defaultTokenTTL = 300 * time.Second

// tokenSafety is subtracted from the advertised lifetime so a token is never
// presented right at its expiry instant.
const tokenSafety = 10 * time.Second

// tokenCache fetches bearer tokens from the auth endpoint and reuses them
// until shortly before expiry.
type tokenCache struct {
	client       *http.Client
	endpoint     string
	clientKey    string
	clientSecret string

	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenCache(client *http.Client, endpoint, clientKey, clientSecret string) *tokenCache {
	return &tokenCache{
		client:       client,
		endpoint:     endpoint,
		clientKey:    clientKey,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Token returns a valid bearer token, fetching a fresh one when the cached
// token is missing or about to expire.
func (c *tokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientKey)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string  `json:"access_token"`
		ExpiresIn   float64 `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	ttl := defaultTokenTTL
	if payload.ExpiresIn > 0 {
		ttl = time.Duration(payload.ExpiresIn * float64(time.Second))
	}
	if ttl > tokenSafety {
		ttl -= tokenSafety
	}

	c.token = payload.AccessToken
	c.expires = c.now().Add(ttl)
	return c.token, nil
}

// invalidate drops the cached token so the next call fetches a fresh one.
func (c *tokenCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expires = time.Time{}
}
