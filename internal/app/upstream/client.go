// Package upstream talks to the commerce backend: the documents API that
// serves the customer purchase listing and the legacy tracking API consulted
// when a document has no local traceability.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dvimperial/tracking_service/internal/app/domain/document"
	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
	"github.com/dvimperial/tracking_service/pkg/logger"
)

// Config holds the upstream endpoints and credentials.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientKey    string
	ClientSecret string
	Timeout      time.Duration
	CacheTTL     time.Duration
}

// Client is the commerce-backend API client. Tokens are fetched lazily and
// cached until expiry; listing responses are optionally cached in Redis.
type Client struct {
	http   *http.Client
	base   *url.URL
	tokens *tokenCache
	cache  *responseCache
	log    *logger.Logger
}

// New constructs a Client. A nil redis client disables response caching; a
// nil logger falls back to the package default.
func New(cfg Config, httpClient *http.Client, rdb *redis.Client, log *logger.Logger) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("upstream base url required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base url: %w", err)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = logger.NewDefault("upstream")
	}
	return &Client{
		http:   httpClient,
		base:   parsed,
		tokens: newTokenCache(httpClient, cfg.TokenURL, cfg.ClientKey, cfg.ClientSecret),
		cache:  newResponseCache(rdb, cfg.CacheTTL, log),
		log:    log,
	}, nil
}

// Documents fetches one page of a client's purchase documents. The search
// term is passed through as the backend's `buscar` parameter. Responses are
// served from the Redis cache when enabled.
func (c *Client) Documents(ctx context.Context, clientID string, page, limit int, search string) (purchase.Listing, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if s := strings.TrimSpace(search); s != "" {
		q.Set("buscar", s)
	}
	path := fmt.Sprintf("/api/clients/%s/documents", url.PathEscape(clientID))
	key := "documents:" + clientID + ":" + q.Encode()

	if raw, ok := c.cache.get(ctx, key); ok {
		return purchase.DecodeListing(raw), nil
	}

	raw, status, err := c.do(ctx, path, q, false)
	if err != nil {
		return purchase.Listing{}, err
	}
	if status != http.StatusOK {
		return purchase.Listing{}, fmt.Errorf("documents status %d", status)
	}

	c.cache.set(ctx, key, raw)
	return purchase.DecodeListing(raw), nil
}

// InvalidateDocuments drops the cached response for one page and search
// combination, typically right before a sync refetches it.
func (c *Client) InvalidateDocuments(ctx context.Context, clientID string, page, limit int, search string) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if s := strings.TrimSpace(search); s != "" {
		q.Set("buscar", s)
	}
	c.cache.drop(ctx, "documents:"+clientID+":"+q.Encode())
}

// LegacyTracking fetches a single document from the legacy tracking API by
// zero-padded folio and type code. The second return is false when the
// backend has no such document. Legacy responses are never cached; the call
// also sends no-cache headers, matching how the storefront consumed this API.
func (c *Client) LegacyTracking(ctx context.Context, folio, typeCode string) (purchase.Purchase, bool, error) {
	padded := document.PadFolio(folio)
	code := strings.ToUpper(strings.TrimSpace(typeCode))
	if code == "" {
		code = document.CodeBoleta
	}
	path := fmt.Sprintf("/api/clients/%s/%s", url.PathEscape(padded), url.PathEscape(code))

	raw, status, err := c.do(ctx, path, nil, true)
	if err != nil {
		return purchase.Purchase{}, false, err
	}
	if status == http.StatusNotFound {
		return purchase.Purchase{}, false, nil
	}
	if status != http.StatusOK {
		return purchase.Purchase{}, false, fmt.Errorf("legacy tracking status %d", status)
	}

	p, ok := purchase.DecodeLegacyInvoice(raw)
	return p, ok, nil
}

func (c *Client) do(ctx context.Context, path string, q url.Values, noCache bool) ([]byte, int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire token: %w", err)
	}

	raw, status, err := c.roundTrip(ctx, path, q, token, noCache)
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusUnauthorized {
		// Token revoked before its advertised expiry. Refresh once.
		c.tokens.invalidate()
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("refresh token: %w", err)
		}
		raw, status, err = c.roundTrip(ctx, path, q, token, noCache)
		if err != nil {
			return nil, 0, err
		}
	}
	return raw, status, nil
}

func (c *Client) roundTrip(ctx context.Context, path string, q url.Values, token string, noCache bool) ([]byte, int, error) {
	requestURL := *c.base
	requestURL.Path = strings.TrimRight(requestURL.Path, "/") + path
	if q != nil {
		requestURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if noCache {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
		req.Header.Set("Expires", "0")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read upstream response: %w", err)
	}
	return raw, resp.StatusCode, nil
}
