// Package client provides reference implementations of the engine's external
// collaborators against a remote CMS JSON API: a Persister with CSRF token
// handling and a tenant-scoped asset store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bandfolio/formkit/pkg/form"
	"github.com/bandfolio/formkit/pkg/tokencache"
)

const csrfHeader = "X-CSRF-Token"

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger injects the logger used for non-fatal conditions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithCSRFTTL overrides how long a fetched CSRF token is reused.
func WithCSRFTTL(ttl time.Duration) Option {
	return func(c *Client) { c.csrfTTL = ttl }
}

// Client talks to one tenant's slice of the remote CMS API.
type Client struct {
	base       *url.URL
	tenant     string
	httpClient *http.Client
	csrf       *tokencache.Cache
	csrfTTL    time.Duration
	log        *slog.Logger
}

// New constructs a client for the given API base URL and tenant.
func New(baseURL, tenant string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", baseURL)
	}
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return nil, errors.New("client: tenant is required")
	}

	c := &Client{
		base:       base,
		tenant:     tenant,
		httpClient: http.DefaultClient,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	csrfOpts := []tokencache.Option{}
	if c.csrfTTL > 0 {
		csrfOpts = append(csrfOpts, tokencache.WithTTL(c.csrfTTL))
	}
	c.csrf = tokencache.New(c.fetchCSRF, csrfOpts...)
	return c, nil
}

// Persister returns the persistence collaborator for one resource. An empty
// id creates (POST); a non-empty id updates (PUT).
func (c *Client) Persister(resource, id string) form.Persister {
	return form.PersisterFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		method := http.MethodPost
		target := c.endpoint(resource)
		if id != "" {
			method = http.MethodPut
			target = c.endpoint(resource, id)
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("client: encode payload: %w", err)
		}

		resp, err := c.doWithCSRF(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, decodeAPIError(resp)
		}

		// Some deployments answer PUT with 204 and no body; that is still
		// a successful save, just without an entity echo.
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("client: read entity: %w", err)
		}
		if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}

		var entity map[string]any
		if err := json.Unmarshal(raw, &entity); err != nil {
			return nil, fmt.Errorf("client: decode entity: %w", err)
		}
		return entity, nil
	})
}

// FetchList retrieves the tenant's current collection for a resource, used by
// callers to refresh list views after a save.
func (c *Client) FetchList(ctx context.Context, resource string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(resource), nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var entities []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return nil, fmt.Errorf("client: decode list: %w", err)
	}
	return entities, nil
}

// doWithCSRF sends a mutating request with the cached CSRF token, refetching
// the token and retrying once when the server rejects it.
func (c *Client) doWithCSRF(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.csrf.Token(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("client: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(csrfHeader, token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("client: %s %s: %w", method, target, err)
		}

		if resp.StatusCode == http.StatusForbidden && attempt == 0 {
			resp.Body.Close()
			c.csrf.Invalidate()
			continue
		}
		return resp, nil
	}
}

func (c *Client) fetchCSRF(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("api", "csrf"), nil)
	if err != nil {
		return "", fmt.Errorf("client: build csrf request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("client: fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("client: fetch csrf token: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("client: decode csrf token: %w", err)
	}
	if payload.Token == "" {
		return "", errors.New("client: csrf response carried no token")
	}
	return payload.Token, nil
}

func (c *Client) endpoint(resource string, extra ...string) string {
	parts := append([]string{"api", "t", c.tenant, resource}, extra...)
	return c.url(parts...)
}

func (c *Client) url(parts ...string) string {
	joined := *c.base
	joined.Path = strings.TrimRight(joined.Path, "/")
	for _, part := range parts {
		joined.Path += "/" + strings.Trim(part, "/")
	}
	return joined.String()
}

// decodeAPIError maps a non-2xx response onto *form.PersistError, keeping
// field-scoped server messages when the body carries them.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var payload struct {
		Message     string            `json:"message"`
		FieldErrors map[string]string `json:"fieldErrors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return &form.PersistError{
			Message:     payload.Message,
			FieldErrors: payload.FieldErrors,
		}
	}
	return &form.PersistError{
		Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
	}
}
