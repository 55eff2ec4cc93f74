// Package breeze provides a client for the Breeze product API, used to seed
// fixture data and authenticate before a conformance run.
package breeze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines the product API operations used for fixture seeding.
type Client interface {
	// Register creates the admin account. Safe to call when the account
	// already exists.
	Register(ctx context.Context, email, password, name string) error
	// Login authenticates and returns a bearer token.
	Login(ctx context.Context, email, password string) (string, error)
	// EnsureOrg returns the id of the named organization, creating it if
	// needed.
	EnsureOrg(ctx context.Context, token, name string) (string, error)
	// EnsureSite returns the id and enrollment key of the named site within
	// an organization, creating it if needed.
	EnsureSite(ctx context.Context, token, orgID, name string) (siteID, enrollmentKey string, err error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.hc = hc
	}
}

type httpClient struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a product API client for the given base URL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Register(ctx context.Context, email, password, name string) error {
	status, _, err := c.post(ctx, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	})
	if err != nil {
		return eris.Wrap(err, "breeze: register")
	}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusConflict:
		// Account left over from a previous run.
		zap.L().Debug("breeze: admin account already exists", zap.String("email", email))
		return nil
	default:
		return eris.Errorf("breeze: register: unexpected status %d", status)
	}
}

func (c *httpClient) Login(ctx context.Context, email, password string) (string, error) {
	status, body, err := c.post(ctx, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", eris.Wrap(err, "breeze: login")
	}
	if status != http.StatusOK {
		return "", eris.Errorf("breeze: login: unexpected status %d", status)
	}

	var resp struct {
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "breeze: login: parse response")
	}
	if resp.Tokens.AccessToken == "" {
		return "", eris.New("breeze: login: empty access token")
	}
	return resp.Tokens.AccessToken, nil
}

func (c *httpClient) EnsureOrg(ctx context.Context, token, name string) (string, error) {
	if id, err := c.findByName(ctx, token, "/api/v1/organizations", name); err != nil {
		return "", eris.Wrap(err, "breeze: list organizations")
	} else if id != "" {
		return id, nil
	}

	status, body, err := c.post(ctx, "/api/v1/organizations", token, map[string]string{"name": name})
	if err != nil {
		return "", eris.Wrap(err, "breeze: create organization")
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return "", eris.Errorf("breeze: create organization: unexpected status %d", status)
	}
	return parseID(body)
}

func (c *httpClient) EnsureSite(ctx context.Context, token, orgID, name string) (string, string, error) {
	path := fmt.Sprintf("/api/v1/organizations/%s/sites", orgID)

	status, body, err := c.get(ctx, path, token)
	if err != nil {
		return "", "", eris.Wrap(err, "breeze: list sites")
	}
	if status == http.StatusOK {
		if id, key := findSite(body, name); id != "" {
			return id, key, nil
		}
	}

	status, body, err = c.post(ctx, path, token, map[string]string{"name": name})
	if err != nil {
		return "", "", eris.Wrap(err, "breeze: create site")
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return "", "", eris.Errorf("breeze: create site: unexpected status %d", status)
	}

	var site struct {
		ID            string `json:"id"`
		EnrollmentKey string `json:"enrollmentKey"`
	}
	if err := json.Unmarshal(body, &site); err != nil {
		return "", "", eris.Wrap(err, "breeze: create site: parse response")
	}
	return site.ID, site.EnrollmentKey, nil
}

// findByName GETs a collection endpoint and returns the id of the entry with
// the given name, or "".
func (c *httpClient) findByName(ctx context.Context, token, path, name string) (string, error) {
	status, body, err := c.get(ctx, path, token)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", nil
	}
	var items []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &items); err != nil {
		return "", nil
	}
	for _, it := range items {
		if it.Name == name {
			return it.ID, nil
		}
	}
	return "", nil
}

func findSite(body []byte, name string) (string, string) {
	var sites []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		EnrollmentKey string `json:"enrollmentKey"`
	}
	if err := json.Unmarshal(body, &sites); err != nil {
		return "", ""
	}
	for _, s := range sites {
		if s.Name == name {
			return s.ID, s.EnrollmentKey
		}
	}
	return "", ""
}

func parseID(body []byte) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "breeze: parse id")
	}
	if resp.ID == "" {
		return "", eris.New("breeze: response missing id")
	}
	return resp.ID, nil
}

func (c *httpClient) post(ctx context.Context, path, token string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

func (c *httpClient) get(ctx context.Context, path, token string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

func (c *httpClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
