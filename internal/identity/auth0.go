package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/brocantia/collector/pkg/errors"
)

// Client talks to the identity provider's management API for the
// administrative operations the marketplace cannot do locally:
// blocking accounts, changing emails/passwords and deleting users.
// Management tokens are short lived; the client caches one until 60s
// before expiry.
type Client struct {
	domain       string
	clientID     string
	clientSecret string
	audience     string
	http         *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewClient(domain, clientID, clientSecret, audience string) *Client {
	return &Client{
		domain:       domain,
		clientID:     clientID,
		clientSecret: clientSecret,
		audience:     audience,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) managementToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiry) {
		return c.token, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("identity management not configured: set AUTH0_MGMT_CLIENT_ID and AUTH0_MGMT_CLIENT_SECRET")
	}

	body, _ := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"audience":      c.audience,
	})
	tokenURL := fmt.Sprintf("https://%s/oauth/token", c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("management token request failed: status=%d body=%s", resp.StatusCode, raw)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	c.token = payload.AccessToken
	c.expiry = time.Now().Add(time.Duration(payload.ExpiresIn-60) * time.Second)
	return c.token, nil
}

func (c *Client) request(ctx context.Context, method, path string, data interface{}) ([]byte, error) {
	token, err := c.managementToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	url := fmt.Sprintf("https://%s/api/v2%s", c.domain, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("management request failed: %s %s status=%d body=%s", method, path, resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) userPath(userID string) string {
	return "/users/" + strings.ReplaceAll(userID, "|", "%7C")
}

// UpdateUser patches fields on the provider account (blocked, email,
// password and anything else the PATCH users endpoint supports).
func (c *Client) UpdateUser(ctx context.Context, userID string, fields map[string]interface{}) error {
	_, err := c.request(ctx, http.MethodPatch, c.userPath(userID), fields)
	return err
}

// DeleteUser permanently removes the provider account. Irreversible.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.request(ctx, http.MethodDelete, c.userPath(userID), nil)
	return err
}

// SetBlocked blocks or unblocks the account; blocked users cannot log in.
func (c *Client) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	return c.UpdateUser(ctx, userID, map[string]interface{}{"blocked": blocked})
}

func (c *Client) ChangeEmail(ctx context.Context, userID, email string) error {
	return c.UpdateUser(ctx, userID, map[string]interface{}{"email": email})
}

func (c *Client) ChangePassword(ctx context.Context, userID, password string) error {
	return c.UpdateUser(ctx, userID, map[string]interface{}{"password": password})
}

// Provider returns the account's identity provider ("auth0" for
// database accounts, "google-oauth2" etc. for social logins), falling
// back to the "provider|id" prefix when the lookup gives nothing.
func (c *Client) Provider(ctx context.Context, userID string) (string, error) {
	raw, err := c.request(ctx, http.MethodGet, c.userPath(userID), nil)
	if err != nil {
		return "", err
	}

	var payload struct {
		Identities []struct {
			Provider string `json:"provider"`
		} `json:"identities"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil &&
		len(payload.Identities) > 0 && payload.Identities[0].Provider != "" {
		return payload.Identities[0].Provider, nil
	}

	if prefix, _, found := strings.Cut(userID, "|"); found && prefix != "" {
		return prefix, nil
	}
	return "unknown", nil
}

// RequireDatabaseUser rejects email/password management for accounts
// the provider does not own the credentials for (social logins).
func (c *Client) RequireDatabaseUser(ctx context.Context, userID string) error {
	provider, err := c.Provider(ctx, userID)
	if err != nil {
		return err
	}
	if provider != "auth0" {
		return apperrors.Forbidden(
			fmt.Sprintf("operation not allowed for provider %q: credentials are managed by the identity provider", provider))
	}
	return nil
}
