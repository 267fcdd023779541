package addonsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrRemote wraps every failure reported by the remote addon service
var ErrRemote = errors.New("remote service error")

// RemoteService is the external collaborator that hands out addon ids and
// receives the end-of-run update notification
type RemoteService interface {
	IdentityResolver
	NotifyUpdates(ctx context.Context, updates UpdateSet) error
}

// RemoteConfig configures the HTTP remote client
type RemoteConfig struct {
	BaseURL string
	Secret  string // HS256 signing key, empty disables the Authorization header
	Timeout time.Duration
	Retry   RetryConfig
}

// HTTPRemote talks to the addon service over HTTP
type HTTPRemote struct {
	baseURL    string
	secret     []byte
	httpClient *http.Client
	retry      RetryConfig
}

// NewHTTPRemote creates a remote client
func NewHTTPRemote(cfg RemoteConfig) *HTTPRemote {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return &HTTPRemote{
		baseURL: base,
		secret:  []byte(cfg.Secret),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retry: cfg.Retry,
	}
}

// RemoteFromConfig builds the HTTP remote from the [api] section
func RemoteFromConfig(api *APIConfig) *HTTPRemote {
	retry := DefaultRetryConfig()
	retry.MaxAttempts = api.Retries
	return NewHTTPRemote(RemoteConfig{
		BaseURL: api.URL,
		Secret:  api.Secret,
		Timeout: api.Timeout,
		Retry:   retry,
	})
}

// applyAuth adds a short-lived bearer token when a secret is configured
func (r *HTTPRemote) applyAuth(req *http.Request) error {
	if len(r.secret) == 0 {
		return nil
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "addonsync",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return fmt.Errorf("failed to sign request token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// do sends one request and returns the body of a 2xx response. Network
// errors, 429 and 5xx are marked retryable.
func (r *HTTPRemote) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if err := r.applyAuth(req); err != nil {
		return nil, err
	}

	VerboseLog(2, "%s %s", method, req.URL)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, retryable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, retryable(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("%s %s returned %s: %s", method, endpoint, resp.Status, strings.TrimSpace(string(data)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, retryable(statusErr)
		}
		return nil, statusErr
	}
	return data, nil
}

// AddonID asks the service for the stable id of an addon name
func (r *HTTPRemote) AddonID(ctx context.Context, name string) (string, error) {
	var body []byte
	err := withRetry(ctx, r.retry, "addon id lookup", func() error {
		var err error
		body, err = r.do(ctx, http.MethodGet, "addon/"+url.PathEscape(name), nil)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: addon id lookup for %s: %w", ErrRemote, name, err)
	}

	var result struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: invalid addon id response for %s: %v", ErrRemote, name, err)
	}
	if result.UUID == "" {
		return "", fmt.Errorf("%w: empty uuid returned for %s", ErrRemote, name)
	}
	return result.UUID, nil
}

// NotifyUpdates posts the run's UpdateSet in a single request. An empty set
// sends nothing.
func (r *HTTPRemote) NotifyUpdates(ctx context.Context, updates UpdateSet) error {
	if len(updates) == 0 {
		VerboseLog(1, "No addon updates to report")
		return nil
	}

	payload, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("failed to encode update set: %w", err)
	}

	err = withRetry(ctx, r.retry, "update notification", func() error {
		_, err := r.do(ctx, http.MethodPost, "addons/update", payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: update notification: %w", ErrRemote, err)
	}

	VerboseLog(1, "Reported %d updated addons", len(updates))
	return nil
}
