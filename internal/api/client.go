// Package api wraps the remote deployment service: epi-hmac signed HTTP
// calls, the {success, result, errors} envelope, and typed wrappers for the
// project, deployment, package, and database endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"epideploy/internal/credentials"
	"epideploy/internal/signer"
	"epideploy/shared"
)

var (
	ErrNetwork       = errors.New("api: network failure")
	ErrNoCredentials = errors.New("api: no credentials configured")
)

var alog = shared.PackageLogger("api", "🌐 API")

// APIError is a response the service itself rejected: non-2xx status or a
// success=false envelope.
type APIError struct {
	Status  int
	Message string
	Errors  []string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("api: request failed (HTTP %d): %s", e.Status, strings.Join(e.Errors, "; "))
	}
	if e.Message != "" {
		return fmt.Sprintf("api: request failed (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: request failed (HTTP %d)", e.Status)
}

// IsNotFound reports whether err is an APIError for a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is an APIError for rejected
// credentials (401 or 403).
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

// Options configures a Client. Everything is explicit: no globals, no
// hidden config reads.
type Options struct {
	Endpoint    string
	Credentials credentials.Credentials
	HTTPClient  *http.Client
}

// Client performs authenticated calls against the deployment API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	creds      credentials.Credentials
}

// New builds a Client. The credentials are validated for shape here so a
// bad secret fails before the first request.
func New(opts Options) (*Client, error) {
	if opts.Credentials.Empty() {
		return nil, ErrNoCredentials
	}
	if _, err := signer.New(opts.Credentials.ClientKey, opts.Credentials.ClientSecret); err != nil {
		return nil, err
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		return nil, errors.New("api: endpoint is required")
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		creds:      opts.Credentials,
	}, nil
}

// Credentials returns the credentials currently in use.
func (c *Client) Credentials() credentials.Credentials {
	return c.creds
}

// SetCredentials swaps the active credentials. Prefer WithCredentialOverride
// for anything temporary.
func (c *Client) SetCredentials(creds credentials.Credentials) {
	c.creds = creds
}

// WithCredentialOverride runs fn with creds active and restores the previous
// credentials on every exit path, including panics. Nothing is persisted.
func (c *Client) WithCredentialOverride(creds credentials.Credentials, fn func() error) error {
	prev := c.creds
	c.creds = creds
	defer func() { c.creds = prev }()
	return fn()
}

// ProjectID returns the project the client's credentials default to, which
// may be empty.
func (c *Client) ProjectID() string {
	return c.creds.ProjectID
}

func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

func (c *Client) Post(ctx context.Context, endpoint string, body interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, endpoint, body)
}

func (c *Client) Put(ctx context.Context, endpoint string, body interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, endpoint, body)
}

func (c *Client) Delete(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []string        `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}) (json.RawMessage, error) {
	target, err := url.Parse(c.endpoint + strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid endpoint %q: %w", endpoint, err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: cannot encode request body: %w", err)
		}
	}

	// The signed path covers the query string: the server recomputes the
	// HMAC over exactly what it received.
	requestPath := target.Path
	if target.RawQuery != "" {
		requestPath += "?" + target.RawQuery
	}

	sig, err := signer.New(c.creds.ClientKey, c.creds.ClientSecret)
	if err != nil {
		return nil, err
	}
	authorization, err := sig.Authorization(method, requestPath, payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("api: cannot build request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/json")

	alog.Debug("%s %s", method, requestPath)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	var env envelope
	if len(raw) > 0 {
		// A non-JSON body (proxy error page, gateway timeout) is reported
		// through the status code below.
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
			Errors:  env.Errors,
		}
	}

	return env.Result, nil
}

// ValidationResult is the outcome of a credential probe.
type ValidationResult struct {
	Valid         bool `json:"valid"`
	ProjectsFound int  `json:"projectsFound,omitempty"`
}

// ValidateCredentials swaps creds in, performs a representative read, and
// restores the previous credentials on every exit path. A 401/403 means the
// credentials are bad; any other failure is re-raised because it could just
// as well be a transient infrastructure problem.
func (c *Client) ValidateCredentials(ctx context.Context, creds credentials.Credentials) (ValidationResult, error) {
	var result ValidationResult

	err := c.WithCredentialOverride(creds, func() error {
		if creds.ProjectID != "" {
			if _, err := c.ListDeployments(ctx, creds.ProjectID); err != nil {
				return err
			}
			result = ValidationResult{Valid: true, ProjectsFound: 1}
			return nil
		}

		projects, err := c.ListProjects(ctx)
		if err != nil {
			return err
		}
		result = ValidationResult{Valid: true, ProjectsFound: len(projects)}
		return nil
	})

	if err != nil {
		if IsUnauthorized(err) {
			return ValidationResult{Valid: false}, nil
		}
		return ValidationResult{}, err
	}
	return result, nil
}
