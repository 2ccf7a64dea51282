package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	http_ "github.com/mkrupp/inkspira/internal/infra/transport/http"
)

// AuthorizationHeader carries the bearer token.
const AuthorizationHeader = "Authorization"

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// AuthURL is the base URL of the auth service
	AuthURL string        `env:"AUTH_URL" default:"http://localhost:8081"`
	Timeout time.Duration `env:"AUTH_TIMEOUT" default:"10s"`
}

// HTTPClient implements AuthClient over the auth service HTTP API.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, a client with cfg.Timeout is used.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		//nolint:exhaustruct
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.authsvc.http_client"),
		cfg:        cfg,
	}
}

func (c *HTTPClient) endpoint(path string) string {
	return strings.TrimSuffix(c.cfg.AuthURL, "/") + path
}

// do sends the request and decodes a 2xx JSON body into out, if out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, form url.Values, bearer string, out any) (err error) {
	log := c.log.With(logging.Group("http", "method", method, "path", path))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "auth request failed", "error", err)
		}
	}()

	var encoded string
	if form != nil {
		encoded = form.Encode()
	}

	req, err := http_.NewRequest(ctx, method, c.endpoint(path), strings.NewReader(encoded))
	if err != nil {
		return errors.Join(domain.ErrUnavailable, err)
	}

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if bearer != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(domain.ErrUnavailable, fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if err := http_.ErrorFromResponse(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return http_.DecodeJSON(resp, out)
}

func (c *HTTPClient) Register(ctx context.Context, email, password string) (domain.Principal, error) {
	var principal domain.Principal

	err := c.do(ctx, http.MethodPost, "/auth/register",
		url.Values{"email": {email}, "password": {password}}, "", &principal)

	return principal, err
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (domain.AuthTokenResponse, error) {
	var tokens domain.AuthTokenResponse

	err := c.do(ctx, http.MethodPost, "/auth/login",
		url.Values{"email": {email}, "password": {password}}, "", &tokens)

	return tokens, err
}

func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", url.Values{"refreshToken": {refreshToken}}, "", nil)
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (domain.AuthTokenResponse, error) {
	var tokens domain.AuthTokenResponse

	err := c.do(ctx, http.MethodPost, "/auth/refresh", url.Values{"refreshToken": {refreshToken}}, "", &tokens)

	return tokens, err
}

func (c *HTTPClient) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset", url.Values{"email": {email}}, "", nil)
}

func (c *HTTPClient) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset/confirm",
		url.Values{"token": {token}, "password": {newPassword}}, "", nil)
}

// Validate asks the auth service for the principal of token.
func (c *HTTPClient) Validate(ctx context.Context, token string) (domain.Principal, error) {
	var principal domain.Principal

	if err := c.do(ctx, http.MethodPost, "/auth/validate", nil, token, &principal); err != nil {
		return domain.Principal{}, err
	}

	return principal, nil
}

func (c *HTTPClient) DeleteAccount(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodDelete, "/auth/account", nil, accessToken, nil)
}
