package client

import (
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

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

var (
	ErrCodeMissing    = errors.New("missing code or state")
	ErrStateMismatch  = errors.New("unknown or reused state")
	ErrTokenRequest   = errors.New("failed to fetch token")
	ErrTokenResponse  = errors.New("invalid token response")
	ErrUserInfo       = errors.New("failed to fetch user info")
	ErrProfileRequest = errors.New("failed to fetch user profile")
)

// TokenSet is the token endpoint response of the provider.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Config describes how to reach the identity provider.
type Config struct {
	// ProviderURL is the base URL of the identity provider.
	ProviderURL string
	// ClientID identifies this application to the provider.
	ClientID string
	// RedirectURL is the absolute URL of the canonical callback route.
	RedirectURL string
	// HTTPClient is used for every provider call; defaults to a client with
	// a 10 second timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the identity provider over HTTP.
type Client struct {
	providerURL string
	clientID    string
	redirectURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ Provider = (*Client)(nil)

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		providerURL: strings.TrimRight(cfg.ProviderURL, "/"),
		clientID:    cfg.ClientID,
		redirectURL: cfg.RedirectURL,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// AuthorizeURL builds the provider URL a browser is sent to for login.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURL)
	q.Set("state", state)
	return fmt.Sprintf("%s/oauth/authorize?%s", c.providerURL, q.Encode())
}

// Exchange trades an authorization code for tokens. Errors are
// [ErrTokenRequest] or [ErrTokenResponse].
func (c *Client) Exchange(
	ctx context.Context,
	code string,
) (
	*TokenSet,
	error,
) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.clientID)
	form.Set("redirect_uri", c.redirectURL)

	endpoint := fmt.Sprintf("%s/oauth/token", c.providerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.DebugContext(ctx, "posting authorization code", "url", endpoint)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrTokenRequest, res.StatusCode)
	}

	tokens := new(TokenSet)
	if err := json.NewDecoder(res.Body).Decode(tokens); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenResponse, err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrTokenResponse)
	}
	return tokens, nil
}

// UserInfo fetches the user record for an access token.
func (c *Client) UserInfo(
	ctx context.Context,
	accessToken string,
) (
	session.UserInfo,
	error,
) {
	var info session.UserInfo
	status, err := c.getJSON(ctx, "/oauth/userinfo", accessToken, &info)
	if err != nil {
		return session.UserInfo{}, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	if status != http.StatusOK {
		return session.UserInfo{}, fmt.Errorf("%w: provider returned status %d", ErrUserInfo, status)
	}
	if info.UID == "" {
		return session.UserInfo{}, fmt.Errorf("%w: missing uid", ErrUserInfo)
	}
	return info, nil
}

// Profile fetches the optional application profile. A user without a
// profile yields nil and no error.
func (c *Client) Profile(
	ctx context.Context,
	accessToken string,
) (
	*session.UserProfile,
	error,
) {
	profile := new(session.UserProfile)
	status, err := c.getJSON(ctx, "/api/profile", accessToken, profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileRequest, err)
	}
	switch status {
	case http.StatusOK:
		return profile, nil
	case http.StatusNotFound, http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: provider returned status %d", ErrProfileRequest, status)
	}
}

// SignOut ends the session at the provider. Failures wrap
// [session.ErrProviderSignOut].
func (c *Client) SignOut(
	ctx context.Context,
	credential session.Credential,
) error {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	if credential.RefreshToken != "" {
		form.Set("refresh_token", credential.RefreshToken)
	}

	endpoint := fmt.Sprintf("%s/oauth/logout", c.providerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrProviderSignOut, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if credential.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+credential.AccessToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrProviderSignOut, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode >= 300 {
		return fmt.Errorf("%w: provider returned status %d", session.ErrProviderSignOut, res.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(
	ctx context.Context,
	path string,
	accessToken string,
	out any,
) (
	int,
	error,
) {
	endpoint := c.providerURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return res.StatusCode, nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return res.StatusCode, fmt.Errorf("couldn't decode %s: %v", path, err)
	}
	return res.StatusCode, nil
}
