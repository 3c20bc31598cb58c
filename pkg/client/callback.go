package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Callback is the canonical callback route. It is the only place that turns
// a provider `code` into a session, and it rejects codes whose `state` was
// never issued, was already used, or was issued to another tab.
type Callback struct {
	Provider Provider
	States   *StateStore
	Sessions StoreResolver
	// SuccessPath is where a completed login lands.
	SuccessPath string
	// LoginPath is the public login entry point used on failure.
	LoginPath string
	Logger    *slog.Logger
}

func (c *Callback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := c.logger()
	store, owner, err := c.Sessions.StoreFor(w, r)
	if err != nil {
		logger.ErrorContext(r.Context(), "callback: couldn't resolve session", "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		c.fail(w, r, ErrCodeMissing)
		return
	}

	if !c.States.Consume(state, owner) {
		// a stale or replayed callback from a tab that is already signed in
		// goes back to where it was, not through the provider again
		if _, ok := store.Identity(); ok {
			logger.InfoContext(r.Context(), "callback: ignoring replayed code for signed-in session")
			http.Redirect(w, r, c.SuccessPath, http.StatusSeeOther)
			return
		}
		c.fail(w, r, ErrStateMismatch)
		return
	}

	ctx := r.Context()
	tokens, err := c.Provider.Exchange(ctx, code)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if err := store.SetTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
		c.fail(w, r, err)
		return
	}

	info, err := c.Provider.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	profile, err := c.Provider.Profile(ctx, tokens.AccessToken)
	if err != nil {
		// the profile only refines the display name
		logger.WarnContext(ctx, "callback: continuing without profile", "error", err)
		profile = nil
	}

	if err := store.SetOAuthData(tokens.AccessToken, info, profile); err != nil {
		c.fail(w, r, err)
		return
	}

	logger.InfoContext(ctx, "callback: signed in", "uid", info.UID, "role", string(info.Role))
	http.Redirect(w, r, c.SuccessPath, http.StatusSeeOther)
}

// LoginStart returns a handler that issues a state owned by the requesting
// tab and sends the browser to the provider.
func (c *Callback) LoginStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, owner, err := c.Sessions.StoreFor(w, r)
		if err != nil {
			c.logger().ErrorContext(r.Context(), "login start: couldn't resolve session", "error", err)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		state := c.States.Issue(owner)
		http.Redirect(w, r, c.Provider.AuthorizeURL(state), http.StatusSeeOther)
	}
}

func (c *Callback) fail(w http.ResponseWriter, r *http.Request, err error) {
	c.logger().WarnContext(r.Context(), "callback: login failed", "error", err)

	reason := "callback"
	switch {
	case errors.Is(err, ErrCodeMissing):
		reason = "missing_code"
	case errors.Is(err, ErrStateMismatch):
		reason = "stale_state"
	case errors.Is(err, ErrTokenRequest), errors.Is(err, ErrTokenResponse):
		reason = "token"
	}

	q := url.Values{}
	q.Set("error", reason)
	http.Redirect(w, r, fmt.Sprintf("%s?%s", c.LoginPath, q.Encode()), http.StatusSeeOther)
}

func (c *Callback) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
