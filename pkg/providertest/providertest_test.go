package providertest_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/sessiongate/pkg/providertest"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = providertest.User{
	Info: session.UserInfo{UID: "u-1", Email: "alice@example.com", Username: "alice", Role: session.RoleAdmin},
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func TestAuthorize_RedirectsWithCodeAndState(t *testing.T) {
	t.Parallel()
	srv := providertest.NewServer(alice)
	defer srv.Close()

	// authorize sends the browser back with code and state
	client := &http.Client{CheckRedirect: noRedirect}
	res, err := client.Get(srv.URL + "/oauth/authorize?redirect_uri=" + url.QueryEscape("http://app.test/callback") + "&state=s-1")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusFound, res.StatusCode)
	location, err := url.Parse(res.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/callback", location.Path)
	assert.Equal(t, "s-1", location.Query().Get("state"))
	assert.NotEmpty(t, location.Query().Get("code"))
}

func TestAuthorize_StaleRedirectPath(t *testing.T) {
	t.Parallel()
	srv := providertest.NewServer(alice)
	defer srv.Close()

	// a misconfigured provider lands on another route
	srv.RedirectPath("/")
	client := &http.Client{CheckRedirect: noRedirect}
	res, err := client.Get(srv.URL + "/oauth/authorize?redirect_uri=" + url.QueryEscape("http://app.test/callback") + "&state=s-1")
	require.NoError(t, err)
	defer res.Body.Close()

	location, err := url.Parse(res.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", location.Path)
}

func TestToken_CodeIsSingleUse(t *testing.T) {
	t.Parallel()
	srv := providertest.NewServer()
	defer srv.Close()
	code := srv.IssueCode(alice)

	// first exchange succeeds
	res, err := http.Post(srv.URL+"/oauth/token", "application/x-www-form-urlencoded", strings.NewReader("code="+code))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// the same code is rejected afterwards
	res, err = http.Post(srv.URL+"/oauth/token", "application/x-www-form-urlencoded", strings.NewReader("code="+code))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestLogout_FailOnDemand(t *testing.T) {
	t.Parallel()
	srv := providertest.NewServer()
	defer srv.Close()

	// failing logout is not counted
	srv.FailSignOut(true)
	res, err := http.Post(srv.URL+"/oauth/logout", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, 0, srv.SignOuts())

	// recovered logout is counted
	srv.FailSignOut(false)
	res, err = http.Post(srv.URL+"/oauth/logout", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, 1, srv.SignOuts())
}
