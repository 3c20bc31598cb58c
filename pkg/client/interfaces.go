package client

import (
	"context"
	"net/http"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// Provider is the identity provider as seen by this application.
// Consuming code should depend on this interface rather than *Client
// so tests can substitute a fake.
type Provider interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (*TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (session.UserInfo, error)
	Profile(ctx context.Context, accessToken string) (*session.UserProfile, error)
	SignOut(ctx context.Context, credential session.Credential) error
}

// StoreResolver finds the session store of the tab that sent a request,
// along with an id naming that tab. Login states are bound to the id.
type StoreResolver interface {
	StoreFor(w http.ResponseWriter, r *http.Request) (store *session.Store, owner string, err error)
}
