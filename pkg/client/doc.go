// Package client integrates a web application with an OAuth-style identity
// provider.
//
// It implements the client side of the authorization code flow: building the
// authorize URL, trading a code for tokens, fetching the user record and the
// optional profile, and signing out. Completed logins are written into a
// [session.Store].
//
// # Quick Start
//
//	provider := client.New(client.Config{
//	    ProviderURL: "https://id.example.com",
//	    ClientID:    "dashboard",
//	    RedirectURL: "https://app.example.com/callback",
//	})
//
//	callback := &client.Callback{
//	    Provider:    provider,
//	    States:      client.NewStateStore(10 * time.Minute),
//	    Sessions:    registry, // resolves the tab's *session.Store
//	    SuccessPath: "/dashboard",
//	    LoginPath:   "/login",
//	}
//	r.Handle("/callback", callback)
//	r.Handle("/login/start", callback.LoginStart())
//
// # Callback Processing
//
// The callback route is the only place a `code` is exchanged. Each `state`
// is single use: a replayed or stale callback is rejected, or, when the tab
// is already signed in, sent back to SuccessPath without touching the
// provider. Requests that carry `code` and `state` on any other route are
// expected to be forwarded here unchanged (see the gate package).
//
// # Testing
//
// Depend on the [Provider] interface rather than *Client. The providertest
// package runs a fake provider implementing the same endpoints.
package client
