// Package gate puts the session of a browser tab in front of protected
// routes.
//
// Four pieces are meant to be chained on a router, outermost first:
//
//   - [Interceptor] forwards provider callback parameters that land on the
//     wrong route to the canonical callback route.
//   - [Registry] resolves the tab's [Workspace] from its cookies and runs the
//     workspace's [Bootstrap] once, so the store reflects the ephemeral tier
//     before anything reads it.
//   - [Gate] guards a region: it waits for the bootstrap signal, evaluates
//     the session, and either serves the region or redirects.
//   - [Logout] ends a session from anywhere.
//
// # Limitations
//
// The gate decides per request. A role change at the provider, or a logout
// in another tab, is not pushed to a page that is already rendered; the next
// navigation in that tab is evaluated and evicted.
package gate
