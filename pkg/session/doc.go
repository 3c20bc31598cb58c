// Package session owns the authenticated identity of one browser tab and its
// two-tier persistence.
//
// A [Store] keeps the canonical in-process view of the signed-in user. Token
// material and the provider's user records are mirrored to an ephemeral,
// tab-scoped [Tier]; a minimal [Snapshot] without any token material is
// mirrored to a durable, profile-scoped [Tier]. Callers never touch either
// tier directly.
//
// # Completing a login
//
//	store := session.NewStore(ephemeral, durable, session.NopObserver{})
//	err := store.SetOAuthData(tokens.AccessToken, info, profile)
//
// # Rehydrating after a reload
//
//	if err := store.InitializeFromOAuth(); err != nil {
//	    // ErrMissingCredential or ErrInconsistentSession: stay signed out
//	}
//
// The snapshot in the durable tier only avoids UI flicker. It is never enough
// to authorize anything; authorization reads [Store.Identity] and
// [Store.Credential], both of which come from the ephemeral tier.
package session
