package gate

import (
	"context"
	"sync"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// Bootstrap hydrates a store from its ephemeral tier exactly once and
// signals completion. Readers wait on the signal instead of a delay.
type Bootstrap struct {
	store *session.Store
	once  sync.Once
	done  chan struct{}
	err   error
}

func NewBootstrap(store *session.Store) *Bootstrap {
	return &Bootstrap{
		store: store,
		done:  make(chan struct{}),
	}
}

// Run calls InitializeFromOAuth the first time it is called and returns
// its result on every call. It never redirects or denies anything itself.
func (b *Bootstrap) Run() error {
	b.once.Do(func() {
		b.err = b.store.InitializeFromOAuth()
		close(b.done)
	})
	return b.err
}

// Done is closed once Run has completed.
func (b *Bootstrap) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until Run has completed or ctx ends.
func (b *Bootstrap) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the result of the completed Run, or nil while pending.
// ErrMissingCredential and ErrInconsistentSession are expected outcomes.
func (b *Bootstrap) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}
