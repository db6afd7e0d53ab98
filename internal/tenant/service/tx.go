package service

import (
	"context"
	"sync"
)

// passthroughTx runs the callback directly. It is the default when no runner
// is injected; single-store operations do not need a transaction scope.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Checkpointer is implemented by in-memory stores that can snapshot their
// state and hand back a restore closure, giving the in-memory transaction
// runner rollback semantics.
type Checkpointer interface {
	Checkpoint() (restore func())
}

// MemoryTxRunner serializes transactions with a coarse lock and restores
// every participating store when the callback fails. It mirrors what BEGIN /
// ROLLBACK gives the postgres runner, at in-memory fidelity.
type MemoryTxRunner struct {
	mu     sync.Mutex
	stores []Checkpointer
}

func NewMemoryTxRunner(stores ...Checkpointer) *MemoryTxRunner {
	return &MemoryTxRunner{stores: stores}
}

func (r *MemoryTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	restores := make([]func(), 0, len(r.stores))
	for _, store := range r.stores {
		restores = append(restores, store.Checkpoint())
	}

	if err := fn(ctx); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
