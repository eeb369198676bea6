package tx

import (
	"context"
	"sync"

	dErrors "accounting/pkg/domain-errors"
)

// Snapshotter is implemented by in-memory stores that take part in
// MemoryRunner transactions. Snapshot captures the current state and returns
// a function restoring it.
type Snapshotter interface {
	Snapshot() (restore func())
}

// Gate keeps store calls made outside a transaction from observing one in
// progress.
type Gate interface {
	// Enter waits until no transaction is running and returns the function
	// that leaves the gate. A ctx that already belongs to a transaction
	// passes straight through.
	Enter(ctx context.Context, write bool) (leave func())
}

// Gated is implemented by participants that accept a Gate. MemoryRunner
// hands itself to each of them when they are registered.
type Gated interface {
	UseGate(g Gate)
}

// Guard is held by in-memory stores to implement Gated. The zero value lets
// every call through. Use it as
//
//	defer s.guard.Read(ctx)()
type Guard struct {
	gate Gate
}

// UseGate must be called before the store is shared.
func (g *Guard) UseGate(gate Gate) {
	g.gate = gate
}

func (g *Guard) Read(ctx context.Context) (leave func()) {
	if g.gate == nil {
		return func() {}
	}
	return g.gate.Enter(ctx, false)
}

func (g *Guard) Write(ctx context.Context) (leave func()) {
	if g.gate == nil {
		return func() {}
	}
	return g.gate.Enter(ctx, true)
}

type memoryTxKey struct{}

// MemoryRunner serializes transactions over in-memory stores with a single
// process-wide lock. Registered participants are snapshotted before fn runs
// and restored in reverse order if fn fails, so a failed unit of work leaves
// no partial writes behind. Participants implementing Gated route calls made
// outside a transaction through the same lock, so they only ever see
// committed state.
type MemoryRunner struct {
	mu           sync.RWMutex
	participants []Snapshotter
}

func NewMemoryRunner(participants ...Snapshotter) *MemoryRunner {
	r := &MemoryRunner{}
	r.Register(participants...)
	return r
}

// Register adds participants after construction.
func (r *MemoryRunner) Register(participants ...Snapshotter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range participants {
		if g, ok := p.(Gated); ok {
			g.UseGate(r)
		}
	}
	r.participants = append(r.participants, participants...)
}

// Enter implements Gate.
func (r *MemoryRunner) Enter(ctx context.Context, write bool) (leave func()) {
	if inMemoryTx(ctx) {
		return func() {}
	}
	if write {
		r.mu.Lock()
		return r.mu.Unlock
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

func inMemoryTx(ctx context.Context) bool {
	_, ok := ctx.Value(memoryTxKey{}).(bool)
	return ok
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested calls join the outer transaction.
	if inMemoryTx(ctx) {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restores := make([]func(), 0, len(r.participants))
	for _, p := range r.participants {
		restores = append(restores, p.Snapshot())
	}

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return nil
}
