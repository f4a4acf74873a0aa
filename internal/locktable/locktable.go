// Package locktable implements the per-path read/write lock table of
// spec §4.2: write-preference fair locks acquired in lock-chain order,
// with replication/invalidation dispatch hooks fired on acquisition.
//
// The table knows nothing about files, storage nodes, or the
// directory tree — it is handed OnShared/OnExclusive callbacks at
// construction and calls them with a bare path string, the same
// decoupling quay/claircore's internal/distlock/guard.go draws between
// its serialized ioLoop and the connection-management concerns layered
// on top of it.
package locktable

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/distfs/distfs/internal/dfserr"
	"github.com/distfs/distfs/path"
)

// Mode is a lock's requested mode.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// record is one path's read/write lock state, implementing the
// write-preference algorithm of spec §4.2 exactly:
//
//	lockRead blocks while writers>0 || writeWaiters>0
//	lockWrite increments writeWaiters, blocks while readers>0 || writers>0
type record struct {
	mu           sync.Mutex
	cond         *sync.Cond
	readers      int
	writers      int
	writeWaiters int
}

func newRecord() *record {
	r := &record{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Table is a concurrent map from path string to lock record. Records
// are created lazily on first touch and never freed — spec §4.2
// requires lock records to live for the coordinator's process
// lifetime, a deliberate divergence from a reference-counted node pool
// (see SPEC_FULL.md §4.2); the tradeoff is bounded by the tree's own path
// cardinality, which in this system's scale is never large enough to
// warrant GC complexity.
type Table struct {
	// OnShared fires each time a path's lock is acquired in shared
	// mode, which includes every strict ancestor of a lock chain as
	// well as a target locked shared (spec §4.2's "replication hook" —
	// access-counter increment, threshold check, and filtering out
	// non-file paths live in internal/coordinator, not here).
	OnShared func(p string)
	// OnExclusive fires once a path's target lock is acquired in
	// exclusive mode (invalidation hook).
	OnExclusive func(p string)

	mu      sync.Mutex
	records map[string]*record
	group   singleflight.Group
}

// New constructs an empty Table.
func New() *Table {
	return &Table{records: map[string]*record{}}
}

// recordFor returns the record for key, creating it if absent. The
// singleflight group collapses concurrent first-touch creation for
// the same key into a single allocation, satisfying spec §5's "lock
// record creation is idempotent under race."
func (t *Table) recordFor(key string) *record {
	t.mu.Lock()
	if r, ok := t.records[key]; ok {
		t.mu.Unlock()
		return r
	}
	t.mu.Unlock()

	v, _, _ := t.group.Do(key, func() (any, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if r, ok := t.records[key]; ok {
			return r, nil
		}
		r := newRecord()
		t.records[key] = r
		return r, nil
	})
	return v.(*record)
}

// LockChain acquires the full lock chain of p: every strict ancestor
// in shared mode, then p itself in mode (spec §4.2 steps 1-4). If ctx
// is cancelled partway through, every already-acquired element of the
// chain is released before returning dfserr.Cancelled — "cancellation
// at step k must unwind steps 0..k-1" (spec §5).
func (t *Table) LockChain(ctx context.Context, p path.Path, mode Mode) error {
	chain := p.Chain() // root-first, per path.Path.Chain
	type held struct {
		p path.Path
		m Mode
	}
	acquired := make([]held, 0, len(chain))
	for i, cp := range chain {
		m := Shared
		if i == len(chain)-1 {
			m = mode
		}
		if err := t.lock(ctx, cp, m); err != nil {
			for j := len(acquired) - 1; j >= 0; j-- {
				t.unlock(acquired[j].p, acquired[j].m)
			}
			return err
		}
		acquired = append(acquired, held{cp, m})
	}
	return nil
}

// LockSelf acquires p's own record in mode without touching any
// ancestor. It exists for callers that already hold every strict
// ancestor of p (typically via a prior LockChain on p's parent): p's
// ancestors are exactly its parent's own chain, so a second LockChain
// on p would re-acquire those same ancestor records the caller is
// already holding — a guaranteed self-deadlock against an exclusive
// hold, since the table has no reentrancy or owner tracking. LockSelf
// lets such a caller lock only the one additional record it needs.
func (t *Table) LockSelf(ctx context.Context, p path.Path, mode Mode) error {
	return t.lock(ctx, p, mode)
}

// UnlockSelf releases p's own record, the counterpart to LockSelf.
func (t *Table) UnlockSelf(p path.Path, mode Mode) {
	t.unlock(p, mode)
}

// UnlockChain releases the full lock chain of p in reverse acquisition
// order (spec §4.2 "Unlock reverses the acquisition").
func (t *Table) UnlockChain(p path.Path, mode Mode) {
	chain := p.Chain()
	for i := len(chain) - 1; i >= 0; i-- {
		m := Shared
		if i == len(chain)-1 {
			m = mode
		}
		t.unlock(chain[i], m)
	}
}

func (t *Table) lock(ctx context.Context, p path.Path, mode Mode) error {
	key := p.String()
	r := t.recordFor(key)

	done := make(chan struct{})
	var cancelled bool
	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			cancelled = true
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-done:
		}
	}()

	r.mu.Lock()
	switch mode {
	case Shared:
		for r.writers > 0 || r.writeWaiters > 0 {
			if cancelled {
				r.mu.Unlock()
				close(done)
				return dfserr.New(dfserr.Cancelled, "lock wait on %q cancelled", key)
			}
			r.cond.Wait()
		}
		if cancelled {
			r.mu.Unlock()
			close(done)
			return dfserr.New(dfserr.Cancelled, "lock wait on %q cancelled", key)
		}
		r.readers++
	case Exclusive:
		r.writeWaiters++
		for r.readers > 0 || r.writers > 0 {
			if cancelled {
				r.writeWaiters--
				r.mu.Unlock()
				close(done)
				return dfserr.New(dfserr.Cancelled, "lock wait on %q cancelled", key)
			}
			r.cond.Wait()
		}
		r.writeWaiters--
		if cancelled {
			r.mu.Unlock()
			close(done)
			return dfserr.New(dfserr.Cancelled, "lock wait on %q cancelled", key)
		}
		r.writers++
	}
	r.mu.Unlock()
	close(done)

	switch mode {
	case Shared:
		if t.OnShared != nil {
			t.OnShared(key)
		}
	case Exclusive:
		if t.OnExclusive != nil {
			t.OnExclusive(key)
		}
	}
	return nil
}

func (t *Table) unlock(p path.Path, mode Mode) {
	key := p.String()
	t.mu.Lock()
	r, ok := t.records[key]
	t.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	switch mode {
	case Shared:
		r.readers--
	case Exclusive:
		r.writers--
	}
	r.cond.Broadcast()
	r.mu.Unlock()
}
