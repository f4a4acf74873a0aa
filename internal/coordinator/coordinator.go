// Package coordinator implements the naming coordinator of spec §4.3:
// the client service, the storage registration protocol, and the
// replication/invalidation workers that keep file replica sets
// healthy, all driven off the path lock table's acquisition hooks.
package coordinator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/distfs/distfs/internal/dfserr"
	"github.com/distfs/distfs/internal/locktable"
	"github.com/distfs/distfs/internal/metrics"
	"github.com/distfs/distfs/internal/storage"
	"github.com/distfs/distfs/internal/storageid"
	"github.com/distfs/distfs/internal/tree"
	"github.com/distfs/distfs/path"
)

// ReplicationThreshold is the access-counter threshold that triggers
// a replication task (spec §4.2 "exceeds a threshold (specified here
// as 20)").
const ReplicationThreshold = 20

// Coordinator owns the directory tree, the lock table, the storage
// registry, and the bounded worker pool that runs replication and
// invalidation tasks. It is a per-process singleton passed explicitly
// to every worker rather than held as module-level state (spec §9
// "Global mutable state").
type Coordinator struct {
	Tree  *tree.Tree
	Locks *locktable.Table
	Log   *slog.Logger

	regMu    sync.RWMutex
	registry map[storageid.ID]struct{}

	ctrMu    sync.Mutex
	counters map[string]int

	sem chan struct{} // bounds concurrent replication/invalidation tasks
}

// New constructs a Coordinator with the given worker concurrency
// (cmd/namingserver's WORKER_CONCURRENCY setting).
func New(concurrency int, log *slog.Logger) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		Tree:     tree.New(),
		Log:      log,
		registry: map[storageid.ID]struct{}{},
		counters: map[string]int{},
		sem:      make(chan struct{}, concurrency),
	}
	locks := locktable.New()
	locks.OnShared = c.onShared
	locks.OnExclusive = c.onExclusive
	c.Locks = locks
	return c
}

// onShared is the lock table's shared-acquisition hook (spec §4.2
// "replication hook"). It fires for every path in a lock chain, but
// only file paths carry an access counter — ancestors always resolve
// to directories, so the tree.ResolveFile check below is sufficient
// to distinguish "this was the file target locked in shared mode"
// from "this was an ancestor locked shared while descending."
func (c *Coordinator) onShared(p string) {
	pp, err := path.Parse(p)
	if err != nil {
		return
	}
	f, err := c.Tree.ResolveFile(pp)
	if err != nil {
		return
	}
	c.ctrMu.Lock()
	c.counters[p]++
	n := c.counters[p]
	c.ctrMu.Unlock()

	if n < ReplicationThreshold {
		return
	}
	c.dispatch(func(ctx context.Context) { c.replicate(ctx, pp, f, n) })
}

// onExclusive is the lock table's exclusive-acquisition hook (spec
// §4.2 "invalidation task"). Same ancestor/target disambiguation as
// onShared.
func (c *Coordinator) onExclusive(p string) {
	pp, err := path.Parse(p)
	if err != nil {
		return
	}
	f, err := c.Tree.ResolveFile(pp)
	if err != nil {
		return
	}
	c.dispatch(func(ctx context.Context) { c.invalidate(ctx, pp, f) })
}

// dispatch runs task on the bounded worker pool, not one goroutine per
// event (spec §9 "schedule on a shared worker pool"). The semaphore
// acquisition happens inside the spawned goroutine, not in the caller:
// dispatch is invoked synchronously from inside Table.lock's
// OnShared/OnExclusive hooks, which fire on every lock acquisition
// (client lock RPCs included) as well as on a worker's own re-acquisition of the path it's replicating
// or invalidating. Blocking the caller on pool capacity here would
// therefore (a) make a client's lock RPC block on unrelated worker
// load, and (b) let every pool slot fill with a worker stuck waiting
// for one more slot to run its own re-trigger, which can never free up
// since none of them can finish first.
func (c *Coordinator) dispatch(task func(ctx context.Context)) {
	go func() {
		c.sem <- struct{}{}
		defer func() { <-c.sem }()
		task(context.Background())
	}()
}

func (c *Coordinator) resetCounter(p string) {
	c.ctrMu.Lock()
	c.counters[p] = 0
	c.ctrMu.Unlock()
}

func (c *Coordinator) restoreCounter(p string, n int) {
	c.ctrMu.Lock()
	c.counters[p] = n
	c.ctrMu.Unlock()
}

func (c *Coordinator) counterFor(p string) int {
	c.ctrMu.Lock()
	defer c.ctrMu.Unlock()
	return c.counters[p]
}

// registerIdentity adds id to the registry, failing InvalidState if
// already present (spec §4.3 "rejects ... if an identity ... is
// already registered").
func (c *Coordinator) registerIdentity(id storageid.ID) error {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	if _, ok := c.registry[id]; ok {
		return dfserr.New(dfserr.InvalidState, "storage identity %s already registered", id)
	}
	c.registry[id] = struct{}{}
	return nil
}

// registrySnapshot returns a defensive copy of the current registry.
func (c *Coordinator) registrySnapshot() []storageid.ID {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	out := make([]storageid.ID, 0, len(c.registry))
	for id := range c.registry {
		out = append(out, id)
	}
	return out
}

// pickRandom returns a uniformly random element of ids, and false if
// ids is empty. math/rand/v2 is used directly (no seeding required,
// no reproducibility requirement is stated by the spec — see
// DESIGN.md).
func pickRandom(ids []storageid.ID) (storageid.ID, bool) {
	if len(ids) == 0 {
		return storageid.ID{}, false
	}
	return ids[rand.IntN(len(ids))], true
}

func commandStubFor(id storageid.ID) storage.CommandStub {
	return storage.NewCommandStub(id.Command)
}

func dataEndpointFor(id storageid.ID) string { return id.Data }

func recordWorkerOutcome(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.WorkerTasks.WithLabelValues(kind, outcome).Inc()
}
