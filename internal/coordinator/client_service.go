package coordinator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/distfs/distfs/internal/dfserr"
	"github.com/distfs/distfs/internal/locktable"
	"github.com/distfs/distfs/internal/storageid"
	"github.com/distfs/distfs/internal/tree"
	"github.com/distfs/distfs/path"
)

func modeOf(exclusive bool) locktable.Mode {
	if exclusive {
		return locktable.Exclusive
	}
	return locktable.Shared
}

// Lock acquires the full lock chain of p in the requested mode (spec
// §4.3 client-service "lock").
func (c *Coordinator) Lock(ctx context.Context, p path.Path, exclusive bool) error {
	if _, err := c.Tree.Resolve(p); err != nil {
		return err
	}
	return c.Locks.LockChain(ctx, p, modeOf(exclusive))
}

// Unlock releases the full lock chain of p (spec §4.3 "unlock").
func (c *Coordinator) Unlock(p path.Path, exclusive bool) error {
	c.Locks.UnlockChain(p, modeOf(exclusive))
	return nil
}

// IsDirectory resolves p and reports whether it names a directory.
func (c *Coordinator) IsDirectory(p path.Path) (bool, error) {
	n, err := c.Tree.Resolve(p)
	if err != nil {
		return false, err
	}
	_, ok := n.(*tree.Dir)
	return ok, nil
}

// List acquires a shared lock on dir, snapshots its children, releases
// the lock, and returns the names (spec §4.3 "list").
func (c *Coordinator) List(ctx context.Context, dir path.Path) ([]string, error) {
	if err := c.Locks.LockChain(ctx, dir, locktable.Shared); err != nil {
		return nil, err
	}
	defer c.Locks.UnlockChain(dir, locktable.Shared)

	d, err := c.Tree.ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	return d.Children(), nil
}

// CreateFile chooses a storage node uniformly at random, issues
// create(path) to it, and inserts a file node (spec §4.3
// "createFile"). The Open Question resolution of SPEC_FULL.md §4.3
// takes the parent's chain exclusively for the duration of the
// mutation.
func (c *Coordinator) CreateFile(ctx context.Context, p path.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}
	parent, err := p.Parent()
	if err != nil {
		return false, err
	}
	if err := c.Locks.LockChain(ctx, parent, locktable.Exclusive); err != nil {
		return false, err
	}
	defer c.Locks.UnlockChain(parent, locktable.Exclusive)

	if _, err := c.Tree.ResolveDir(parent); err != nil {
		return false, err
	}
	if _, err := c.Tree.Resolve(p); err == nil {
		return false, nil
	}

	ids := c.registrySnapshot()
	id, ok := pickRandom(ids)
	if !ok {
		return false, dfserr.New(dfserr.InvalidState, "no storage nodes registered")
	}
	created, err := commandStubFor(id).Create(ctx, p.String())
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	return c.Tree.CreateFile(p, id)
}

// CreateDirectory inserts a directory node at p (spec §4.3
// "createDirectory").
func (c *Coordinator) CreateDirectory(ctx context.Context, p path.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}
	parent, err := p.Parent()
	if err != nil {
		return false, err
	}
	if err := c.Locks.LockChain(ctx, parent, locktable.Exclusive); err != nil {
		return false, err
	}
	defer c.Locks.UnlockChain(parent, locktable.Exclusive)

	if _, err := c.Tree.ResolveDir(parent); err != nil {
		return false, err
	}
	return c.Tree.CreateDirectory(p)
}

// Delete acquires an exclusive lock on p, notifies every storage node
// holding a replica (or every registered node, for a directory), then
// removes the tree entry regardless of storage-side outcome (spec §4.3
// "delete"; Open Question resolution #2 in SPEC_FULL.md §4.3).
func (c *Coordinator) Delete(ctx context.Context, p path.Path) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}
	parent, err := p.Parent()
	if err != nil {
		return false, err
	}
	if err := c.Locks.LockChain(ctx, parent, locktable.Exclusive); err != nil {
		return false, err
	}
	defer c.Locks.UnlockChain(parent, locktable.Exclusive)

	// p's strict ancestors are exactly parent's own chain, already held
	// above, so only p's own record needs locking here: a LockChain(p)
	// call would re-acquire those same ancestors and deadlock against
	// the exclusive hold this goroutine already has on them.
	if err := c.Locks.LockSelf(ctx, p, locktable.Exclusive); err != nil {
		return false, err
	}
	defer c.Locks.UnlockSelf(p, locktable.Exclusive)

	n, err := c.Tree.Resolve(p)
	if err != nil {
		return false, err
	}

	var targets []storageid.ID
	switch nn := n.(type) {
	case *tree.File:
		targets = nn.Replicas()
	case *tree.Dir:
		targets = c.registrySnapshot()
	}

	ok := c.notifyDelete(ctx, p.String(), targets)

	if _, err := c.Tree.Delete(p); err != nil {
		return false, err
	}
	return ok, nil
}

// notifyDelete issues delete(path) to every target's command endpoint
// concurrently and reports whether every one acknowledged.
func (c *Coordinator) notifyDelete(ctx context.Context, p string, targets []storageid.ID) bool {
	if len(targets) == 0 {
		return true
	}
	g, gctx := errgroup.WithContext(ctx)
	results := make([]bool, len(targets))
	for i, id := range targets {
		i, id := i, id
		g.Go(func() error {
			ok, err := commandStubFor(id).Delete(gctx, p)
			results[i] = ok && err == nil
			return nil // storage-side failures don't cancel siblings
		})
	}
	_ = g.Wait()
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

// GetStorage resolves p to a file node and returns one of its replicas
// chosen uniformly at random (spec §4.3 "getStorage").
func (c *Coordinator) GetStorage(p path.Path) (storageid.ID, error) {
	f, err := c.Tree.ResolveFile(p)
	if err != nil {
		return storageid.ID{}, err
	}
	id, ok := pickRandom(f.Replicas())
	if !ok {
		return storageid.ID{}, dfserr.New(dfserr.InvalidState, "file %q has no replicas", p)
	}
	return id, nil
}
