package coordinator

import (
	"context"
	"log/slog"

	"github.com/distfs/distfs/internal/locktable"
	"github.com/distfs/distfs/internal/tree"
	"github.com/distfs/distfs/path"
)

// invalidate is the invalidation worker task of spec §4.2/§4.3: it
// re-acquires the file's exclusive lock itself, keeps one replica, and
// deletes every other one.
func (c *Coordinator) invalidate(ctx context.Context, p path.Path, f *tree.File) {
	var err error
	defer func() { recordWorkerOutcome("invalidate", err) }()

	// "If counter is zero, return (no reads since last event)."
	if c.counterFor(p.String()) == 0 {
		return
	}

	if lockErr := c.Locks.LockChain(ctx, p, locktable.Exclusive); lockErr != nil {
		return
	}
	defer c.Locks.UnlockChain(p, locktable.Exclusive)

	current, resolveErr := c.Tree.ResolveFile(p)
	if resolveErr != nil || current != f {
		return
	}

	replicas := f.Replicas()
	if len(replicas) <= 1 {
		c.resetCounter(p.String())
		return
	}
	keep, _ := pickRandom(replicas)

	for _, id := range replicas {
		if id == keep {
			continue
		}
		if _, delErr := commandStubFor(id).Delete(ctx, p.String()); delErr != nil {
			c.Log.Warn("invalidation delete failed", slog.String("path", p.String()), slog.Any("err", delErr))
			continue
		}
		c.Tree.RemoveReplica(f, id)
	}
	c.resetCounter(p.String())
}
