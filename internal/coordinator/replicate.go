package coordinator

import (
	"context"
	"log/slog"

	"github.com/distfs/distfs/internal/locktable"
	"github.com/distfs/distfs/internal/storageid"
	"github.com/distfs/distfs/internal/tree"
	"github.com/distfs/distfs/path"
)

// replicate is the replication worker task of spec §4.2/§4.3: it
// re-acquires the file's shared lock itself (the triggering caller has
// already released), picks a storage node not yet hosting the file,
// and copies it there.
//
// triggerCount is the counter value observed at dispatch time, carried
// through purely so a failed copy can restore it exactly (spec §4.2
// "on failure, restore the original counter"); onShared has already
// decided ReplicationThreshold was met before scheduling this task.
func (c *Coordinator) replicate(ctx context.Context, p path.Path, f *tree.File, triggerCount int) {
	var err error
	defer func() { recordWorkerOutcome("replicate", err) }()

	if lockErr := c.Locks.LockChain(ctx, p, locktable.Shared); lockErr != nil {
		return
	}
	defer c.Locks.UnlockChain(p, locktable.Shared)

	// The path may have been deleted between scheduling and
	// acquisition (spec §4.2 edge case): silently return.
	current, resolveErr := c.Tree.ResolveFile(p)
	if resolveErr != nil || current != f {
		return
	}

	hosting := make(map[storageid.ID]struct{}, len(f.Replicas()))
	for _, id := range f.Replicas() {
		hosting[id] = struct{}{}
	}
	var candidates []storageid.ID
	for _, id := range c.registrySnapshot() {
		if _, ok := hosting[id]; !ok {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		c.resetCounter(p.String())
		return
	}
	target, _ := pickRandom(candidates)

	source, ok := pickRandom(f.Replicas())
	if !ok {
		return
	}

	if err = commandStubFor(target).Copy(ctx, p.String(), dataEndpointFor(source)); err != nil {
		c.Log.Warn("replication copy failed", slog.String("path", p.String()), slog.Any("err", err))
		c.restoreCounter(p.String(), triggerCount)
		return
	}

	c.Tree.AddReplica(f, target)
	c.resetCounter(p.String())
}
