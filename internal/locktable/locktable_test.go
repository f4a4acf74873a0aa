package locktable

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/distfs/distfs/internal/dfserr"
	"github.com/distfs/distfs/path"
)

func mustPath(t *testing.T, s string) path.Path {
	t.Helper()
	p, err := path.Parse(s)
	require.NoError(t, err)
	return p
}

func TestLockUnlockIsNoOp(t *testing.T) {
	tbl := New()
	p := mustPath(t, "/a")
	ctx := context.Background()

	require.NoError(t, tbl.LockChain(ctx, p, Exclusive))
	tbl.UnlockChain(p, Exclusive)

	require.NoError(t, tbl.LockChain(ctx, p, Shared))
	tbl.UnlockChain(p, Shared)
}

func TestConcurrentDisjointChainsDoNotBlock(t *testing.T) {
	tbl := New()
	ctx := context.Background()
	a := mustPath(t, "/a/b")
	b := mustPath(t, "/a/c")

	require.NoError(t, tbl.LockChain(ctx, a, Exclusive))
	done := make(chan struct{})
	go func() {
		require.NoError(t, tbl.LockChain(ctx, b, Exclusive))
		tbl.UnlockChain(b, Exclusive)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sibling chain under different parent should not block")
	}
	tbl.UnlockChain(a, Exclusive)
}

func TestAncestorExclusiveBlocksDescendantUntilReleased(t *testing.T) {
	tbl := New()
	ctx := context.Background()
	a := mustPath(t, "/a")
	ab := mustPath(t, "/a/b")
	ac := mustPath(t, "/a/c")

	require.NoError(t, tbl.LockChain(ctx, ab, Exclusive))
	require.NoError(t, tbl.LockChain(ctx, ac, Exclusive))

	var cLocked int32
	done := make(chan struct{})
	go func() {
		require.NoError(t, tbl.LockChain(ctx, a, Exclusive))
		atomic.StoreInt32(&cLocked, 1)
		tbl.UnlockChain(a, Exclusive)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&cLocked), "C must block while A and B hold /a/b and /a/c")

	tbl.UnlockChain(ab, Exclusive)
	tbl.UnlockChain(ac, Exclusive)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("C should acquire /a once both descendants release")
	}
}

func TestWritePreferenceBlocksNewReadersBehindPendingWriter(t *testing.T) {
	tbl := New()
	ctx := context.Background()
	p := mustPath(t, "/f")

	require.NoError(t, tbl.LockChain(ctx, p, Shared))

	writerStarted := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		close(writerStarted)
		require.NoError(t, tbl.LockChain(ctx, p, Exclusive))
		tbl.UnlockChain(p, Exclusive)
		close(writerDone)
	}()
	<-writerStarted
	time.Sleep(20 * time.Millisecond) // let writer register as waiting

	readerBlocked := make(chan struct{})
	go func() {
		require.NoError(t, tbl.LockChain(ctx, p, Shared))
		tbl.UnlockChain(p, Shared)
		close(readerBlocked)
	}()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-readerBlocked:
		t.Fatal("new reader must block behind the pending writer")
	default:
	}

	tbl.UnlockChain(p, Shared) // release the original reader

	select {
	case <-writerDone:
	case <-time.After(time.Second):
		t.Fatal("pending writer must not starve behind new readers")
	}
	<-readerBlocked
}

func TestLockCancelUnwindsPartialChain(t *testing.T) {
	tbl := New()
	p := mustPath(t, "/a/b")

	require.NoError(t, tbl.LockChain(context.Background(), p, Exclusive))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tbl.LockChain(ctx, p, Exclusive)
	require.Error(t, err)
	require.True(t, dfserr.Is(err, dfserr.Cancelled))

	tbl.UnlockChain(p, Exclusive)
}

func TestOnSharedAndOnExclusiveHooksFire(t *testing.T) {
	tbl := New()
	var sharedCount, exclusiveCount int32
	var mu sync.Mutex
	var sharedPaths []string
	tbl.OnShared = func(p string) {
		mu.Lock()
		defer mu.Unlock()
		sharedPaths = append(sharedPaths, p)
		atomic.AddInt32(&sharedCount, 1)
	}
	tbl.OnExclusive = func(p string) {
		atomic.AddInt32(&exclusiveCount, 1)
	}

	p := mustPath(t, "/a/f")
	ctx := context.Background()
	require.NoError(t, tbl.LockChain(ctx, p, Exclusive))
	tbl.UnlockChain(p, Exclusive)

	// Chain is [/, /a, /a/f]: the two ancestors fire OnShared, the
	// target fires OnExclusive.
	require.EqualValues(t, 2, atomic.LoadInt32(&sharedCount))
	require.EqualValues(t, 1, atomic.LoadInt32(&exclusiveCount))
}
