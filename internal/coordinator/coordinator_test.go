package coordinator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/distfs/distfs/internal/storage"
	"github.com/distfs/distfs/internal/storageid"
	"github.com/distfs/distfs/path"
)

// testStorage is an in-process storage node (real internal/storage.Node
// served over loopback TCP skeletons) used as a fake RPC peer, in the
// style of spec §8's end-to-end scenarios.
type testStorage struct {
	node *storage.Node
	id   storageid.ID
}

func startStorage(t *testing.T) *testStorage {
	t.Helper()
	n, err := storage.New(t.TempDir(), nil)
	require.NoError(t, err)

	dataSk := n.DataSkeleton()
	require.NoError(t, dataSk.Start("127.0.0.1:0"))
	t.Cleanup(func() { dataSk.Stop(nil) })

	cmdSk := n.CommandSkeleton()
	require.NoError(t, cmdSk.Start("127.0.0.1:0"))
	t.Cleanup(func() { cmdSk.Stop(nil) })

	dataAddr := dataSk.Addr().(*net.TCPAddr).String()
	cmdAddr := cmdSk.Addr().(*net.TCPAddr).String()

	return &testStorage{
		node: n,
		id:   storageid.ID{Data: dataAddr, Command: cmdAddr},
	}
}

func mustPath(t *testing.T, s string) path.Path {
	t.Helper()
	p, err := path.Parse(s)
	require.NoError(t, err)
	return p
}

func TestBootstrapAndCreate(t *testing.T) {
	c := New(4, nil)
	s1 := startStorage(t)

	dups, err := c.Register(s1.id.Data, s1.id.Command, nil)
	require.NoError(t, err)
	require.Empty(t, dups)

	ctx := context.Background()
	ok, err := c.CreateDirectory(ctx, mustPath(t, "/a"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.CreateFile(ctx, mustPath(t, "/a/f"))
	require.NoError(t, err)
	require.True(t, ok)

	id, err := c.GetStorage(mustPath(t, "/a/f"))
	require.NoError(t, err)
	require.Equal(t, s1.id, id)

	names, err := c.List(ctx, mustPath(t, "/a"))
	require.NoError(t, err)
	require.Equal(t, []string{"f"}, names)
}

func TestDuplicateRegistrationReconciliation(t *testing.T) {
	c := New(4, nil)
	s1 := startStorage(t)
	_, err := c.Register(s1.id.Data, s1.id.Command, nil)
	require.NoError(t, err)

	ctx := context.Background()
	ok, err := c.CreateFile(ctx, mustPath(t, "/x"))
	require.NoError(t, err)
	require.True(t, ok)

	s2 := startStorage(t)
	dups, err := c.Register(s2.id.Data, s2.id.Command, []string{"/x"})
	require.NoError(t, err)
	require.Equal(t, []string{"/x"}, dups)

	f, err := c.Tree.ResolveFile(mustPath(t, "/x"))
	require.NoError(t, err)
	require.Len(t, f.Replicas(), 1)
	require.Equal(t, s1.id, f.Replicas()[0])
}

func TestReplicationThresholdAddsSecondReplica(t *testing.T) {
	c := New(4, nil)
	s1 := startStorage(t)
	s2 := startStorage(t)
	_, err := c.Register(s1.id.Data, s1.id.Command, nil)
	require.NoError(t, err)
	_, err = c.Register(s2.id.Data, s2.id.Command, nil)
	require.NoError(t, err)

	ctx := context.Background()
	ok, err := c.CreateFile(ctx, mustPath(t, "/f"))
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < ReplicationThreshold; i++ {
		require.NoError(t, c.Lock(ctx, mustPath(t, "/f"), false))
		require.NoError(t, c.Unlock(mustPath(t, "/f"), false))
	}

	require.Eventually(t, func() bool {
		f, err := c.Tree.ResolveFile(mustPath(t, "/f"))
		if err != nil {
			return false
		}
		return len(f.Replicas()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidationOnExclusiveLockPrunesToOneReplica(t *testing.T) {
	c := New(4, nil)
	s1 := startStorage(t)
	s2 := startStorage(t)
	_, err := c.Register(s1.id.Data, s1.id.Command, nil)
	require.NoError(t, err)
	_, err = c.Register(s2.id.Data, s2.id.Command, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.CreateFile(ctx, mustPath(t, "/f"))
	require.NoError(t, err)

	for i := 0; i < ReplicationThreshold; i++ {
		require.NoError(t, c.Lock(ctx, mustPath(t, "/f"), false))
		require.NoError(t, c.Unlock(mustPath(t, "/f"), false))
	}
	require.Eventually(t, func() bool {
		f, _ := c.Tree.ResolveFile(mustPath(t, "/f"))
		return f != nil && len(f.Replicas()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Lock(ctx, mustPath(t, "/f"), true))
	require.NoError(t, c.Unlock(mustPath(t, "/f"), true))

	require.Eventually(t, func() bool {
		f, _ := c.Tree.ResolveFile(mustPath(t, "/f"))
		return f != nil && len(f.Replicas()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteCascadeNotifiesEveryStorageNode(t *testing.T) {
	c := New(4, nil)
	s1 := startStorage(t)
	s2 := startStorage(t)
	_, err := c.Register(s1.id.Data, s1.id.Command, nil)
	require.NoError(t, err)
	_, err = c.Register(s2.id.Data, s2.id.Command, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.CreateDirectory(ctx, mustPath(t, "/d"))
	require.NoError(t, err)

	ok1, err := c.CreateFile(ctx, mustPath(t, "/d/f1"))
	require.NoError(t, err)
	require.True(t, ok1)
	ok2, err := c.CreateFile(ctx, mustPath(t, "/d/f2"))
	require.NoError(t, err)
	require.True(t, ok2)

	ok, err := c.Delete(ctx, mustPath(t, "/d"))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Tree.Resolve(mustPath(t, "/d"))
	require.Error(t, err)
}

func TestCreateDirectoryIdempotenceLaw(t *testing.T) {
	c := New(2, nil)
	ctx := context.Background()
	p := mustPath(t, "/a")

	ok, err := c.CreateDirectory(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.CreateDirectory(ctx, p)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteRootAndCreateFileRootAlwaysFalse(t *testing.T) {
	c := New(2, nil)
	ctx := context.Background()

	ok, err := c.Delete(ctx, path.Root)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.CreateFile(ctx, path.Root)
	require.NoError(t, err)
	require.False(t, ok)
}
