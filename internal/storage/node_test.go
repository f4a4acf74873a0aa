package storage

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distfs/distfs/internal/dfserr"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return n
}

func TestCreateThenReadWriteSize(t *testing.T) {
	n := newTestNode(t)

	ok, err := n.Create("/a/f")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = n.Create("/a/f")
	require.NoError(t, err)
	require.False(t, ok, "second create of same path returns false")

	size, err := n.Size("/a/f")
	require.NoError(t, err)
	require.Zero(t, size)

	require.NoError(t, n.Write("/a/f", 0, []byte("hello")))
	size, err = n.Size("/a/f")
	require.NoError(t, err)
	require.EqualValues(t, 5, size)

	got, err := n.Read("/a/f", 0, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestReadAtEndOfFileReturnsEmpty(t *testing.T) {
	n := newTestNode(t)
	_, err := n.Create("/f")
	require.NoError(t, err)
	require.NoError(t, n.Write("/f", 0, []byte("abc")))

	got, err := n.Read("/f", 3, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWriteAtOffsetEqualToSizeExtendsByLen(t *testing.T) {
	n := newTestNode(t)
	_, err := n.Create("/f")
	require.NoError(t, err)
	require.NoError(t, n.Write("/f", 0, []byte("abc")))

	require.NoError(t, n.Write("/f", 3, []byte("de")))
	size, err := n.Size("/f")
	require.NoError(t, err)
	require.EqualValues(t, 5, size)

	got, err := n.Read("/f", 0, 5)
	require.NoError(t, err)
	require.Equal(t, "abcde", string(got))
}

func TestWriteBeyondEndZeroPads(t *testing.T) {
	n := newTestNode(t)
	_, err := n.Create("/f")
	require.NoError(t, err)
	require.NoError(t, n.Write("/f", 0, []byte("ab")))

	require.NoError(t, n.Write("/f", 5, []byte("z")))
	got, err := n.Read("/f", 0, 6)
	require.NoError(t, err)
	require.Equal(t, []byte{'a', 'b', 0, 0, 0, 'z'}, got)
}

func TestReadPastEndOfFileFails(t *testing.T) {
	n := newTestNode(t)
	_, err := n.Create("/f")
	require.NoError(t, err)
	require.NoError(t, n.Write("/f", 0, []byte("ab")))

	_, err = n.Read("/f", 0, 10)
	require.Error(t, err)
	require.True(t, dfserr.Is(err, dfserr.InvalidArgument))
}

func TestCreateDeleteRootAlwaysFalse(t *testing.T) {
	n := newTestNode(t)

	ok, err := n.Create("/")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = n.Delete("/")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPathTraversalCannotEscapeRoot(t *testing.T) {
	n := newTestNode(t)

	full, err := n.resolve("../../etc/passwd")
	require.NoError(t, err)
	require.True(t, full == n.root || len(full) > len(n.root), "resolved path must stay under root")
	require.Contains(t, full, n.root)
}

func TestDeleteRecursive(t *testing.T) {
	n := newTestNode(t)
	_, err := n.Create("/d/f1")
	require.NoError(t, err)
	_, err = n.Create("/d/f2")
	require.NoError(t, err)

	ok, err := n.Delete("/d")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = n.Size("/d/f1")
	require.True(t, dfserr.Is(err, dfserr.NotFound))
}

func TestCopyPullsFromSourceDataEndpoint(t *testing.T) {
	src := newTestNode(t)
	_, err := src.Create("/f")
	require.NoError(t, err)
	require.NoError(t, src.Write("/f", 0, []byte("replicate me")))

	sk := src.DataSkeleton()
	require.NoError(t, sk.Start("127.0.0.1:0"))
	defer sk.Stop(nil)

	dst := newTestNode(t)
	addr := sk.Addr().(*net.TCPAddr).String()
	require.NoError(t, dst.Copy(context.Background(), "/f", addr))

	got, err := dst.Read("/f", 0, 12)
	require.NoError(t, err)
	require.Equal(t, "replicate me", string(got))
}
