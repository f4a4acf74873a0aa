package tree

import (
	"testing"

	"github.com/distfs/distfs/internal/dfserr"
	"github.com/distfs/distfs/internal/storageid"
	"github.com/distfs/distfs/path"
	"github.com/stretchr/testify/require"
)

func mustPath(t *testing.T, s string) path.Path {
	t.Helper()
	p, err := path.Parse(s)
	require.NoError(t, err)
	return p
}

func TestCreateDirectoryIdempotenceLaw(t *testing.T) {
	tr := New()
	p := mustPath(t, "/a")

	ok, err := tr.CreateDirectory(p)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tr.CreateDirectory(p)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateFileThenDeleteThenCreateSucceedsBoth(t *testing.T) {
	tr := New()
	_, err := tr.CreateDirectory(mustPath(t, "/a"))
	require.NoError(t, err)
	id := storageid.ID{Data: "d:1", Command: "c:1"}

	p := mustPath(t, "/a/f")
	ok, err := tr.CreateFile(p, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = tr.Delete(p)
	require.NoError(t, err)

	ok, err = tr.CreateFile(p, id)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateFileRootAlwaysFalse(t *testing.T) {
	tr := New()
	ok, err := tr.CreateFile(path.Root, storageid.ID{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteRootFails(t *testing.T) {
	tr := New()
	_, err := tr.Delete(path.Root)
	require.Error(t, err)
	require.True(t, dfserr.Is(err, dfserr.InvalidArgument))
}

func TestCreateFileMissingParentNotFound(t *testing.T) {
	tr := New()
	_, err := tr.CreateFile(mustPath(t, "/missing/f"), storageid.ID{})
	require.Error(t, err)
	require.True(t, dfserr.Is(err, dfserr.NotFound))
}

func TestEveryFileNodeHasAtLeastOneReplica(t *testing.T) {
	tr := New()
	id := storageid.ID{Data: "d:1", Command: "c:1"}
	_, err := tr.CreateFile(mustPath(t, "/f"), id)
	require.NoError(t, err)

	f, err := tr.ResolveFile(mustPath(t, "/f"))
	require.NoError(t, err)
	require.Len(t, f.Replicas(), 1)
}

func TestResolveDirRejectsFileAsDirectory(t *testing.T) {
	tr := New()
	id := storageid.ID{Data: "d:1", Command: "c:1"}
	_, err := tr.CreateFile(mustPath(t, "/f"), id)
	require.NoError(t, err)

	_, err = tr.ResolveDir(mustPath(t, "/f"))
	require.Error(t, err)
	require.True(t, dfserr.Is(err, dfserr.NotFound))
}

func TestRegisterFileReportsDuplicate(t *testing.T) {
	tr := New()
	id1 := storageid.ID{Data: "d:1", Command: "c:1"}
	id2 := storageid.ID{Data: "d:2", Command: "c:2"}

	dup, err := tr.RegisterFile(mustPath(t, "/x"), id1)
	require.NoError(t, err)
	require.False(t, dup)

	dup, err = tr.RegisterFile(mustPath(t, "/x"), id2)
	require.NoError(t, err)
	require.True(t, dup)

	f, err := tr.ResolveFile(mustPath(t, "/x"))
	require.NoError(t, err)
	require.Len(t, f.Replicas(), 1)
}

func TestRegisterFileCreatesIntermediateDirectories(t *testing.T) {
	tr := New()
	id := storageid.ID{Data: "d:1", Command: "c:1"}
	_, err := tr.RegisterFile(mustPath(t, "/a/b/f"), id)
	require.NoError(t, err)

	d, err := tr.ResolveDir(mustPath(t, "/a/b"))
	require.NoError(t, err)
	require.Contains(t, d.Children(), "f")
}

func TestDeleteCascadeWalkVisitsEveryDescendant(t *testing.T) {
	tr := New()
	id1 := storageid.ID{Data: "d:1", Command: "c:1"}
	id2 := storageid.ID{Data: "d:2", Command: "c:2"}
	_, err := tr.CreateDirectory(mustPath(t, "/d"))
	require.NoError(t, err)
	_, err = tr.CreateFile(mustPath(t, "/d/f1"), id1)
	require.NoError(t, err)
	_, err = tr.CreateFile(mustPath(t, "/d/f2"), id1)
	require.NoError(t, err)
	_, err = tr.CreateDirectory(mustPath(t, "/d/g"))
	require.NoError(t, err)
	_, err = tr.CreateFile(mustPath(t, "/d/g/h"), id2)
	require.NoError(t, err)

	n, err := tr.Delete(mustPath(t, "/d"))
	require.NoError(t, err)

	var names []string
	Walk(n, func(_ []string, n Node) { names = append(names, n.Name()) })
	require.ElementsMatch(t, []string{"d", "f1", "f2", "g", "h"}, names)

	_, err = tr.Resolve(mustPath(t, "/d"))
	require.True(t, dfserr.Is(err, dfserr.NotFound))
}
