package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/distfs/distfs/internal/dfserr"
	"github.com/distfs/distfs/internal/metrics"
	"github.com/distfs/distfs/internal/rpc"
)

// copyChunkSize bounds a single copy read, per spec §4.4: "bounded
// (e.g., 8 KiB) to support files larger than process memory."
const copyChunkSize = 8 << 10

// Node is a storage node's local state: a file root and the RPC
// surface spec §4.4 describes (size/read/write on the data endpoint;
// create/delete/copy on the command endpoint).
type Node struct {
	root string

	// CopyLimiter optionally throttles the copy loop's write rate —
	// a supplemental feature (§1.2/§4.4 of SPEC_FULL.md), not part of
	// the distilled contract. Nil means unlimited.
	CopyLimiter *rate.Limiter

	Log *slog.Logger
}

// New resolves root to an absolute path and returns a Node rooted
// there. The directory is created if it does not already exist.
func New(root string, log *slog.Logger) (*Node, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, dfserr.Wrap(dfserr.IO, err, "resolve storage root")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, dfserr.Wrap(dfserr.IO, err, "create storage root")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Node{root: abs, Log: log}, nil
}

// resolve joins a client-supplied path under root, rejecting any
// attempt to escape it via ".." components — the storage RPC surface
// is this system's external edge, so it is the one place path
// traversal is defended against explicitly.
func (n *Node) resolve(p string) (string, error) {
	clean := filepath.Clean("/" + p)
	full := filepath.Join(n.root, clean)
	if full != n.root && !strings.HasPrefix(full, n.root+string(filepath.Separator)) {
		return "", dfserr.New(dfserr.InvalidArgument, "path %q escapes storage root", p)
	}
	return full, nil
}

// Size returns the byte length of the file at p.
func (n *Node) Size(p string) (int64, error) {
	full, err := n.resolve(p)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(full)
	if err != nil || fi.IsDir() {
		return 0, dfserr.New(dfserr.NotFound, "path %q not found", p)
	}
	return fi.Size(), nil
}

// Read returns length bytes of the file at p starting at offset.
func (n *Node) Read(p string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, dfserr.New(dfserr.InvalidArgument, "negative offset or length")
	}
	full, err := n.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, dfserr.New(dfserr.NotFound, "path %q not found", p)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		return nil, dfserr.New(dfserr.NotFound, "path %q not found", p)
	}
	if offset+length > fi.Size() {
		return nil, dfserr.New(dfserr.InvalidArgument, "read past end of file")
	}
	buf := make([]byte, length)
	if length > 0 {
		if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
			return nil, dfserr.Wrap(dfserr.IO, err, "read "+p)
		}
	}
	metrics.StorageBytes.WithLabelValues("read").Add(float64(length))
	return buf, nil
}

// Write writes b at offset into the file at p, zero-padding any gap
// between the current end of file and offset (spec §4.4 leaves
// padding "optional and unspecified"; this rewrite picks zero-padding,
// the conventional POSIX sparse-file behavior — see DESIGN.md).
func (n *Node) Write(p string, offset int64, b []byte) error {
	if offset < 0 {
		return dfserr.New(dfserr.InvalidArgument, "negative offset")
	}
	full, err := n.resolve(p)
	if err != nil {
		return err
	}
	fi, err := os.Stat(full)
	if err != nil || fi.IsDir() {
		return dfserr.New(dfserr.NotFound, "path %q not found", p)
	}
	f, err := os.OpenFile(full, os.O_WRONLY, 0o644)
	if err != nil {
		return dfserr.Wrap(dfserr.IO, err, "open "+p)
	}
	defer f.Close()
	if offset > fi.Size() {
		if err := f.Truncate(offset); err != nil {
			return dfserr.Wrap(dfserr.IO, err, "pad "+p)
		}
	}
	if _, err := f.WriteAt(b, offset); err != nil {
		return dfserr.Wrap(dfserr.IO, err, "write "+p)
	}
	metrics.StorageBytes.WithLabelValues("write").Add(float64(len(b)))
	return nil
}

// Create creates an empty file at p, including any missing parent
// directories. It returns false if p already exists; root always
// fails (spec §4.4 "fails if path is root").
func (n *Node) Create(p string) (bool, error) {
	full, err := n.resolve(p)
	if err != nil {
		return false, err
	}
	if full == n.root {
		return false, nil
	}
	if _, err := os.Stat(full); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return false, dfserr.Wrap(dfserr.IO, err, "create parent dirs for "+p)
	}
	f, err := os.Create(full)
	if err != nil {
		return false, dfserr.Wrap(dfserr.IO, err, "create "+p)
	}
	f.Close()
	return true, nil
}

// Delete removes p, recursively if it is a directory. Root always
// returns false (spec §4.4 "fails for root").
func (n *Node) Delete(p string) (bool, error) {
	full, err := n.resolve(p)
	if err != nil {
		return false, err
	}
	if full == n.root {
		return false, nil
	}
	if err := os.RemoveAll(full); err != nil {
		return false, dfserr.Wrap(dfserr.IO, err, "delete "+p)
	}
	return true, nil
}

// Copy reads p in copyChunkSize chunks from sourceData's data
// endpoint and writes it locally, overwriting any existing file.
func (n *Node) Copy(ctx context.Context, p, sourceData string) error {
	full, err := n.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return dfserr.Wrap(dfserr.IO, err, "create parent dirs for "+p)
	}
	f, err := os.Create(full)
	if err != nil {
		return dfserr.Wrap(dfserr.IO, err, "create "+p)
	}
	defer f.Close()

	src := NewDataStub(sourceData)
	size, err := src.Size(ctx, p)
	if err != nil {
		return err
	}
	var off int64
	for off < size {
		want := int64(copyChunkSize)
		if off+want > size {
			want = size - off
		}
		chunk, err := src.Read(ctx, p, off, want)
		if err != nil {
			return err
		}
		if _, err := f.WriteAt(chunk, off); err != nil {
			return dfserr.Wrap(dfserr.IO, err, "write copy chunk for "+p)
		}
		if n.CopyLimiter != nil {
			if err := n.CopyLimiter.WaitN(ctx, len(chunk)); err != nil {
				return dfserr.Wrap(dfserr.IO, err, "copy rate limit wait for "+p)
			}
		}
		off += int64(len(chunk))
		metrics.StorageBytes.WithLabelValues("copy").Add(float64(len(chunk)))
	}
	return nil
}

// pruneEmptyAncestors walks upward from dir (a full path under root)
// removing empty directories until a non-empty one or root is hit —
// the storage startup dance's final step (spec §4.4).
func (n *Node) pruneEmptyAncestors(dir string) {
	for dir != n.root && strings.HasPrefix(dir, n.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// DataSkeleton builds the rpc.Skeleton for this node's data endpoint.
func (n *Node) DataSkeleton() *rpc.Skeleton {
	return rpc.NewSkeleton("storage.Data", DataInterface, map[string]rpc.Handler{
		"Size": func(_ context.Context, args []any) (any, error) {
			a := args[0].(sizeArgs)
			return n.Size(a.Path)
		},
		"Read": func(_ context.Context, args []any) (any, error) {
			a := args[0].(readArgs)
			return n.Read(a.Path, a.Offset, a.Length)
		},
		"Write": func(_ context.Context, args []any) (any, error) {
			a := args[0].(writeArgs)
			return nil, n.Write(a.Path, a.Offset, a.Bytes)
		},
	})
}

// CommandSkeleton builds the rpc.Skeleton for this node's command
// endpoint.
func (n *Node) CommandSkeleton() *rpc.Skeleton {
	return rpc.NewSkeleton("storage.Command", CommandInterface, map[string]rpc.Handler{
		"Create": func(_ context.Context, args []any) (any, error) {
			a := args[0].(createArgs)
			return n.Create(a.Path)
		},
		"Delete": func(_ context.Context, args []any) (any, error) {
			a := args[0].(deleteArgs)
			return n.Delete(a.Path)
		},
		"Copy": func(ctx context.Context, args []any) (any, error) {
			a := args[0].(copyArgs)
			return nil, n.Copy(ctx, a.Path, a.SourceData)
		},
	})
}
