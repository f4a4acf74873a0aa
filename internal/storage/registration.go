package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/distfs/distfs/internal/registration"
)

// LocalFiles walks the node's root and returns every regular file's
// path relative to it, '/'-prefixed — the file set a storage node
// announces at registration (spec §4.4 "register with the naming
// server").
func (n *Node) LocalFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(n.root, func(full string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(n.root, full)
		if err != nil {
			return err
		}
		files = append(files, "/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Register performs the startup registration dance of spec §4.4:
// register with the naming coordinator at registerAddr, delete every
// path it reports as a duplicate, then prune directories left empty
// by those deletions.
func (n *Node) Register(ctx context.Context, registerAddr, dataEndpoint, commandEndpoint string) ([]string, error) {
	files, err := n.LocalFiles()
	if err != nil {
		return nil, err
	}
	stub := registration.NewStub(registerAddr)
	dups, err := stub.Register(ctx, dataEndpoint, commandEndpoint, files)
	if err != nil {
		return nil, err
	}
	for _, p := range dups {
		full, err := n.resolve(p)
		if err != nil {
			continue
		}
		if err := os.Remove(full); err != nil {
			continue
		}
		n.pruneEmptyAncestors(filepath.Dir(full))
	}
	return dups, nil
}
