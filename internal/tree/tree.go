// Package tree implements the naming coordinator's in-memory directory
// tree (spec §3 "Tree node", §9 tagged-variant design note).
//
// Node is realized as an interface with two concrete types, Dir and
// File, exactly as spec §9 prescribes: "implement as tagged variants
// Node = Directory{children, name} | File{name, replicas}... no weak
// references or cycles are required." The tree owns every node
// exclusively; storage identities are cheap comparable values
// (storageid.ID), never back-references into the tree.
package tree

import (
	"sync"

	"github.com/distfs/distfs/internal/dfserr"
	"github.com/distfs/distfs/internal/storageid"
	"github.com/distfs/distfs/path"
)

// Node is either a *Dir or a *File.
type Node interface {
	isNode()
	Name() string
}

// Dir is a directory node: a name and a child-name-to-node mapping.
// Children are guarded by the owning Tree's mutex, not by Dir itself,
// since mutation is always driven through Tree methods under the
// path-lock protocol (spec §5 "Shared resources").
type Dir struct {
	name     string
	children map[string]Node
}

func (*Dir) isNode()        {}
func (d *Dir) Name() string { return d.name }

// Children returns a defensive snapshot of child names, suitable for
// list's "acquire shared lock, snapshot, release" contract (spec
// §4.3).
func (d *Dir) Children() []string {
	out := make([]string, 0, len(d.children))
	for name := range d.children {
		out = append(out, name)
	}
	return out
}

// File is a file node: a name and a non-empty set of storage
// identities hosting it (spec §3 invariant: "every file node has at
// least one storage-node entry at all times that the file node is
// visible to clients").
type File struct {
	name     string
	replicas map[storageid.ID]struct{}
}

func (*File) isNode()        {}
func (f *File) Name() string { return f.name }

// Replicas returns a defensive snapshot of f's current replica set.
func (f *File) Replicas() []storageid.ID {
	out := make([]storageid.ID, 0, len(f.replicas))
	for id := range f.replicas {
		out = append(out, id)
	}
	return out
}

// Tree is the naming coordinator's single in-memory directory tree.
// All mutation and resolution go through Tree's methods; callers are
// expected to already hold the appropriate path-lock chain (spec
// §4.2) before calling a mutator — Tree itself only guarantees
// internal consistency of its maps, not the higher-level lock
// discipline, which is internal/coordinator's responsibility.
type Tree struct {
	mu   sync.Mutex
	root *Dir
}

// New returns an empty tree containing only the root directory.
func New() *Tree {
	return &Tree{root: &Dir{name: "", children: map[string]Node{}}}
}

// Resolve walks p from the root and returns the node at p, or a
// dfserr.NotFound error if any component along the way is missing or
// not a directory.
func (t *Tree) Resolve(p path.Path) (Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolveLocked(p)
}

func (t *Tree) resolveLocked(p path.Path) (Node, error) {
	if p.IsRoot() {
		return t.root, nil
	}
	cur := t.root
	comps := p.Components()
	for i, c := range comps {
		child, ok := cur.children[c]
		if !ok {
			return nil, dfserr.New(dfserr.NotFound, "path %q not found", p)
		}
		if i == len(comps)-1 {
			return child, nil
		}
		dir, ok := child.(*Dir)
		if !ok {
			return nil, dfserr.New(dfserr.NotFound, "path %q not found", p)
		}
		cur = dir
	}
	return t.root, nil
}

// ResolveDir resolves p and requires it to name a directory.
func (t *Tree) ResolveDir(p path.Path) (*Dir, error) {
	n, err := t.Resolve(p)
	if err != nil {
		return nil, err
	}
	d, ok := n.(*Dir)
	if !ok {
		return nil, dfserr.New(dfserr.NotFound, "path %q is not a directory", p)
	}
	return d, nil
}

// ResolveFile resolves p and requires it to name a file.
func (t *Tree) ResolveFile(p path.Path) (*File, error) {
	n, err := t.Resolve(p)
	if err != nil {
		return nil, err
	}
	f, ok := n.(*File)
	if !ok {
		return nil, dfserr.New(dfserr.NotFound, "path %q is not a file", p)
	}
	return f, nil
}

// parentDirLocked resolves p's parent and requires it to be a
// directory; used by every mutator below. Callers must hold t.mu.
func (t *Tree) parentDirLocked(p path.Path) (*Dir, error) {
	parent, err := p.Parent()
	if err != nil {
		return nil, dfserr.New(dfserr.InvalidArgument, "root has no parent")
	}
	n, err := t.resolveLocked(parent)
	if err != nil {
		return nil, dfserr.New(dfserr.NotFound, "parent of %q not found", p)
	}
	d, ok := n.(*Dir)
	if !ok {
		return nil, dfserr.New(dfserr.NotFound, "parent of %q is not a directory", p)
	}
	return d, nil
}

// CreateFile inserts a file node at p hosted initially by id. It
// returns false, nil if anything (file or directory) already exists
// at p, per spec §4.3's createFile contract.
func (t *Tree) CreateFile(p path.Path, id storageid.ID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.IsRoot() {
		return false, nil
	}
	parent, err := t.parentDirLocked(p)
	if err != nil {
		return false, err
	}
	name, _ := p.Last()
	if _, exists := parent.children[name]; exists {
		return false, nil
	}
	parent.children[name] = &File{name: name, replicas: map[storageid.ID]struct{}{id: {}}}
	return true, nil
}

// CreateDirectory inserts a directory node at p. It returns false,
// nil if anything already exists at p.
func (t *Tree) CreateDirectory(p path.Path) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.IsRoot() {
		return false, nil
	}
	parent, err := t.parentDirLocked(p)
	if err != nil {
		return false, err
	}
	name, _ := p.Last()
	if _, exists := parent.children[name]; exists {
		return false, nil
	}
	parent.children[name] = &Dir{name: name, children: map[string]Node{}}
	return true, nil
}

// EnsureDirectories creates every missing intermediate directory along
// p (p itself excluded). Registration does not call it: RegisterFile
// creates its own intermediate directories.
func (t *Tree) EnsureDirectories(p path.Path) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.root
	comps := p.Components()
	if len(comps) == 0 {
		return nil
	}
	for _, c := range comps[:len(comps)-1] {
		child, ok := cur.children[c]
		if !ok {
			d := &Dir{name: c, children: map[string]Node{}}
			cur.children[c] = d
			cur = d
			continue
		}
		d, ok := child.(*Dir)
		if !ok {
			return dfserr.New(dfserr.AlreadyExists, "path component %q already a file", c)
		}
		cur = d
	}
	return nil
}

// RegisterFile inserts a file node at p hosted by id, creating
// intermediate directories as needed. It reports whether p already
// named a known file (the caller — internal/coordinator's register —
// adds such paths to the duplicate list instead of creating a node).
func (t *Tree) RegisterFile(p path.Path, id storageid.ID) (duplicate bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.IsRoot() {
		return false, dfserr.New(dfserr.InvalidArgument, "cannot register root as a file")
	}
	if n, rerr := t.resolveLocked(p); rerr == nil {
		if _, ok := n.(*File); ok {
			return true, nil
		}
		return false, dfserr.New(dfserr.AlreadyExists, "path %q already a directory", p)
	}
	parent, err := t.ensureParentLocked(p)
	if err != nil {
		return false, err
	}
	name, _ := p.Last()
	parent.children[name] = &File{name: name, replicas: map[storageid.ID]struct{}{id: {}}}
	return false, nil
}

func (t *Tree) ensureParentLocked(p path.Path) (*Dir, error) {
	cur := t.root
	comps := p.Components()
	for _, c := range comps[:len(comps)-1] {
		child, ok := cur.children[c]
		if !ok {
			d := &Dir{name: c, children: map[string]Node{}}
			cur.children[c] = d
			cur = d
			continue
		}
		d, ok := child.(*Dir)
		if !ok {
			return nil, dfserr.New(dfserr.AlreadyExists, "path component %q already a file", c)
		}
		cur = d
	}
	return cur, nil
}

// Delete removes the node at p from its parent and returns it (for
// the caller to inspect file replicas before mutation, or cascade
// over a directory's children). Deleting root fails with
// InvalidArgument; spec §4.3 maps that to createFile/delete's "root
// delete returns false" at the coordinator boundary.
func (t *Tree) Delete(p path.Path) (Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.IsRoot() {
		return nil, dfserr.New(dfserr.InvalidArgument, "cannot delete root")
	}
	parent, err := t.parentDirLocked(p)
	if err != nil {
		return nil, err
	}
	name, _ := p.Last()
	n, ok := parent.children[name]
	if !ok {
		return nil, dfserr.New(dfserr.NotFound, "path %q not found", p)
	}
	delete(parent.children, name)
	return n, nil
}

// AddReplica adds id to f's replica set.
func (t *Tree) AddReplica(f *File, id storageid.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f.replicas[id] = struct{}{}
}

// RemoveReplica removes id from f's replica set.
func (t *Tree) RemoveReplica(f *File, id storageid.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(f.replicas, id)
}

// Walk calls fn for n and for every node beneath it, directories and
// files alike, passing each node's component path relative to n.
func Walk(n Node, fn func(p []string, n Node)) {
	walk(n, nil, fn)
}

func walk(n Node, prefix []string, fn func(p []string, n Node)) {
	fn(prefix, n)
	d, ok := n.(*Dir)
	if !ok {
		return
	}
	for name, child := range d.children {
		walk(child, append(append([]string{}, prefix...), name), fn)
	}
}
