// Package path implements the immutable path type shared by every
// distfs component: the naming coordinator's directory tree, the path
// lock table, and the RPC surface both expose.
//
// A Path is a sequence of non-empty components free of '/' and ':'.
// The root path is the empty sequence. Path holds a slice, so it is
// not comparable with ==; use Equal.
package path

import (
	"strings"

	"github.com/distfs/distfs/internal/dfserr"
)

// Path is an ordered, immutable sequence of path components.
type Path struct {
	// joined is the canonical '/'-prefixed string form, cached so
	// String and the ordering comparator never re-render it.
	joined string
	parts  []string
}

// Root is the empty path every tree is rooted at.
var Root = Path{joined: "/"}

// Parse builds a Path from a '/'-delimited string. The string must
// begin with '/'; consecutive and trailing slashes collapse to a
// single separator (empty components are silently dropped). A
// component containing ':' fails with dfserr.InvalidArgument.
func Parse(s string) (Path, error) {
	if !strings.HasPrefix(s, "/") {
		return Path{}, dfserr.New(dfserr.InvalidArgument, "path %q must be absolute", s)
	}
	raw := strings.Split(s, "/")
	parts := make([]string, 0, len(raw))
	for _, c := range raw {
		if c == "" {
			continue
		}
		if err := validateComponent(c); err != nil {
			return Path{}, err
		}
		parts = append(parts, c)
	}
	return newPath(parts), nil
}

func validateComponent(c string) error {
	if c == "" {
		return dfserr.New(dfserr.InvalidArgument, "path component must not be empty")
	}
	if strings.ContainsAny(c, "/:") {
		return dfserr.New(dfserr.InvalidArgument, "path component %q must not contain '/' or ':'", c)
	}
	return nil
}

func newPath(parts []string) Path {
	if len(parts) == 0 {
		return Root
	}
	return Path{joined: "/" + strings.Join(parts, "/"), parts: parts}
}

// Join returns the path obtained by appending a single component to p.
func (p Path) Join(component string) (Path, error) {
	if err := validateComponent(component); err != nil {
		return Path{}, err
	}
	parts := make([]string, len(p.parts)+1)
	copy(parts, p.parts)
	parts[len(p.parts)] = component
	return newPath(parts), nil
}

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool { return len(p.parts) == 0 }

// Parent returns the path's parent. It fails with dfserr.InvalidArgument
// for the root path, which has none.
func (p Path) Parent() (Path, error) {
	if p.IsRoot() {
		return Path{}, dfserr.New(dfserr.InvalidArgument, "root path has no parent")
	}
	return newPath(p.parts[:len(p.parts)-1]), nil
}

// Last returns the path's final component. It fails with
// dfserr.InvalidArgument for the root path.
func (p Path) Last() (string, error) {
	if p.IsRoot() {
		return "", dfserr.New(dfserr.InvalidArgument, "root path has no last component")
	}
	return p.parts[len(p.parts)-1], nil
}

// Components returns a defensive copy of p's components in root-to-leaf
// order.
func (p Path) Components() []string {
	out := make([]string, len(p.parts))
	copy(out, p.parts)
	return out
}

// Depth is the number of components in p; Root has depth 0.
func (p Path) Depth() int { return len(p.parts) }

// Chain returns the lock chain of p: p itself and every strict
// ancestor, ordered root-first (§4.2 "sort the chain by the global
// path order").
func (p Path) Chain() []Path {
	chain := make([]Path, 0, len(p.parts)+1)
	for i := 0; i <= len(p.parts); i++ {
		chain = append(chain, newPath(p.parts[:i]))
	}
	return chain
}

// Equal reports whether a and b name the same path.
func (a Path) Equal(b Path) bool { return a.joined == b.joined }

// IsSubpath reports whether b is a prefix of a — i.e., a is a subpath
// of b. Every path is a subpath of itself.
func IsSubpath(a, b Path) bool {
	if len(b.parts) > len(a.parts) {
		return false
	}
	for i, c := range b.parts {
		if a.parts[i] != c {
			return false
		}
	}
	return true
}

// Compare defines the total order required by the lock protocol: any
// ancestor strictly precedes its descendants, and siblings order
// lexicographically component by component. Returns <0, 0, or >0.
func Compare(a, b Path) int {
	n := len(a.parts)
	if len(b.parts) < n {
		n = len(b.parts)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(a.parts[i], b.parts[i]); c != 0 {
			return c
		}
	}
	return len(a.parts) - len(b.parts)
}

// String renders the canonical '/'-delimited form. Parse(p.String())
// round-trips to an equal Path for every valid Path.
func (p Path) String() string { return p.joined }
