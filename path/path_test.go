package path

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/distfs/distfs/internal/dfserr"
)

func mustParse(t *testing.T, s string) Path {
	t.Helper()
	p, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return p
}

func TestParseRoundTrip(t *testing.T) {
	cases := []string{"/", "/a", "/a/b", "/a/b/c", "/dir1/dir2/file.txt"}
	for _, s := range cases {
		p := mustParse(t, s)
		if got := p.String(); got != s {
			t.Errorf("Parse(%q).String() = %q, want %q", s, got, s)
		}
	}
}

func TestParseCollapsesEmptyComponents(t *testing.T) {
	p := mustParse(t, "/a//b///c/")
	if got, want := p.String(), "/a/b/c"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseRejectsRelative(t *testing.T) {
	if _, err := Parse("a/b"); !dfserr.Is(err, dfserr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestParseRejectsColon(t *testing.T) {
	if _, err := Parse("/a:b"); !dfserr.Is(err, dfserr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestJoin(t *testing.T) {
	root := Root
	a, err := root.Join("a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := a.Join("b")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), "/a/b"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if _, err := root.Join("a/b"); !dfserr.Is(err, dfserr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for embedded slash, got %v", err)
	}
}

func TestParentAndLast(t *testing.T) {
	if _, err := Root.Parent(); !dfserr.Is(err, dfserr.InvalidArgument) {
		t.Fatalf("expected error for root parent, got %v", err)
	}
	ab := mustParse(t, "/a/b")
	parent, err := ab.Parent()
	if err != nil {
		t.Fatal(err)
	}
	if !parent.Equal(mustParse(t, "/a")) {
		t.Errorf("parent = %q, want /a", parent)
	}
	last, err := ab.Last()
	if err != nil {
		t.Fatal(err)
	}
	if last != "b" {
		t.Errorf("last = %q, want b", last)
	}
}

func TestIsSubpath(t *testing.T) {
	a := mustParse(t, "/a/b/c")
	b := mustParse(t, "/a/b")
	if !IsSubpath(a, b) {
		t.Error("expected /a/b/c to be a subpath of /a/b")
	}
	if !IsSubpath(a, a) {
		t.Error("every path is a subpath of itself")
	}
	if IsSubpath(b, a) {
		t.Error("/a/b must not be a subpath of /a/b/c")
	}
}

func TestCompareTotalOrderAncestorFirst(t *testing.T) {
	paths := []Path{
		mustParse(t, "/b"),
		mustParse(t, "/a/z"),
		mustParse(t, "/a"),
		Root,
		mustParse(t, "/a/a"),
	}
	sort.Slice(paths, func(i, j int) bool { return Compare(paths[i], paths[j]) < 0 })
	got := make([]string, len(paths))
	for i, p := range paths {
		got[i] = p.String()
	}
	want := []string{"/", "/a", "/a/a", "/a/z", "/b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestChainRootFirst(t *testing.T) {
	p := mustParse(t, "/a/b/c")
	chain := p.Chain()
	want := []string{"/", "/a", "/a/b", "/a/b/c"}
	got := make([]string, len(chain))
	for i, c := range chain {
		got[i] = c.String()
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareStrictTotalOrder(t *testing.T) {
	a := mustParse(t, "/a")
	b := mustParse(t, "/b")
	if Compare(a, a) != 0 {
		t.Error("Compare(a, a) must be 0")
	}
	if Compare(a, b) >= 0 || Compare(b, a) <= 0 {
		t.Error("Compare must be antisymmetric")
	}
}
