// Package vfs projects the library and its tag tree as a virtual filesystem.
//
// Nodes are built fresh on every lookup and hold no cached state: a
// directory computes its children from the library each time it is listed,
// and a file reads its content when asked. Nothing touches the library
// while a node is being constructed.
package vfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/shelf/internal/apperr"
)

// Kind discriminates the node capabilities.
type Kind int

const (
	KindDir Kind = iota
	KindFile
	KindVirtual
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	case KindVirtual:
		return "virtual"
	case KindSymlink:
		return "symlink"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, c := range []Kind{KindDir, KindFile, KindVirtual, KindSymlink} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("vfs: unknown node kind %q", text)
}

// Node is one entry in the tree. The root has no parent and an empty name.
type Node interface {
	Name() string
	Parent() Node
	Kind() Kind
}

// Dir is implemented by KindDir and KindVirtual nodes. Child returns
// (nil, nil) when there is no child with that name.
type Dir interface {
	Node
	Children(ctx context.Context) ([]Node, error)
	Child(ctx context.Context, name string) (Node, error)
}

// File is implemented by KindFile nodes. Write fails with
// apperr.ErrReadOnlyWrite unless Writable reports true.
type File interface {
	Node
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
	Writable() bool
}

// Symlink is implemented by KindSymlink nodes. A link only names its target;
// it has to be resolved before it can be read or listed.
type Symlink interface {
	Node
	Target() string
	// Score reports the similarity score of links under similar/.
	Score() (float64, bool)
}

// IsDir reports whether n can be listed.
func IsDir(n Node) bool {
	switch n.Kind() {
	case KindDir, KindVirtual:
		return true
	case KindFile, KindSymlink:
		return false
	}
	return false
}

// Path returns the absolute path of n by walking its parents.
func Path(n Node) string {
	var parts []string
	for ; n != nil && n.Parent() != nil; n = n.Parent() {
		parts = append(parts, n.Name())
	}
	if len(parts) == 0 {
		return "/"
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

type base struct {
	name   string
	parent Node
}

func (b base) Name() string { return b.name }

func (b base) Parent() Node { return b.parent }

type listFunc func(ctx context.Context, self Node) ([]Node, error)

type lookupFunc func(ctx context.Context, self Node, name string) (Node, error)

// dirNode is a directory whose children come from list. lookup, when set,
// finds a single child without listing all of them.
type dirNode struct {
	base
	kind   Kind
	list   listFunc
	lookup lookupFunc
}

func newDir(name string, parent Node, kind Kind, list listFunc, lookup lookupFunc) *dirNode {
	return &dirNode{base: base{name: name, parent: parent}, kind: kind, list: list, lookup: lookup}
}

func (d *dirNode) Kind() Kind { return d.kind }

func (d *dirNode) Children(ctx context.Context) ([]Node, error) {
	if d.list == nil {
		return nil, nil
	}
	return d.list(ctx, d)
}

func (d *dirNode) Child(ctx context.Context, name string) (Node, error) {
	if d.lookup != nil {
		return d.lookup(ctx, d, name)
	}
	children, err := d.Children(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, nil
}

type readFunc func(ctx context.Context) (string, error)

type writeFunc func(ctx context.Context, text string) error

// fileNode is a file whose content comes from read. It is writable exactly
// when write is set.
type fileNode struct {
	base
	read  readFunc
	write writeFunc
}

func newFile(name string, parent Node, read readFunc, write writeFunc) *fileNode {
	return &fileNode{base: base{name: name, parent: parent}, read: read, write: write}
}

// staticFile is a read-only file with fixed content.
func staticFile(name string, parent Node, content string) *fileNode {
	return newFile(name, parent, func(context.Context) (string, error) { return content, nil }, nil)
}

func (f *fileNode) Kind() Kind { return KindFile }

func (f *fileNode) Read(ctx context.Context) (string, error) { return f.read(ctx) }

func (f *fileNode) Writable() bool { return f.write != nil }

func (f *fileNode) Write(ctx context.Context, text string) error {
	if f.write == nil {
		return fmt.Errorf("%s: %w", Path(f), apperr.ErrReadOnlyWrite)
	}
	return f.write(ctx, text)
}

type linkNode struct {
	base
	target string
	score  float64
	scored bool
}

func newLink(name string, parent Node, target string) *linkNode {
	return &linkNode{base: base{name: name, parent: parent}, target: target}
}

func newScoredLink(name string, parent Node, target string, score float64) *linkNode {
	return &linkNode{base: base{name: name, parent: parent}, target: target, score: score, scored: true}
}

func (l *linkNode) Kind() Kind { return KindSymlink }

func (l *linkNode) Target() string { return l.target }

func (l *linkNode) Score() (float64, bool) { return l.score, l.scored }
