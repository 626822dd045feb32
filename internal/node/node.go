// Package node synthesizes the virtual directory tree over one items
// snapshot. Every directory is a filter over the tagged (or untagged) items
// and exposes only the child dimensions that narrow its item set.
package node

import (
	"errors"
	"io/fs"
	"time"
)

var (
	ErrIsDir    = errors.New("is a directory")
	ErrNotDir   = errors.New("not a directory")
	ErrNotLink  = errors.New("not a symlink")
	ErrReadOnly = errors.New("read-only filesystem")
)

// Node is one synthesized directory, file or symlink. Nodes are immutable
// once handed out; their derived state is memoized per instance.
type Node interface {
	Name() string
	Attr() Attr
	// Entries lists children in presentation order. Leaves return nil.
	Entries() []Node
	Lookup(name string) (Node, bool)
	Readlink() (string, error)
	Open(flags int) error
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	// Symlink creates name -> target inside this node.
	Symlink(target, name string) error
}

// Attr mirrors the stat fields the bridges fill in.
type Attr struct {
	Mode  fs.FileMode
	Nlink uint32
	Size  int64
	Uid   uint32
	Gid   uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// IsDir reports whether the attributes describe a directory.
func (a Attr) IsDir() bool { return a.Mode.IsDir() }

// leaf supplies the childless behavior shared by links and files.
type leaf struct {
	name string
}

func (l leaf) Name() string                     { return l.name }
func (leaf) Entries() []Node                    { return nil }
func (leaf) Lookup(string) (Node, bool)         { return nil, false }
func (leaf) Readlink() (string, error)          { return "", ErrNotLink }
func (leaf) WriteAt([]byte, int64) (int, error) { return 0, ErrReadOnly }
func (leaf) Symlink(string, string) error       { return ErrNotDir }
