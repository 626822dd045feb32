package node

import (
	"io/fs"

	"github.com/agentic-research/tagfs/internal/items"
)

// ItemLink is a symlink to an item directory.
type ItemLink struct {
	leaf
	tree *Tree
	Item *items.Item
}

func (l *ItemLink) Attr() Attr {
	a := l.tree.attr(fs.ModeSymlink | 0o444)
	a.Nlink = 1
	a.Size = int64(len(l.Item.Dir))
	return a
}

// Readlink returns the absolute item directory.
func (l *ItemLink) Readlink() (string, error) { return l.Item.Dir, nil }

// Open is a no-op; the kernel resolves the link before opening.
func (l *ItemLink) Open(int) error { return nil }

func (l *ItemLink) ReadAt([]byte, int64) (int, error) { return 0, ErrIsDir }
