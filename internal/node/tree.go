package node

import (
	"io/fs"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/agentic-research/tagfs/api"
	"github.com/agentic-research/tagfs/internal/filter"
	"github.com/agentic-research/tagfs/internal/items"
	"github.com/agentic-research/tagfs/internal/memo"
)

// Reserved directory names.
const (
	UntaggedName   = ".untagged"
	ReviewName     = ".review"
	ExportName     = ".export"
	AnyContextName = ".any_context"
	UnsetName      = ".unset"
)

// Tree builds every node kind for one snapshot. It is the only place
// sibling kinds are constructed, so directories never reference each other
// directly.
type Tree struct {
	access *items.Access
	opts   api.Options
	log    *zap.Logger
	uid    uint32
	gid    uint32

	root memo.Value[*Directory]
}

// NewTree returns the tree factory for a snapshot.
func NewTree(a *items.Access, opts api.Options, log *zap.Logger) *Tree {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tree{
		access: a,
		opts:   opts,
		log:    log,
		uid:    uint32(unix.Getuid()),
		gid:    uint32(unix.Getgid()),
	}
}

// Access returns the snapshot the tree is built over.
func (t *Tree) Access() *items.Access { return t.access }

// Root returns the root directory. Its item set is all tagged items.
func (t *Tree) Root() *Directory {
	return t.root.Get(func() *Directory {
		return t.dir(rootDir, "", filter.None{}, t.access.TaggedItems())
	})
}

func (t *Tree) dir(kind dirKind, name string, f filter.Filter, universe *roaring.Bitmap) *Directory {
	return &Directory{tree: t, kind: kind, name: name, filter: f, universe: universe}
}

// child derives a directory that narrows parent by f.
func (t *Tree) child(parent *Directory, kind dirKind, name string, f filter.Filter) *Directory {
	return t.dir(kind, name, filter.Compose(parent.filter, f), parent.universe)
}

// view derives a directory showing the parent's items unchanged.
func (t *Tree) view(parent *Directory, kind dirKind, name string) *Directory {
	d := t.dir(kind, name, parent.filter, parent.universe)
	d.context = parent.context
	return d
}

func (t *Tree) link(it *items.Item, name string) *ItemLink {
	return &ItemLink{leaf: leaf{name: name}, tree: t, Item: it}
}

func (t *Tree) attr(mode fs.FileMode) Attr {
	ts := t.access.ScanTime
	return Attr{
		Mode:  mode,
		Nlink: 2,
		Uid:   t.uid,
		Gid:   t.gid,
		Atime: ts,
		Mtime: ts,
		Ctime: ts,
	}
}

// group is one ordered source of children; earlier groups shadow later
// ones on name clashes.
type group struct {
	label string
	nodes []Node
}

type children struct {
	order  []Node
	byName map[string]Node
}

func (t *Tree) assemble(owner string, groups []group) *children {
	c := &children{byName: make(map[string]Node)}
	for _, g := range groups {
		for _, n := range g.nodes {
			name := n.Name()
			if !ValidName(name) {
				t.log.Debug("skipping entry with unusable name",
					zap.String("dir", owner), zap.String("group", g.label), zap.String("name", name))
				continue
			}
			if _, taken := c.byName[name]; taken {
				t.log.Debug("entry shadowed",
					zap.String("dir", owner), zap.String("group", g.label), zap.String("name", name))
				continue
			}
			c.byName[name] = n
			c.order = append(c.order, n)
		}
	}
	return c
}

// ValidName reports whether name can be a single path segment.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\x00")
}
