package node

import (
	"fmt"
	"io/fs"
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/tagfs/internal/filter"
	"github.com/agentic-research/tagfs/internal/items"
	"github.com/agentic-research/tagfs/internal/memo"
	"github.com/agentic-research/tagfs/internal/tags"
)

type dirKind int

const (
	rootDir dirKind = iota
	// filterDir narrows its parent by one value or context-tag.
	filterDir
	// unsetDir narrows its parent to items lacking a context.
	unsetDir
	// contextDir lists the values of one context.
	contextDir
	// anyContextDir lists values regardless of context.
	anyContextDir
	untaggedDir
	reviewDir
	exportDir
)

func (k dirKind) String() string {
	switch k {
	case rootDir:
		return "root"
	case filterDir:
		return "filter"
	case unsetDir:
		return "unset"
	case contextDir:
		return "context"
	case anyContextDir:
		return "any-context"
	case untaggedDir:
		return "untagged"
	case reviewDir:
		return "review"
	case exportDir:
		return "export"
	}
	return "dir(" + strconv.Itoa(int(k)) + ")"
}

// Directory is a synthesized directory. Its item set is filter applied to
// universe; what children it exposes depends on its kind.
type Directory struct {
	tree     *Tree
	kind     dirKind
	name     string
	filter   filter.Filter
	universe *roaring.Bitmap
	// context is set for context directories and their .unset child.
	context string

	items    memo.Value[*roaring.Bitmap]
	children memo.Value[*children]
}

func (d *Directory) Name() string { return d.name }

func (d *Directory) String() string {
	return fmt.Sprintf("%s %q [%s]", d.kind, d.name, d.filter)
}

// Filter returns the composed filter from the root down to d.
func (d *Directory) Filter() filter.Filter { return d.filter }

func (d *Directory) Attr() Attr { return d.tree.attr(fs.ModeDir | 0o555) }

// Items returns the directory's item set. The caller must not modify it.
func (d *Directory) Items() *roaring.Bitmap {
	return d.items.Get(func() *roaring.Bitmap {
		return d.filter.Apply(d.tree.access, d.universe)
	})
}

// ItemList resolves Items in name order.
func (d *Directory) ItemList() []*items.Item {
	return d.tree.access.Items(d.Items())
}

func (d *Directory) Entries() []Node { return d.index().order }

func (d *Directory) Lookup(name string) (Node, bool) {
	n, ok := d.index().byName[name]
	return n, ok
}

func (d *Directory) Readlink() (string, error)          { return "", ErrNotLink }
func (d *Directory) Open(int) error                     { return ErrIsDir }
func (d *Directory) ReadAt([]byte, int64) (int, error)  { return 0, ErrIsDir }
func (d *Directory) WriteAt([]byte, int64) (int, error) { return 0, ErrIsDir }
func (d *Directory) Symlink(target, name string) error  { return ErrReadOnly }

func (d *Directory) index() *children {
	return d.children.Get(func() *children {
		return d.tree.assemble(d.name, d.groups())
	})
}

// required reports whether d discriminates within universe: it must neither
// be empty nor reproduce universe. A context directory is required when
// any of its values is.
func (d *Directory) required(universe *roaring.Bitmap) bool {
	if d.kind == contextDir {
		for _, n := range d.Entries() {
			if c, ok := n.(*Directory); ok && c.kind == filterDir {
				return true
			}
		}
		return false
	}
	n := d.Items().GetCardinality()
	return n != 0 && n != universe.GetCardinality()
}

// addsValue reports whether an auxiliary directory offers any narrowing of
// the parent's items.
func (d *Directory) addsValue() bool {
	for _, n := range d.Entries() {
		if _, ok := n.(*Directory); ok {
			return true
		}
	}
	return false
}

func (d *Directory) groups() []group {
	t := d.tree
	switch d.kind {
	case rootDir:
		gs := []group{
			{"untagged items", []Node{t.dir(untaggedDir, UntaggedName, filter.None{}, t.access.UntaggedItems())}},
			{"review items", []Node{t.dir(reviewDir, ReviewName, filter.None{}, t.access.TaggedItems())}},
			{"export", []Node{t.view(d, exportDir, ExportName)}},
			{"any context", []Node{t.view(d, anyContextDir, AnyContextName)}},
		}
		if t.opts.EnableValueFilters {
			gs = append(gs, group{"values", d.valueDirs()})
		}
		gs = append(gs, group{"contexts", d.contextDirs()})
		if t.opts.EnableRootItemLinks {
			gs = append(gs, group{"items", d.links()})
		}
		return gs

	case filterDir, unsetDir:
		gs := []group{
			{"export", []Node{t.view(d, exportDir, ExportName)}},
			{"items", d.links()},
		}
		if d.kind == filterDir {
			if anyCtx := t.view(d, anyContextDir, AnyContextName); anyCtx.addsValue() {
				gs = append(gs, group{"any context", []Node{anyCtx}})
			}
			gs = append(gs, group{"contexts", d.contextDirs()})
			if t.opts.EnableValueFilters {
				gs = append(gs, group{"values", d.valueDirs()})
			}
		}
		return gs

	case contextDir:
		var gs []group
		unset := t.child(d, unsetDir, UnsetName, filter.ContextPresence{Context: d.context, Negate: true})
		unset.context = d.context
		if !unset.Items().IsEmpty() {
			gs = append(gs, group{"unset", []Node{unset}})
		}
		var values []Node
		for _, v := range t.access.ContextValues(d.context, d.Items()) {
			tag := tags.Tag{Context: d.context, Value: v}
			values = d.keepRequired(values, t.child(d, filterDir, v, filter.Tag{Tag: tag}))
		}
		return append(gs, group{"context values", values})

	case anyContextDir:
		return []group{{"values", d.valueDirs()}}

	case untaggedDir:
		return []group{{"items", d.links()}}

	case reviewDir:
		return []group{{"review items", d.reviewLinks()}}

	case exportDir:
		return []group{{"export", []Node{
			t.exportFile(d, CSVExportName, formatCSV),
			t.exportFile(d, JSONExportName, formatJSON),
		}}}
	}
	return nil
}

func (d *Directory) keepRequired(out []Node, c *Directory) []Node {
	if c.required(d.Items()) {
		return append(out, c)
	}
	return out
}

func (d *Directory) valueDirs() []Node {
	var out []Node
	for _, v := range d.tree.access.Values(d.Items()) {
		out = d.keepRequired(out, d.tree.child(d, filterDir, v, filter.Value{Value: v}))
	}
	return out
}

func (d *Directory) contextDirs() []Node {
	var out []Node
	for _, c := range d.tree.access.Contexts(d.Items()) {
		cd := d.tree.view(d, contextDir, c)
		cd.context = c
		out = d.keepRequired(out, cd)
	}
	return out
}

func (d *Directory) links() []Node {
	list := d.ItemList()
	out := make([]Node, 0, len(list))
	for _, it := range list {
		out = append(out, d.tree.link(it, it.Name))
	}
	return out
}

// reviewLinks orders tagged items by tag file modification, oldest first,
// and prefixes each name with its zero-padded position.
func (d *Directory) reviewLinks() []Node {
	list := d.ItemList()
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].TagsModified.Before(list[j].TagsModified)
	})
	width := len(strconv.Itoa(len(list)))
	out := make([]Node, 0, len(list))
	for i, it := range list {
		out = append(out, d.tree.link(it, fmt.Sprintf("%0*d %s", width, i, it.Name)))
	}
	return out
}
