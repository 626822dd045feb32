package items

import (
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/tagfs/internal/filter"
	"github.com/agentic-research/tagfs/internal/memo"
	"github.com/agentic-research/tagfs/internal/tags"
)

// Access is one immutable snapshot of the items directory. Items are
// numbered by their position in name order and item sets are bitmaps of
// those ordinals, column-indexed per tag, value and context.
type Access struct {
	Root        string
	TagFileName string
	// ScanTime is when the scan producing this snapshot completed.
	ScanTime time.Time

	items  []*Item
	byName map[string]uint32

	tagged   *roaring.Bitmap
	untagged *roaring.Bitmap

	tagCols     map[tags.Tag]*roaring.Bitmap
	valueCols   map[string]*roaring.Bitmap
	contextCols map[string]*roaring.Bitmap

	allTags     memo.Value[[]tags.Tag]
	allContexts memo.Value[[]string]
	allValues   memo.Value[[]string]
}

// NewAccess indexes items into a snapshot. The slice is taken over.
func NewAccess(root, tagFileName string, items []*Item, scanTime time.Time) *Access {
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	a := &Access{
		Root:        root,
		TagFileName: tagFileName,
		ScanTime:    scanTime,
		items:       items,
		byName:      make(map[string]uint32, len(items)),
		tagged:      roaring.New(),
		untagged:    roaring.New(),
		tagCols:     make(map[tags.Tag]*roaring.Bitmap),
		valueCols:   make(map[string]*roaring.Bitmap),
		contextCols: make(map[string]*roaring.Bitmap),
	}
	for i, it := range items {
		id := uint32(i)
		a.byName[it.Name] = id
		if !it.Tagged() {
			a.untagged.Add(id)
			continue
		}
		a.tagged.Add(id)
		for t := range it.Tags {
			column(a.tagCols, t).Add(id)
			column(a.valueCols, t.Value).Add(id)
			if t.HasContext() {
				column(a.contextCols, t.Context).Add(id)
			}
		}
	}
	return a
}

func column[K comparable](cols map[K]*roaring.Bitmap, k K) *roaring.Bitmap {
	bm, ok := cols[k]
	if !ok {
		bm = roaring.New()
		cols[k] = bm
	}
	return bm
}

// Len returns the number of items in the snapshot.
func (a *Access) Len() int { return len(a.items) }

// Item returns the item with the given ordinal.
func (a *Access) Item(id uint32) *Item { return a.items[id] }

// Lookup finds an item by directory name.
func (a *Access) Lookup(name string) (*Item, bool) {
	id, ok := a.byName[name]
	if !ok {
		return nil, false
	}
	return a.items[id], true
}

// Items resolves a bitmap into items in name order.
func (a *Access) Items(set *roaring.Bitmap) []*Item {
	out := make([]*Item, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		id := it.Next()
		if int(id) < len(a.items) {
			out = append(out, a.items[id])
		}
	}
	return out
}

// All returns every item in name order.
func (a *Access) All() []*Item {
	out := make([]*Item, len(a.items))
	copy(out, a.items)
	return out
}

// TaggedItems returns the set of items that carry a tag file. The caller
// must not modify it.
func (a *Access) TaggedItems() *roaring.Bitmap { return a.tagged }

// UntaggedItems returns the complement of TaggedItems. The caller must not
// modify it.
func (a *Access) UntaggedItems() *roaring.Bitmap { return a.untagged }

// AllTags returns every tag of every tagged item, sorted.
func (a *Access) AllTags() []tags.Tag {
	return a.allTags.Get(func() []tags.Tag {
		set := make(tags.Set, len(a.tagCols))
		for t := range a.tagCols {
			set.Add(t)
		}
		return set.Sorted()
	})
}

// AllContexts returns every context in use, sorted.
func (a *Access) AllContexts() []string {
	return a.allContexts.Get(func() []string { return sortedKeys(a.contextCols) })
}

// AllValues returns every tag value in use regardless of context, sorted.
func (a *Access) AllValues() []string {
	return a.allValues.Get(func() []string { return sortedKeys(a.valueCols) })
}

// ContextTags returns the tags living in context, sorted by value.
func (a *Access) ContextTags(context string) []tags.Tag {
	var out []tags.Tag
	for _, t := range a.AllTags() {
		if t.Context == context {
			out = append(out, t)
		}
	}
	return out
}

// FilterItems applies f to the tagged items. The snapshot is not modified.
func (a *Access) FilterItems(f filter.Filter) *roaring.Bitmap {
	return f.Apply(a, a.tagged)
}

// Contexts returns the contexts used by any item of set, sorted.
func (a *Access) Contexts(set *roaring.Bitmap) []string {
	var out []string
	for _, c := range a.AllContexts() {
		if a.contextCols[c].Intersects(set) {
			out = append(out, c)
		}
	}
	return out
}

// Values returns the distinct values used by any item of set, sorted.
func (a *Access) Values(set *roaring.Bitmap) []string {
	var out []string
	for _, v := range a.AllValues() {
		if a.valueCols[v].Intersects(set) {
			out = append(out, v)
		}
	}
	return out
}

// ContextValues returns the values tagged under context by any item of set,
// sorted.
func (a *Access) ContextValues(context string, set *roaring.Bitmap) []string {
	var out []string
	for _, t := range a.ContextTags(context) {
		if a.tagCols[t].Intersects(set) {
			out = append(out, t.Value)
		}
	}
	return out
}

// TagItems implements filter.Index.
func (a *Access) TagItems(t tags.Tag) *roaring.Bitmap { return a.tagCols[t] }

// ValueItems implements filter.Index.
func (a *Access) ValueItems(value string) *roaring.Bitmap { return a.valueCols[value] }

// ContextItems implements filter.Index.
func (a *Access) ContextItems(context string) *roaring.Bitmap { return a.contextCols[context] }

var _ filter.Index = (*Access)(nil)

func sortedKeys[K ~string](m map[K]*roaring.Bitmap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
