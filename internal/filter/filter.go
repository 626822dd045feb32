// Package filter implements the composable item-set predicates the node
// tree is built from. Item sets are roaring bitmaps of item ordinals within
// one snapshot; the snapshot itself provides the per-tag columns through
// Index.
package filter

import (
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/tagfs/internal/tags"
)

// Index serves the item columns filters intersect with. Returned bitmaps are
// owned by the index and must not be modified; nil means "no items".
type Index interface {
	TagItems(t tags.Tag) *roaring.Bitmap
	ValueItems(value string) *roaring.Bitmap
	ContextItems(context string) *roaring.Bitmap
}

// Filter narrows an item set. Apply never modifies in and never returns an
// item that is not in in.
type Filter interface {
	Apply(idx Index, in *roaring.Bitmap) *roaring.Bitmap
	String() string
}

// None is the identity filter used at the tree root.
type None struct{}

func (None) Apply(_ Index, in *roaring.Bitmap) *roaring.Bitmap { return in.Clone() }
func (None) String() string                                    { return "*" }

// Tag keeps items carrying exactly Tag (context and value).
type Tag struct {
	Tag tags.Tag
}

func (f Tag) Apply(idx Index, in *roaring.Bitmap) *roaring.Bitmap {
	return intersect(in, idx.TagItems(f.Tag))
}

func (f Tag) String() string { return "tag(" + f.Tag.String() + ")" }

// Value keeps items carrying Value under any context, or none.
type Value struct {
	Value string
}

func (f Value) Apply(idx Index, in *roaring.Bitmap) *roaring.Bitmap {
	return intersect(in, idx.ValueItems(f.Value))
}

func (f Value) String() string { return "value(" + f.Value + ")" }

// ContextPresence keeps items having at least one tag in Context, or, when
// Negate is set, items having none.
type ContextPresence struct {
	Context string
	Negate  bool
}

func (f ContextPresence) Apply(idx Index, in *roaring.Bitmap) *roaring.Bitmap {
	col := idx.ContextItems(f.Context)
	if !f.Negate {
		return intersect(in, col)
	}
	if col == nil {
		return in.Clone()
	}
	return roaring.AndNot(in, col)
}

func (f ContextPresence) String() string {
	if f.Negate {
		return "!context(" + f.Context + ")"
	}
	return "context(" + f.Context + ")"
}

// And applies every sub filter in turn. Intersection is commutative so the
// order only affects cost.
type And []Filter

func (f And) Apply(idx Index, in *roaring.Bitmap) *roaring.Bitmap {
	out := in.Clone()
	for _, sub := range f {
		if out.IsEmpty() {
			break
		}
		out = sub.Apply(idx, out)
	}
	return out
}

func (f And) String() string {
	parts := make([]string, len(f))
	for i, sub := range f {
		parts[i] = sub.String()
	}
	return strings.Join(parts, " & ")
}

// Compose returns parent narrowed by child, flattening nested Ands and
// dropping identity filters.
func Compose(parent, child Filter) Filter {
	var out And
	for _, f := range []Filter{parent, child} {
		switch v := f.(type) {
		case nil, None:
		case And:
			out = append(out, v...)
		default:
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return None{}
	case 1:
		return out[0]
	}
	return out
}

func intersect(in, col *roaring.Bitmap) *roaring.Bitmap {
	if col == nil {
		return roaring.New()
	}
	return roaring.And(in, col)
}
