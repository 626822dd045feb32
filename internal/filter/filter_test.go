package filter

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"

	"github.com/agentic-research/tagfs/internal/tags"
)

// memIndex is a hand-built incidence table: item ordinal -> tags.
type memIndex map[uint32][]tags.Tag

func (m memIndex) collect(match func(tags.Tag) bool) *roaring.Bitmap {
	bm := roaring.New()
	for id, ts := range m {
		for _, t := range ts {
			if match(t) {
				bm.Add(id)
				break
			}
		}
	}
	return bm
}

func (m memIndex) TagItems(t tags.Tag) *roaring.Bitmap {
	return m.collect(func(o tags.Tag) bool { return o == t })
}

func (m memIndex) ValueItems(v string) *roaring.Bitmap {
	return m.collect(func(o tags.Tag) bool { return o.Value == v })
}

func (m memIndex) ContextItems(c string) *roaring.Bitmap {
	return m.collect(func(o tags.Tag) bool { return o.Context == c })
}

var (
	red      = tags.Tag{Value: "red"}
	colorRed = tags.Tag{Context: "color", Value: "red"}
	colorBlu = tags.Tag{Context: "color", Value: "blue"}
	india    = tags.Tag{Context: "place", Value: "india"}
)

// 0: A (red), 1: B (color: red), 2: D (color: blue, place: india)
func testIndex() memIndex {
	return memIndex{
		0: {red},
		1: {colorRed},
		2: {colorBlu, india},
	}
}

func allFilters() map[string]Filter {
	return map[string]Filter{
		"none":          None{},
		"tag":           Tag{Tag: colorRed},
		"value":         Value{Value: "red"},
		"context":       ContextPresence{Context: "color"},
		"not context":   ContextPresence{Context: "color", Negate: true},
		"unknown tag":   Tag{Tag: tags.Tag{Value: "nope"}},
		"and":           And{Value{Value: "red"}, ContextPresence{Context: "color"}},
		"empty and":     And{},
		"unknown ctx !": ContextPresence{Context: "nope", Negate: true},
	}
}

func TestFilters_NeverEnlarge(t *testing.T) {
	idx := testIndex()
	inputs := []*roaring.Bitmap{
		roaring.New(),
		roaring.BitmapOf(0),
		roaring.BitmapOf(0, 1),
		roaring.BitmapOf(0, 1, 2),
	}

	for name, f := range allFilters() {
		t.Run(name, func(t *testing.T) {
			for _, in := range inputs {
				before := in.Clone()
				out := f.Apply(idx, in)

				assert.True(t, roaring.AndNot(out, in).IsEmpty(), "%s enlarged %v to %v", f, in, out)
				assert.True(t, before.Equals(in), "%s mutated its input", f)
				if in.IsEmpty() {
					assert.True(t, out.IsEmpty())
				}
			}
		})
	}
}

func TestFilters_ScenarioB(t *testing.T) {
	idx := testIndex()
	ab := roaring.BitmapOf(0, 1)

	assert.Equal(t, []uint32{0, 1}, Value{Value: "red"}.Apply(idx, ab).ToArray())
	assert.Equal(t, []uint32{1}, Tag{Tag: colorRed}.Apply(idx, ab).ToArray())
}

func TestContextPresence(t *testing.T) {
	idx := testIndex()
	all := roaring.BitmapOf(0, 1, 2)

	assert.Equal(t, []uint32{1, 2}, ContextPresence{Context: "color"}.Apply(idx, all).ToArray())
	assert.Equal(t, []uint32{0}, ContextPresence{Context: "color", Negate: true}.Apply(idx, all).ToArray())
	assert.Equal(t, []uint32{0, 1}, ContextPresence{Context: "place", Negate: true}.Apply(idx, all).ToArray())
}

func TestAnd_EqualsSequentialApplicationInAnyOrder(t *testing.T) {
	idx := testIndex()
	all := roaring.BitmapOf(0, 1, 2)
	fs := allFilters()

	for n1, f1 := range fs {
		for n2, f2 := range fs {
			seq := f1.Apply(idx, f2.Apply(idx, all))
			fwd := And{f1, f2}.Apply(idx, all)
			rev := And{f2, f1}.Apply(idx, all)

			assert.True(t, seq.Equals(fwd), "%s,%s", n1, n2)
			assert.True(t, seq.Equals(rev), "%s,%s reversed", n1, n2)
		}
	}
}

func TestCompose(t *testing.T) {
	assert.Equal(t, None{}, Compose(None{}, None{}))
	assert.Equal(t, Value{Value: "red"}, Compose(None{}, Value{Value: "red"}))

	nested := Compose(Compose(Value{Value: "red"}, Tag{Tag: colorRed}), ContextPresence{Context: "place"})
	assert.Equal(t, And{Value{Value: "red"}, Tag{Tag: colorRed}, ContextPresence{Context: "place"}}, nested)
	assert.Equal(t, "value(red) & tag(color: red) & context(place)", nested.String())
}
