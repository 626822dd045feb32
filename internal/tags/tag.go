// Package tags holds the tag value type and the line-based tag file parser.
package tags

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrEmptyValue   = errors.New("tag value is empty")
	ErrEmptyContext = errors.New("tag context is present but empty")
)

// Tag is a (context, value) pair. An empty Context means the tag has no
// context. Tag is comparable and used directly as a map key.
type Tag struct {
	Context string
	Value   string
}

// New builds a context-less tag from a raw value.
func New(value string) (Tag, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Tag{}, ErrEmptyValue
	}
	return Tag{Value: value}, nil
}

// NewWithContext builds a tag whose context was explicitly given. Unlike a
// missing context, an explicit one must not be blank.
func NewWithContext(context, value string) (Tag, error) {
	context = strings.TrimSpace(context)
	if context == "" {
		return Tag{}, ErrEmptyContext
	}
	t, err := New(value)
	if err != nil {
		return Tag{}, err
	}
	t.Context = context
	return t, nil
}

// HasContext reports whether the tag lives in a context namespace.
func (t Tag) HasContext() bool { return t.Context != "" }

func (t Tag) String() string {
	if t.Context == "" {
		return t.Value
	}
	return t.Context + ": " + t.Value
}

// Less orders tags by context, then value. Context-less tags sort first.
func (t Tag) Less(o Tag) bool {
	if t.Context != o.Context {
		return t.Context < o.Context
	}
	return t.Value < o.Value
}

// Set is a set of tags.
type Set map[Tag]struct{}

// NewSet returns a set holding the given tags.
func NewSet(ts ...Tag) Set {
	s := make(Set, len(ts))
	for _, t := range ts {
		s[t] = struct{}{}
	}
	return s
}

func (s Set) Add(t Tag) { s[t] = struct{}{} }

func (s Set) Has(t Tag) bool {
	_, ok := s[t]
	return ok
}

// Merge adds every tag of o to s.
func (s Set) Merge(o Set) {
	for t := range o {
		s[t] = struct{}{}
	}
}

// Equal reports whether both sets hold exactly the same tags.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for t := range s {
		if !o.Has(t) {
			return false
		}
	}
	return true
}

// Sorted returns the tags in deterministic order.
func (s Set) Sorted() []Tag {
	out := make([]Tag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Contexts returns the distinct non-empty contexts, sorted.
func (s Set) Contexts() []string {
	seen := make(map[string]struct{})
	for t := range s {
		if t.Context != "" {
			seen[t.Context] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Values returns the values tagged under ctx, sorted. An empty ctx selects
// context-less tags.
func (s Set) Values(ctx string) []string {
	seen := make(map[string]struct{})
	for t := range s {
		if t.Context == ctx {
			seen[t.Value] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
