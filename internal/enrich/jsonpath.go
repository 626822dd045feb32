// Package enrich contributes extra tags to items from structured metadata
// stored next to them.
package enrich

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/tagfs/internal/items"
	"github.com/agentic-research/tagfs/internal/tags"
)

// JSONPath reads a JSON document from each item directory and maps query
// results to tags. Each rule turns every scalar matched by its expression
// into a tag in the rule's context; an empty context yields context-less
// tags.
type JSONPath struct {
	FileName string
	rules    []rule
}

type rule struct {
	context string
	expr    jp.Expr
}

// NewJSONPath compiles one rule per context. Rules run in context order.
func NewJSONPath(fileName string, exprs map[string]string) (*JSONPath, error) {
	if fileName == "" {
		return nil, errors.New("enrich: empty metadata file name")
	}
	contexts := make([]string, 0, len(exprs))
	for c := range exprs {
		contexts = append(contexts, c)
	}
	sort.Strings(contexts)

	e := &JSONPath{FileName: fileName}
	for _, c := range contexts {
		x, err := jp.ParseString(exprs[c])
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s' for context %q: %w", exprs[c], c, err)
		}
		e.rules = append(e.rules, rule{context: c, expr: x})
	}
	return e, nil
}

// Enrich implements items.Enricher. A missing metadata file yields no tags.
func (e *JSONPath) Enrich(it *items.Item) ([]tags.Tag, error) {
	raw, err := os.ReadFile(filepath.Join(it.Dir, e.FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", e.FileName, err)
	}

	var out []tags.Tag
	for _, r := range e.rules {
		for _, v := range r.expr.Get(doc) {
			for _, s := range scalars(v) {
				t, err := r.tag(s)
				if err != nil {
					continue
				}
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (r rule) tag(value string) (tags.Tag, error) {
	if r.context == "" {
		return tags.New(value)
	}
	return tags.NewWithContext(r.context, value)
}

// scalars flattens a match into tag values. Arrays contribute each scalar
// element; objects and nulls contribute nothing.
func scalars(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case bool:
		return []string{strconv.FormatBool(x)}
	case int64:
		return []string{strconv.FormatInt(x, 10)}
	case float64:
		return []string{strconv.FormatFloat(x, 'f', -1, 64)}
	case []any:
		var out []string
		for _, e := range x {
			if _, nested := e.([]any); nested {
				continue
			}
			out = append(out, scalars(e)...)
		}
		return out
	default:
		return nil
	}
}

var _ items.Enricher = (*JSONPath)(nil)
