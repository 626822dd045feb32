package node

import (
	"bytes"
	"encoding/csv"
	"os"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"go.uber.org/zap"

	"github.com/agentic-research/tagfs/internal/items"
	"github.com/agentic-research/tagfs/internal/memo"
	"github.com/agentic-research/tagfs/internal/tags"
)

const (
	CSVExportName  = "export.csv"
	JSONExportName = "export.json"

	// csvTagsColumn holds values without a context.
	csvTagsColumn = "tags"
)

type formatter func(list []*items.Item) ([]byte, error)

// ExportFile renders the items of its export directory.
type ExportFile struct {
	leaf
	dir    *Directory
	format formatter

	content memo.Value[[]byte]
}

func (t *Tree) exportFile(dir *Directory, name string, format formatter) *ExportFile {
	return &ExportFile{leaf: leaf{name: name}, dir: dir, format: format}
}

// Content returns the rendered file. A rendering failure yields an empty
// file and is logged.
func (f *ExportFile) Content() []byte {
	return f.content.Get(func() []byte {
		b, err := f.format(f.dir.ItemList())
		if err != nil {
			f.dir.tree.log.Warn("export failed", zap.String("file", f.name), zap.Error(err))
			return nil
		}
		return b
	})
}

func (f *ExportFile) Attr() Attr {
	a := f.dir.tree.attr(0o444)
	a.Nlink = 1
	a.Size = int64(len(f.Content()))
	return a
}

func (f *ExportFile) Open(flags int) error {
	if flags&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_TRUNC) != 0 {
		return ErrReadOnly
	}
	return nil
}

func (f *ExportFile) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(f.Content()).ReadAt(p, off)
}

// formatCSV writes one row per item: its name, one column per context and
// a final column for context-less values. Multiple values share a cell,
// newline separated.
func formatCSV(list []*items.Item) ([]byte, error) {
	contexts := contextsOf(list)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	header := append([]string{"name"}, contexts...)
	if err := w.Write(append(header, csvTagsColumn)); err != nil {
		return nil, err
	}
	for _, it := range list {
		row := make([]string, 0, len(contexts)+2)
		row = append(row, it.Name)
		for _, c := range contexts {
			row = append(row, strings.Join(it.Tags.Values(c), "\n"))
		}
		row = append(row, strings.Join(it.Tags.Values(""), "\n"))
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// formatJSON writes an array of {name, path, tags} objects.
func formatJSON(list []*items.Item) ([]byte, error) {
	docs := make([]any, 0, len(list))
	for _, it := range list {
		ts := make([]any, 0, len(it.Tags))
		for _, t := range it.Tags.Sorted() {
			ts = append(ts, t.String())
		}
		docs = append(docs, map[string]any{
			"name": it.Name,
			"path": it.Dir,
			"tags": ts,
		})
	}
	out := oj.JSON(docs, &ojg.Options{Indent: 2, Sort: true})
	return append([]byte(out), '\n'), nil
}

func contextsOf(list []*items.Item) []string {
	all := make(tags.Set)
	for _, it := range list {
		all.Merge(it.Tags)
	}
	return all.Contexts()
}
