// Package view resolves filesystem paths to synthesized nodes and maps
// protocol calls onto them. It is the only stateful layer between the
// bridges and the node tree: it owns the path cache and follows the
// current snapshot.
package view

import (
	"errors"
	"io/fs"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/agentic-research/tagfs/api"
	"github.com/agentic-research/tagfs/internal/cache"
	"github.com/agentic-research/tagfs/internal/items"
	"github.com/agentic-research/tagfs/internal/metrics"
	"github.com/agentic-research/tagfs/internal/node"
)

// ErrNotFound is returned when no node resolves for a path.
var ErrNotFound = errors.New("no such file or directory")

// wellKnown names are looked up by desktop shells on every directory; they
// never exist and skip the cache.
var wellKnown = map[string]bool{
	".DirIcon": true,
	"AppRun":   true,
}

// Snapshots yields the snapshot to serve. *items.Store implements it.
type Snapshots interface {
	Current() *items.Access
}

// DirEntry is one readdir result.
type DirEntry struct {
	Name string
	Mode fs.FileMode
}

// View resolves paths against the current snapshot.
type View struct {
	snapshots Snapshots
	opts      api.Options
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu    sync.Mutex
	tree  *node.Tree
	cache *cache.TransientDict[string, node.Node]
}

// Option configures a View.
type Option func(*View)

func WithLogger(l *zap.Logger) Option { return func(v *View) { v.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(v *View) { v.metrics = m } }

// New returns a View. opts.CacheSize bounds the path cache.
func New(s Snapshots, opts api.Options, o ...Option) *View {
	v := &View{snapshots: s, opts: opts, log: zap.NewNop()}
	for _, fn := range o {
		fn(v)
	}
	size := opts.CacheSize
	if size <= 0 {
		size = api.DefaultCacheSize
	}
	v.cache = cache.New[string, node.Node](size)
	v.cache.OnEvict(func(string) { v.metrics.CacheEvicted() })
	return v
}

// Clean normalizes p to an absolute slash path.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// Node resolves p. Both hits and misses are cached until evicted or the
// snapshot changes.
func (v *View) Node(p string) (node.Node, error) {
	p = Clean(p)
	if wellKnown[path.Base(p)] {
		return nil, ErrNotFound
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	tree := v.refresh()
	if n, ok := v.cache.Get(p); ok {
		v.metrics.CacheHit()
		if n == nil {
			return nil, ErrNotFound
		}
		return n, nil
	}
	v.metrics.CacheMiss()

	n := resolve(tree.Root(), p)
	v.metrics.Resolved(n != nil)
	if n == nil {
		v.log.Debug("path not found", zap.String("path", p))
		v.cache.Set(p, nil)
		return nil, ErrNotFound
	}
	v.cache.Set(p, n)
	return n, nil
}

// Tree returns the tree for the current snapshot.
func (v *View) Tree() *node.Tree {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refresh()
}

// refresh swaps in a new tree when the snapshot changed. Cached nodes
// belong to the old tree and are dropped with it.
func (v *View) refresh() *node.Tree {
	a := v.snapshots.Current()
	if v.tree != nil && v.tree.Access() == a {
		return v.tree
	}
	if v.tree != nil {
		v.log.Debug("snapshot changed, dropping path cache", zap.Int("entries", v.cache.Len()))
	}
	v.tree = node.NewTree(a, v.opts, v.log)
	v.cache.Clear()
	return v.tree
}

// resolve walks one segment at a time and stops at the first miss.
func resolve(root node.Node, p string) node.Node {
	var n node.Node = root
	for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if seg == "" {
			continue
		}
		next, ok := n.Lookup(seg)
		if !ok {
			return nil
		}
		n = next
	}
	return n
}

func (v *View) Getattr(p string) (node.Attr, error) {
	n, err := v.Node(p)
	if err != nil {
		return node.Attr{}, err
	}
	return n.Attr(), nil
}

// Readdir lists ".", ".." and the children of p.
func (v *View) Readdir(p string) ([]DirEntry, error) {
	n, err := v.Node(p)
	if err != nil {
		return nil, err
	}
	if !n.Attr().IsDir() {
		return nil, node.ErrNotDir
	}
	entries := n.Entries()
	out := make([]DirEntry, 0, len(entries)+2)
	out = append(out, DirEntry{Name: ".", Mode: fs.ModeDir}, DirEntry{Name: "..", Mode: fs.ModeDir})
	for _, e := range entries {
		out = append(out, DirEntry{Name: e.Name(), Mode: e.Attr().Mode.Type()})
	}
	return out, nil
}

func (v *View) Readlink(p string) (string, error) {
	n, err := v.Node(p)
	if err != nil {
		return "", err
	}
	return n.Readlink()
}

func (v *View) Open(p string, flags int) error {
	n, err := v.Node(p)
	if err != nil {
		return err
	}
	return n.Open(flags)
}

func (v *View) Read(p string, buf []byte, off int64) (int, error) {
	n, err := v.Node(p)
	if err != nil {
		return 0, err
	}
	return n.ReadAt(buf, off)
}

func (v *View) Write(p string, buf []byte, off int64) (int, error) {
	n, err := v.Node(p)
	if err != nil {
		return 0, err
	}
	return n.WriteAt(buf, off)
}

// Symlink asks the node owning the parent of linkPath to create it.
func (v *View) Symlink(target, linkPath string) error {
	linkPath = Clean(linkPath)
	parent, err := v.Node(path.Dir(linkPath))
	if err != nil {
		return err
	}
	return parent.Symlink(target, path.Base(linkPath))
}
