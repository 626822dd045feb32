// Package nfsmount provides an NFS-based mount backend for tagfs.
// It adapts the path View to billy.Filesystem for use with
// willscott/go-nfs, as an alternative to the FUSE mount layer.
package nfsmount

import (
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/tagfs/internal/node"
	"github.com/agentic-research/tagfs/internal/view"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

// ViewFS adapts a view.View to billy.Filesystem. The tree is read-only;
// item links are exposed as symlinks.
type ViewFS struct {
	view *view.View
}

// NewViewFS creates a billy.Filesystem backed by v.
func NewViewFS(v *view.View) *ViewFS {
	return &ViewFS{view: v}
}

// --- billy.Basic ---

func (fs *ViewFS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *ViewFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *ViewFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}
	attr, err := fs.view.Getattr(filename)
	if err != nil {
		return nil, pathError("open", filename, err)
	}
	if attr.IsDir() {
		return nil, pathError("open", filename, node.ErrIsDir)
	}
	if err := fs.view.Open(filename, flag); err != nil {
		return nil, pathError("open", filename, err)
	}
	return &viewFile{path: filename, size: attr.Size, view: fs.view}, nil
}

func (fs *ViewFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *ViewFS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *ViewFS) Remove(filename string) error {
	return errReadOnly
}

func (fs *ViewFS) Join(elem ...string) string {
	return path.Join(elem...)
}

// --- billy.TempFile ---

func (fs *ViewFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *ViewFS) ReadDir(dir string) ([]os.FileInfo, error) {
	dir = cleanPath(dir)

	entries, err := fs.view.Readdir(dir)
	if err != nil {
		return nil, pathError("readdir", dir, err)
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		attr, err := fs.view.Getattr(path.Join(dir, e.Name))
		if err != nil {
			continue
		}
		infos = append(infos, attrToFileInfo(e.Name, attr))
	}
	return infos, nil
}

func (fs *ViewFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *ViewFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	attr, err := fs.view.Getattr(filename)
	if err != nil {
		return nil, pathError("lstat", filename, err)
	}
	return attrToFileInfo(path.Base(filename), attr), nil
}

// Symlink is delegated to the node owning the link's directory, which
// refuses it.
func (fs *ViewFS) Symlink(target, link string) error {
	link = cleanPath(link)
	if err := fs.view.Symlink(target, link); err != nil {
		if errors.Is(err, node.ErrReadOnly) {
			return errReadOnly
		}
		return pathError("symlink", link, err)
	}
	return nil
}

func (fs *ViewFS) Readlink(link string) (string, error) {
	link = cleanPath(link)
	target, err := fs.view.Readlink(link)
	if err != nil {
		return "", pathError("readlink", link, err)
	}
	return target, nil
}

// --- billy.Chroot ---

func (fs *ViewFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *ViewFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *ViewFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(p string) string {
	return view.Clean(p)
}

// pathError wraps err so go-nfs maps a missing node to NOENT.
func pathError(op, p string, err error) error {
	if errors.Is(err, view.ErrNotFound) {
		err = os.ErrNotExist
	}
	return &os.PathError{Op: op, Path: p, Err: err}
}

func attrToFileInfo(name string, a node.Attr) os.FileInfo {
	return &staticFileInfo{
		name:    name,
		size:    a.Size,
		mode:    a.Mode,
		modTime: a.Mtime,
	}
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*ViewFS)(nil)
	_ billy.Capable    = (*ViewFS)(nil)
	_ billy.File       = (*viewFile)(nil)
)
