package fs

import (
	"errors"
	"io"
	iofs "io/fs"
	"sync"

	"github.com/winfsp/cgofuse/fuse"
	"go.uber.org/zap"

	"github.com/agentic-research/tagfs/internal/node"
	"github.com/agentic-research/tagfs/internal/view"
)

// TagFS implements the FUSE interface from cgofuse on top of a View.
// Errors are returned as negative errno values.
type TagFS struct {
	fuse.FileSystemBase
	View *view.View
	log  *zap.Logger

	mu      sync.Mutex
	nextFh  uint64
	handles map[uint64][]view.DirEntry
}

func NewTagFS(v *view.View, log *zap.Logger) *TagFS {
	if log == nil {
		log = zap.NewNop()
	}
	return &TagFS{View: v, log: log, handles: make(map[uint64][]view.DirEntry)}
}

// errno maps resolution and node errors to negative FUSE error codes.
func errno(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, view.ErrNotFound):
		return -fuse.ENOENT
	case errors.Is(err, node.ErrIsDir):
		return -fuse.EISDIR
	case errors.Is(err, node.ErrNotDir):
		return -fuse.ENOTDIR
	case errors.Is(err, node.ErrNotLink):
		return -fuse.EINVAL
	case errors.Is(err, node.ErrReadOnly):
		return -fuse.EROFS
	}
	return -fuse.EIO
}

func fuseMode(m iofs.FileMode) uint32 {
	perm := uint32(m.Perm())
	switch {
	case m.IsDir():
		return fuse.S_IFDIR | perm
	case m&iofs.ModeSymlink != 0:
		return fuse.S_IFLNK | perm
	}
	return fuse.S_IFREG | perm
}

func fillStat(stat *fuse.Stat_t, a node.Attr) {
	stat.Mode = fuseMode(a.Mode)
	stat.Nlink = a.Nlink
	stat.Size = a.Size
	stat.Uid = a.Uid
	stat.Gid = a.Gid
	stat.Atim = fuse.NewTimespec(a.Atime)
	stat.Mtim = fuse.NewTimespec(a.Mtime)
	stat.Ctim = fuse.NewTimespec(a.Ctime)
	stat.Birthtim = stat.Ctim
}

// Getattr (Stat)
func (fs *TagFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	a, err := fs.View.Getattr(path)
	if err != nil {
		return errno(err)
	}
	fillStat(stat, a)
	return 0
}

// Opendir snapshots the listing so paged Readdir calls see one consistent
// set of entries.
func (fs *TagFS) Opendir(path string) (int, uint64) {
	entries, err := fs.View.Readdir(path)
	if err != nil {
		return errno(err), ^uint64(0)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextFh++
	fs.handles[fs.nextFh] = entries
	return 0, fs.nextFh
}

// Readdir (List directory). Offsets are entry positions; fill returning
// false means the kernel buffer is full.
func (fs *TagFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	fs.mu.Lock()
	entries, ok := fs.handles[fh]
	fs.mu.Unlock()
	if !ok {
		var err error
		if entries, err = fs.View.Readdir(path); err != nil {
			return errno(err)
		}
	}

	for i := ofst; i < int64(len(entries)); i++ {
		if !fill(entries[i].Name, nil, i+1) {
			break
		}
	}
	return 0
}

func (fs *TagFS) Releasedir(path string, fh uint64) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.handles, fh)
	return 0
}

func (fs *TagFS) Readlink(path string) (int, string) {
	target, err := fs.View.Readlink(path)
	if err != nil {
		return errno(err), ""
	}
	return 0, target
}

func (fs *TagFS) Open(path string, flags int) (int, uint64) {
	if err := fs.View.Open(path, flags); err != nil {
		return errno(err), ^uint64(0)
	}
	return 0, 0
}

// Read (Cat file)
func (fs *TagFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	n, err := fs.View.Read(path, buff, ofst)
	if err != nil && !errors.Is(err, io.EOF) {
		return errno(err)
	}
	return n
}

func (fs *TagFS) Write(path string, buff []byte, ofst int64, fh uint64) int {
	n, err := fs.View.Write(path, buff, ofst)
	if err != nil {
		fs.log.Debug("write rejected", zap.String("path", path), zap.Error(err))
		return errno(err)
	}
	return n
}

func (fs *TagFS) Symlink(target string, newpath string) int {
	return errno(fs.View.Symlink(target, newpath))
}
