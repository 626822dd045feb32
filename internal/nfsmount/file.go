package nfsmount

import (
	"errors"
	"io"

	"github.com/agentic-research/tagfs/internal/view"
)

// viewFile implements billy.File by reading through the View.
// Read-only: Write and Truncate return errors.
type viewFile struct {
	path string
	size int64
	view *view.View
	pos  int64
}

func (f *viewFile) Name() string { return f.path }

func (f *viewFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *viewFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= f.size {
		return 0, io.EOF
	}
	n, err := f.view.Read(f.path, p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *viewFile) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = f.size + offset
	}
	if newPos < 0 {
		newPos = 0
	}
	f.pos = newPos
	return f.pos, nil
}

func (f *viewFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *viewFile) Truncate(int64) error      { return errReadOnly }
func (f *viewFile) Lock() error               { return nil }
func (f *viewFile) Unlock() error             { return nil }
func (f *viewFile) Close() error              { return nil }
