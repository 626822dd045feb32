package items

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/agentic-research/tagfs/internal/tags"
)

// ErrRootUnreadable is returned when the items root cannot be listed.
var ErrRootUnreadable = errors.New("items root unreadable")

// Scanner reads the items root into Access snapshots.
type Scanner struct {
	Root        string
	TagFileName string
	Enricher    Enricher
	Logger      *zap.Logger

	// Now overrides time.Now, for tests.
	Now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewScanner returns a scanner for root. An empty tagFileName selects
// DefaultTagFileName.
func NewScanner(root, tagFileName string, log *zap.Logger) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve items root %s: %w", root, err)
	}
	if tagFileName == "" {
		tagFileName = DefaultTagFileName
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{Root: abs, TagFileName: tagFileName, Logger: log}, nil
}

// Scan lists the root and builds a new snapshot. Per-item problems are
// logged and degrade the item to untagged; only failing to list the root is
// an error.
func (s *Scanner) Scan() (*Access, error) {
	log := s.logger()
	log.Debug("scanning items", zap.String("root", s.Root))

	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, s.Root, err)
	}

	items := make([]*Item, 0, len(entries))
	for _, e := range entries {
		if e.Name() == ConfigDirName || !s.isDir(e) {
			continue
		}
		items = append(items, s.loadItem(e.Name()))
	}

	a := NewAccess(s.Root, s.TagFileName, items, s.stamp())
	log.Info("scanned items",
		zap.String("root", s.Root),
		zap.Int("items", a.Len()),
		zap.Uint64("tagged", a.TaggedItems().GetCardinality()),
		zap.Time("scan_time", a.ScanTime))
	return a, nil
}

// isDir follows symlinked item directories.
func (s *Scanner) isDir(e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(s.Root, e.Name()))
	return err == nil && fi.IsDir()
}

func (s *Scanner) loadItem(name string) *Item {
	log := s.logger()
	it := &Item{Name: name, Dir: filepath.Join(s.Root, name)}
	tagPath := filepath.Join(it.Dir, s.TagFileName)

	var st unix.Stat_t
	if err := unix.Stat(tagPath, &st); err != nil {
		if !errors.Is(err, unix.ENOENT) {
			log.Warn("cannot stat tag file", zap.String("item", name), zap.Error(err))
		}
		return it
	}
	set, err := tags.ParseFile(tagPath, log)
	if err != nil {
		log.Warn("cannot read tags, treating item as untagged",
			zap.String("item", name), zap.Error(err))
		return it
	}

	it.TagsCreated = time.Unix(st.Ctim.Unix())
	it.TagsModified = time.Unix(st.Mtim.Unix())
	it.Tags = set

	if s.Enricher != nil {
		extra, err := s.Enricher.Enrich(it)
		if err != nil {
			log.Warn("enrichment failed", zap.String("item", name), zap.Error(err))
			return it
		}
		for _, t := range extra {
			it.Tags.Add(t)
		}
	}
	return it
}

// stamp returns the completion time of a scan, strictly later than the
// previous one so consecutive snapshots are distinguishable.
func (s *Scanner) stamp() time.Time {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

func (s *Scanner) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
