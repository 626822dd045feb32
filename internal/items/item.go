// Package items scans the items directory into immutable snapshots and
// indexes them for filtering.
package items

import (
	"time"

	"github.com/agentic-research/tagfs/internal/tags"
)

// ConfigDirName is the reserved directory inside the items root that holds
// tagfs configuration. It is never treated as an item.
const ConfigDirName = ".tagfs"

// DefaultTagFileName is used when no tag file name is configured.
const DefaultTagFileName = ".tag"

// Item is one immediate subdirectory of the items root.
type Item struct {
	Name string
	// Dir is the absolute path of the item directory.
	Dir string
	// Tags is nil when the item has no (readable) tag file.
	Tags tags.Set

	TagsCreated  time.Time
	TagsModified time.Time
}

// Tagged reports whether the item carries a tag file.
func (i *Item) Tagged() bool { return i.Tags != nil }

func (i *Item) String() string { return i.Name }

// Enricher contributes extra tags for a tagged item, e.g. from an external
// knowledge base. Failures are logged by the scanner and ignored.
type Enricher interface {
	Enrich(item *Item) ([]tags.Tag, error)
}
