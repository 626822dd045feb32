package api

import "time"

// Options is the resolved configuration of one tagfs mount.
type Options struct {
	// ItemsDir is the directory whose subdirectories are the items.
	ItemsDir string `json:"items_dir"`

	// TagFileName is the per-item tag file (default ".tag").
	TagFileName string `json:"tag_file"`

	// EnableValueFilters exposes flat value directories next to contexts.
	EnableValueFilters bool `json:"value_filters"`

	// EnableRootItemLinks lists every tagged item directly under the root.
	EnableRootItemLinks bool `json:"root_item_links"`

	// CacheSize bounds the resolved-path cache.
	CacheSize int `json:"cache_size"`

	// Rescan names the rescan policy: once, timeout, interval, signal or watch.
	Rescan string `json:"rescan"`

	// RescanInterval drives the timeout and interval policies.
	RescanInterval time.Duration `json:"rescan_interval"`

	// EnrichFile is a JSON file inside each item read by the enricher.
	EnrichFile string `json:"enrich_file,omitempty"`

	// Enrich maps a context to the JSONPath whose results become its tags.
	Enrich map[string]string `json:"enrich,omitempty"`

	LogLevel string `json:"log_level"`
}

// Defaults for unset options.
const (
	DefaultTagFileName    = ".tag"
	DefaultCacheSize      = 100
	DefaultRescan         = "once"
	DefaultRescanInterval = 10 * time.Minute
	DefaultLogLevel       = "info"
)

// DefaultOptions returns Options with every default applied.
func DefaultOptions() Options {
	return Options{
		TagFileName:    DefaultTagFileName,
		CacheSize:      DefaultCacheSize,
		Rescan:         DefaultRescan,
		RescanInterval: DefaultRescanInterval,
		LogLevel:       DefaultLogLevel,
	}
}
