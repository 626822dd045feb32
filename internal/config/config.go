// Package config resolves mount options from HCL config files, TAGFS_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentic-research/tagfs/api"
	"github.com/agentic-research/tagfs/internal/rescan"
)

// FileName is the config file looked up in every config directory.
const FileName = "tagfs.hcl"

// EnvPrefix prefixes environment overrides, e.g. TAGFS_TAG_FILE.
const EnvPrefix = "TAGFS"

var ErrInvalid = errors.New("invalid configuration")

// Keys understood in config files and the environment. Flags use the same
// names with dashes.
const (
	KeyTagFile        = "tag_file"
	KeyValueFilters   = "value_filters"
	KeyRootItemLinks  = "root_item_links"
	KeyCacheSize      = "cache_size"
	KeyRescan         = "rescan"
	KeyRescanInterval = "rescan_interval"
	KeyLogLevel       = "log_level"
	KeyEnrichFile     = "enrich_file"
	KeyEnrich         = "enrich"
)

// file is the HCL schema of tagfs.hcl. Every attribute is optional so a
// file only overrides what it sets.
type file struct {
	TagFile        *string           `hcl:"tag_file,optional"`
	ValueFilters   *bool             `hcl:"value_filters,optional"`
	RootItemLinks  *bool             `hcl:"root_item_links,optional"`
	CacheSize      *int              `hcl:"cache_size,optional"`
	Rescan         *string           `hcl:"rescan,optional"`
	RescanInterval *string           `hcl:"rescan_interval,optional"`
	LogLevel       *string           `hcl:"log_level,optional"`
	EnrichFile     *string           `hcl:"enrich_file,optional"`
	Enrich         map[string]string `hcl:"enrich,optional"`
}

func (f *file) settings() map[string]any {
	m := make(map[string]any)
	set := func(key string, v any, ok bool) {
		if ok {
			m[key] = v
		}
	}
	set(KeyTagFile, deref(f.TagFile), f.TagFile != nil)
	set(KeyValueFilters, deref(f.ValueFilters), f.ValueFilters != nil)
	set(KeyRootItemLinks, deref(f.RootItemLinks), f.RootItemLinks != nil)
	set(KeyCacheSize, deref(f.CacheSize), f.CacheSize != nil)
	set(KeyRescan, deref(f.Rescan), f.Rescan != nil)
	set(KeyRescanInterval, deref(f.RescanInterval), f.RescanInterval != nil)
	set(KeyLogLevel, deref(f.LogLevel), f.LogLevel != nil)
	set(KeyEnrichFile, deref(f.EnrichFile), f.EnrichFile != nil)
	if len(f.Enrich) > 0 {
		enrich := make(map[string]any, len(f.Enrich))
		for k, v := range f.Enrich {
			enrich[k] = v
		}
		m[KeyEnrich] = enrich
	}
	return m
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// DefaultPaths returns the config files consulted for itemsDir, lowest
// precedence first: system, user, then the items directory itself.
func DefaultPaths(itemsDir string) []string {
	paths := []string{filepath.Join("/etc", "tagfs", FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".tagfs", FileName))
	}
	return append(paths, filepath.Join(itemsDir, ".tagfs", FileName))
}

// Loader resolves api.Options.
type Loader struct {
	// Paths are read in order; later files win. Missing files are skipped.
	Paths []string
	// Flags, when set, override files and environment for flags the user
	// changed.
	Flags *pflag.FlagSet
}

// Load resolves options for itemsDir with the default search paths.
func Load(itemsDir string, flags *pflag.FlagSet) (api.Options, error) {
	return Loader{Paths: DefaultPaths(itemsDir), Flags: flags}.Load(itemsDir)
}

func (l Loader) Load(itemsDir string) (api.Options, error) {
	v := viper.New()
	def := api.DefaultOptions()
	v.SetDefault(KeyTagFile, def.TagFileName)
	v.SetDefault(KeyValueFilters, def.EnableValueFilters)
	v.SetDefault(KeyRootItemLinks, def.EnableRootItemLinks)
	v.SetDefault(KeyCacheSize, def.CacheSize)
	v.SetDefault(KeyRescan, def.Rescan)
	v.SetDefault(KeyRescanInterval, def.RescanInterval)
	v.SetDefault(KeyLogLevel, def.LogLevel)

	for _, p := range l.Paths {
		settings, err := readFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return api.Options{}, err
		}
		if err := v.MergeConfigMap(settings); err != nil {
			return api.Options{}, fmt.Errorf("merge %s: %w", p, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if l.Flags != nil {
		for _, key := range []string{
			KeyTagFile, KeyValueFilters, KeyRootItemLinks, KeyCacheSize,
			KeyRescan, KeyRescanInterval, KeyLogLevel, KeyEnrichFile,
		} {
			if f := l.Flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return api.Options{}, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	opts := api.Options{
		ItemsDir:            itemsDir,
		TagFileName:         v.GetString(KeyTagFile),
		EnableValueFilters:  v.GetBool(KeyValueFilters),
		EnableRootItemLinks: v.GetBool(KeyRootItemLinks),
		CacheSize:           v.GetInt(KeyCacheSize),
		Rescan:              v.GetString(KeyRescan),
		RescanInterval:      v.GetDuration(KeyRescanInterval),
		LogLevel:            v.GetString(KeyLogLevel),
		EnrichFile:          v.GetString(KeyEnrichFile),
		Enrich:              v.GetStringMapString(KeyEnrich),
	}
	return opts, Validate(opts)
}

// FlagName maps a config key to its command line flag.
func FlagName(key string) string { return strings.ReplaceAll(key, "_", "-") }

func readFile(path string) (map[string]any, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	var f file
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return f.settings(), nil
}

// Validate checks options that would otherwise fail deep inside a mount.
func Validate(o api.Options) error {
	switch {
	case o.TagFileName == "" || strings.ContainsRune(o.TagFileName, '/'):
		return fmt.Errorf("%w: tag file name %q", ErrInvalid, o.TagFileName)
	case o.CacheSize <= 0:
		return fmt.Errorf("%w: cache size must be positive, got %d", ErrInvalid, o.CacheSize)
	case o.RescanInterval < 0:
		return fmt.Errorf("%w: negative rescan interval", ErrInvalid)
	case (o.Rescan == rescan.NameTimeout || o.Rescan == rescan.NameInterval) && o.RescanInterval <= 0:
		return fmt.Errorf("%w: rescan %q needs a positive rescan_interval", ErrInvalid, o.Rescan)
	case len(o.Enrich) > 0 && o.EnrichFile == "":
		return fmt.Errorf("%w: enrich rules need enrich_file", ErrInvalid)
	}
	return nil
}
