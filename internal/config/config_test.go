package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tagfs/api"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	opts, err := Loader{Paths: []string{filepath.Join(t.TempDir(), FileName)}}.Load("/items")
	require.NoError(t, err)

	assert.Empty(t, opts.Enrich)
	opts.Enrich = nil
	want := api.DefaultOptions()
	want.ItemsDir = "/items"
	assert.Equal(t, want, opts)
}

func TestLoad_LaterFilesWin(t *testing.T) {
	tmp := t.TempDir()
	user := writeConfig(t, filepath.Join(tmp, "home"), `
tag_file      = "tags.txt"
value_filters = true
cache_size    = 50
`)
	items := writeConfig(t, filepath.Join(tmp, "items", ".tagfs"), `
cache_size      = 200
rescan          = "interval"
rescan_interval = "30s"
enrich_file     = "meta.json"
enrich = {
  genre = "$.genres[*]"
}
`)

	opts, err := Loader{Paths: []string{filepath.Join(tmp, "etc", FileName), user, items}}.Load("/items")
	require.NoError(t, err)

	assert.Equal(t, "tags.txt", opts.TagFileName)
	assert.True(t, opts.EnableValueFilters)
	assert.False(t, opts.EnableRootItemLinks)
	assert.Equal(t, 200, opts.CacheSize)
	assert.Equal(t, "interval", opts.Rescan)
	assert.Equal(t, 30*time.Second, opts.RescanInterval)
	assert.Equal(t, "meta.json", opts.EnrichFile)
	assert.Equal(t, map[string]string{"genre": "$.genres[*]"}, opts.Enrich)
}

func TestLoad_EnvAndFlagsOverrideFiles(t *testing.T) {
	p := writeConfig(t, t.TempDir(), `
tag_file        = "file.tag"
root_item_links = false
cache_size      = 10
`)
	t.Setenv("TAGFS_ROOT_ITEM_LINKS", "true")
	t.Setenv("TAGFS_CACHE_SIZE", "20")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(FlagName(KeyTagFile), api.DefaultTagFileName, "")
	flags.Int(FlagName(KeyCacheSize), api.DefaultCacheSize, "")
	require.NoError(t, flags.Parse([]string{"--cache-size=30"}))

	opts, err := Loader{Paths: []string{p}, Flags: flags}.Load("/items")
	require.NoError(t, err)

	// Unchanged flags do not shadow the file.
	assert.Equal(t, "file.tag", opts.TagFileName)
	assert.True(t, opts.EnableRootItemLinks)
	assert.Equal(t, 30, opts.CacheSize)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `tag_file = `},
		{"unknown attribute", `colour = "red"`},
		{"wrong type", `cache_size = "many"`},
		{"slash in tag file", `tag_file = "a/b"`},
		{"zero cache", `cache_size = 0`},
		{"enrich without file", `enrich = { genre = "$.g" }`},
		{"interval without period", "rescan = \"interval\"\nrescan_interval = \"0s\""},
		{"timeout without period", "rescan = \"timeout\"\nrescan_interval = \"0s\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeConfig(t, t.TempDir(), tt.content)
			_, err := Loader{Paths: []string{p}}.Load("/items")
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate_RescanInterval(t *testing.T) {
	tests := []struct {
		rescan   string
		interval time.Duration
		wantErr  bool
	}{
		{"once", 0, false},
		{"signal", 0, false},
		{"watch", 0, false},
		{"timeout", 0, true},
		{"interval", 0, true},
		{"interval", -time.Second, true},
		{"timeout", time.Minute, false},
		{"interval", time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.rescan, tt.interval), func(t *testing.T) {
			o := api.DefaultOptions()
			o.Rescan = tt.rescan
			o.RescanInterval = tt.interval

			err := Validate(o)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths("/srv/items")
	require.NotEmpty(t, paths)
	assert.Equal(t, "/etc/tagfs/tagfs.hcl", paths[0])
	assert.Equal(t, "/srv/items/.tagfs/tagfs.hcl", paths[len(paths)-1])
}
