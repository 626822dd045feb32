package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/agentic-research/tagfs/api"
	"github.com/agentic-research/tagfs/internal/items"
	"github.com/agentic-research/tagfs/internal/view"
)

// makeItems creates A (red), B (color: red) and the untagged C.
func makeItems(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range map[string]string{"A": "red\n", "B": "color: red\n", "C": ""} {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		if content != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, ".tag"), []byte(content), 0o644))
		}
	}
	return root
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func normalize(out string) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		lines = append(lines, strings.Join(strings.Fields(l), " "))
	}
	return lines
}

func TestTagsCommand(t *testing.T) {
	root := makeItems(t)

	out := execute(t, "tags", "--items", root, "--log-level", "error")

	assert.Equal(t, []string{"red 1", "color: red 1", "(untagged) 1"}, normalize(out))
}

func TestTreeCommand(t *testing.T) {
	root := makeItems(t)

	out := execute(t, "tree", "--items", root, "--depth", "2", "--log-level", "error")

	assert.Contains(t, out, "  .untagged/\n    C -> "+filepath.Join(root, "C")+"\n")
	assert.Contains(t, out, "  color/\n    .unset/\n    red/\n")
	assert.NotContains(t, out, "      ", "depth 2 must not print a third level")
}

func TestPrintTree_Links(t *testing.T) {
	root := makeItems(t)
	s, err := items.NewScanner(root, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	a, err := s.Scan()
	require.NoError(t, err)

	opts := api.DefaultOptions()
	opts.EnableRootItemLinks = true
	v := view.New(staticSnapshot{a}, opts, view.WithLogger(zaptest.NewLogger(t)))

	var out bytes.Buffer
	require.NoError(t, printTree(&out, v, "/", 1, 1))

	assert.Contains(t, out.String(), "  A -> "+filepath.Join(root, "A")+"\n")
	assert.Contains(t, out.String(), "  B -> "+filepath.Join(root, "B")+"\n")
	assert.NotContains(t, out.String(), "  C -> ")
}

type staticSnapshot struct{ a *items.Access }

func (s staticSnapshot) Current() *items.Access { return s.a }

func TestSessionRequiresItems(t *testing.T) {
	itemsDir = ""
	_, err := openSession(tagsCmd)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"console debug", "debug", "console", false},
		{"json info", "info", "json", false},
		{"default format", "warn", "", false},
		{"bad level", "loud", "console", true},
		{"bad format", "info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := newLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestMountMetadata(t *testing.T) {
	mountsDir = t.TempDir()

	live := &MountMetadata{
		PID:        os.Getpid(),
		ItemsDir:   "/items",
		MountPoint: "/mnt/movies",
		Backend:    "fuse",
		Timestamp:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, saveMountMetadata(live))

	got, err := loadMountMetadata("/mnt/movies")
	require.NoError(t, err)
	assert.Equal(t, live, got)

	// A sidecar whose process is gone is pruned.
	dead := &MountMetadata{PID: 1 << 30, MountPoint: "/mnt/gone"}
	require.NoError(t, saveMountMetadata(dead))

	mounts, err := listActiveMounts()
	require.NoError(t, err)
	require.Len(t, mounts, 1)
	assert.Equal(t, "/mnt/movies", mounts[0].MountPoint)
	_, err = os.Stat(sidecarPath("/mnt/gone"))
	assert.True(t, os.IsNotExist(err))

	removeMountMetadata("/mnt/movies")
	mounts, err = listActiveMounts()
	require.NoError(t, err)
	assert.Empty(t, mounts)
}

func TestSidecarName(t *testing.T) {
	a := sidecarName("/mnt/movies")
	b := sidecarName("/srv/movies")
	assert.True(t, strings.HasPrefix(a, "movies-"))
	assert.True(t, strings.HasSuffix(a, ".meta.json"))
	assert.NotEqual(t, a, b)
}

func TestCheckNotMounted(t *testing.T) {
	mountsDir = t.TempDir()

	require.NoError(t, checkNotMounted("/mnt/free"))

	require.NoError(t, saveMountMetadata(&MountMetadata{PID: os.Getppid(), ItemsDir: "/items", MountPoint: "/mnt/busy"}))
	err := checkNotMounted("/mnt/busy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already mounted")

	require.NoError(t, saveMountMetadata(&MountMetadata{PID: 1 << 30, MountPoint: "/mnt/stale"}))
	assert.NoError(t, checkNotMounted("/mnt/stale"))
}

func TestSessionRescan(t *testing.T) {
	root := makeItems(t)
	itemsDir = root
	t.Cleanup(func() { itemsDir = "" })

	s, err := openSession(tagsCmd)
	require.NoError(t, err)
	before := s.store.Current()
	_, ok := before.Lookup("D")
	require.False(t, ok)

	dir := filepath.Join(root, "D")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tag"), []byte("blue\n"), 0o644))
	s.rescan()

	after := s.store.Current()
	assert.NotSame(t, before, after)
	d, ok := after.Lookup("D")
	require.True(t, ok)
	assert.True(t, d.Tagged())
}
