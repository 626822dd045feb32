package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// MountMetadata records a running mount so `tagfs mounts` can list it.
type MountMetadata struct {
	PID        int       `json:"pid"`
	ItemsDir   string    `json:"items_dir"`
	MountPoint string    `json:"mount_point"`
	Backend    string    `json:"backend"`
	Timestamp  time.Time `json:"timestamp"`
}

// mountsDir holds one sidecar per mount. Tests point it elsewhere.
var mountsDir = filepath.Join(os.TempDir(), "tagfs")

var mountsCmd = &cobra.Command{
	Use:   "mounts",
	Short: "List running tagfs mounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mounts, err := listActiveMounts()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PID\tBACKEND\tITEMS\tMOUNTPOINT\tSINCE")
		for _, m := range mounts {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				m.PID, m.Backend, m.ItemsDir, m.MountPoint, m.Timestamp.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(mountsCmd)
}

// sidecarName derives a stable file name for a mountpoint.
// Format: basename-hash (e.g., "movies-a1b2c3.meta.json").
func sidecarName(mountPoint string) string {
	hash := sha256.Sum256([]byte(mountPoint))
	return fmt.Sprintf("%s-%s.meta.json", filepath.Base(mountPoint), hex.EncodeToString(hash[:3]))
}

func sidecarPath(mountPoint string) string {
	return filepath.Join(mountsDir, sidecarName(mountPoint))
}

func saveMountMetadata(meta *MountMetadata) error {
	if err := os.MkdirAll(mountsDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(meta.MountPoint), data, 0o644)
}

func loadMountMetadata(mountPoint string) (*MountMetadata, error) {
	data, err := os.ReadFile(sidecarPath(mountPoint))
	if err != nil {
		return nil, err
	}
	var meta MountMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// checkNotMounted refuses a mountpoint that a running tagfs already serves.
// A sidecar left by a dead process is ignored.
func checkNotMounted(mountPoint string) error {
	meta, err := loadMountMetadata(mountPoint)
	if err != nil {
		return nil
	}
	if meta.PID != os.Getpid() && isProcessRunning(meta.PID) {
		return fmt.Errorf("%s is already mounted by tagfs (pid %d, items %s)", mountPoint, meta.PID, meta.ItemsDir)
	}
	return nil
}

func removeMountMetadata(mountPoint string) {
	_ = os.Remove(sidecarPath(mountPoint))
}

// listActiveMounts reads every sidecar and drops those whose process is
// gone.
func listActiveMounts() ([]*MountMetadata, error) {
	entries, err := os.ReadDir(mountsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var mounts []*MountMetadata
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		metaPath := filepath.Join(mountsDir, name)
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta MountMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if !isProcessRunning(meta.PID) {
			_ = os.Remove(metaPath)
			continue
		}
		mounts = append(mounts, &meta)
	}
	return mounts, nil
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Send signal 0 to check if alive.
	return process.Signal(syscall.Signal(0)) == nil
}
