package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/winfsp/cgofuse/fuse"
	"go.uber.org/zap"

	tagfs "github.com/agentic-research/tagfs/internal/fs"
	"github.com/agentic-research/tagfs/internal/nfsmount"
)

var (
	useNFS      bool
	metricsFile string
)

func init() {
	addMountFlags(rootCmd)
	addMountFlags(mountCmd)
	rootCmd.AddCommand(mountCmd)
}

func addMountFlags(c *cobra.Command) {
	c.Flags().BoolVar(&useNFS, "nfs", false, "Serve over NFS and mount with the system mount command instead of FUSE")
	c.Flags().StringVar(&metricsFile, "metrics-file", "", "Write metrics in Prometheus text format to this file on exit")
}

var rootCmd = &cobra.Command{
	Use:   "tagfs [mountpoint]",
	Short: "tagfs: browse a directory of items by their tags",
	Long: `tagfs mounts a read-only virtual filesystem over a directory of items.
Every subdirectory of --items is an item; its tag file lists one tag per line,
either "value" or "context: value". Directories in the mount filter items by
tag and end in symlinks to the item directories.`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

var mountCmd = &cobra.Command{
	Use:   "mount [mountpoint]",
	Short: "Mount the tag tree (same as the root command)",
	Args:  cobra.ExactArgs(1),
	RunE:  runMount,
}

func runMount(cmd *cobra.Command, args []string) error {
	mountPoint, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve mountpoint: %w", err)
	}

	if err := checkNotMounted(mountPoint); err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := s.policy.Run(ctx, s.rescan); err != nil {
			s.log.Error("rescan policy stopped", zap.String("policy", s.opts.Rescan), zap.Error(err))
		}
	}()

	backend := "fuse"
	if useNFS {
		backend = "nfs"
	}
	meta := &MountMetadata{
		PID:        os.Getpid(),
		ItemsDir:   s.opts.ItemsDir,
		MountPoint: mountPoint,
		Backend:    backend,
		Timestamp:  time.Now(),
	}
	if err := saveMountMetadata(meta); err != nil {
		s.log.Warn("cannot record mount", zap.Error(err))
	}
	defer removeMountMetadata(mountPoint)

	s.log.Info("mounting",
		zap.String("items", s.opts.ItemsDir),
		zap.String("mountpoint", mountPoint),
		zap.String("backend", backend),
		zap.String("rescan", s.opts.Rescan))

	if useNFS {
		err = serveNFS(ctx, s, mountPoint)
	} else {
		err = serveFUSE(ctx, s, mountPoint)
	}

	if metricsFile != "" {
		if werr := prometheus.WriteToTextfile(metricsFile, s.registry); werr != nil {
			s.log.Error("write metrics", zap.String("file", metricsFile), zap.Error(werr))
		}
	}
	return err
}

func serveFUSE(ctx context.Context, s *session, mountPoint string) error {
	host := fuse.NewFileSystemHost(tagfs.NewTagFS(s.view, s.log))

	go func() {
		<-ctx.Done()
		host.Unmount()
	}()

	// -o uid/gid so the mount is owned by the caller (needed for fuse-t/NFS).
	opts := []string{
		"-o", "ro",
		"-o", fmt.Sprintf("uid=%d", os.Getuid()),
		"-o", fmt.Sprintf("gid=%d", os.Getgid()),
	}
	if !host.Mount(mountPoint, opts) {
		return errors.New("fuse mount failed")
	}
	return nil
}

func serveNFS(ctx context.Context, s *session, mountPoint string) error {
	srv, err := nfsmount.NewServer(nfsmount.NewViewFS(s.view), s.log)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	s.log.Info("nfs server listening", zap.Int("port", srv.Port()))
	if err := nfsmount.Mount(srv.Port(), mountPoint); err != nil {
		return err
	}

	<-ctx.Done()
	s.log.Info("unmounting", zap.String("mountpoint", mountPoint))
	return nfsmount.Unmount(mountPoint)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
