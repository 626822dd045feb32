package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tagfs/internal/view"
)

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the tag tree without mounting it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.log.Sync() }()

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, s.opts.ItemsDir)
		return printTree(w, s.view, "/", 1, treeDepth)
	},
}

func init() {
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "L", 3, "Descend at most this many levels")
	rootCmd.AddCommand(treeCmd)
}

// printTree writes the subtree under p, one entry per line indented by
// depth. Links are printed with their target and not followed.
func printTree(w io.Writer, v *view.View, p string, depth, maxDepth int) error {
	if maxDepth > 0 && depth > maxDepth {
		return nil
	}
	entries, err := v.Readdir(p)
	if err != nil {
		return fmt.Errorf("readdir %s: %w", p, err)
	}
	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		child := path.Join(p, e.Name)
		switch {
		case e.Mode.IsDir():
			fmt.Fprintf(w, "%s%s/\n", indent, e.Name)
			if err := printTree(w, v, child, depth+1, maxDepth); err != nil {
				return err
			}
		case e.Mode&fs.ModeSymlink != 0:
			target, err := v.Readlink(child)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s%s -> %s\n", indent, e.Name, target)
		default:
			fmt.Fprintf(w, "%s%s\n", indent, e.Name)
		}
	}
	return nil
}
