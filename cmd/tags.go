package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tagfs/internal/items"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List every tag with the number of items carrying it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.log.Sync() }()
		return printTags(cmd.OutOrStdout(), s.store.Current())
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}

func printTags(w io.Writer, a *items.Access) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range a.AllTags() {
		fmt.Fprintf(tw, "%s\t%d\n", t, a.TagItems(t).GetCardinality())
	}
	if n := a.UntaggedItems().GetCardinality(); n > 0 {
		fmt.Fprintf(tw, "(untagged)\t%d\n", n)
	}
	return tw.Flush()
}
