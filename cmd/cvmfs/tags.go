package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "list the tags published in the repository history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfiguration()
		if err != nil {
			return err
		}
		ctx := setupContext(config)

		repo, _, err := openRepository(ctx, config)
		if err != nil {
			return err
		}
		defer repo.Close()

		h, err := repo.History(ctx)
		if err != nil {
			return err
		}
		tags, err := h.ListTags()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tREVISION\tPUBLISHED\tHASH")
		for _, tag := range tags {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				tag.Name, tag.Revision,
				time.Unix(tag.Timestamp, 0).UTC().Format(time.RFC3339),
				tag.Hash)
		}
		return w.Flush()
	},
}
