package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "show the subtree counters of the mounted root catalog",
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

		stats, err := repo.Statistics(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Regular files:   %d\n", stats.Regular)
		fmt.Printf("Directories:     %d\n", stats.Dir)
		fmt.Printf("Symlinks:        %d\n", stats.Symlink)
		fmt.Printf("Nested catalogs: %d\n", stats.Nested)
		fmt.Printf("Chunked files:   %d (%s in %d chunks)\n",
			stats.Chunked, humanize.Bytes(stats.ChunkedSize), stats.Chunks)
		fmt.Printf("External files:  %d (%s)\n",
			stats.External, humanize.Bytes(stats.ExternalFileSize))
		fmt.Printf("Special files:   %d\n", stats.Special)
		fmt.Printf("With xattrs:     %d\n", stats.Xattr)
		return nil
	},
}
