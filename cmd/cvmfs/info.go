package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "show the repository manifest and replication state",
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

		mf := repo.Manifest()
		fmt.Printf("Repository:           %s\n", mf.RepositoryName)
		fmt.Printf("Revision:             %d\n", mf.Revision)
		fmt.Printf("Published:            %s (%s)\n", mf.LastModified, humanize.Time(mf.LastModified))
		fmt.Printf("TTL:                  %ds\n", mf.TTL)
		fmt.Printf("Root catalog:         %s (%s)\n", mf.RootCatalog, humanize.Bytes(mf.RootCatalogSize))
		fmt.Printf("Certificate:          %s\n", mf.Certificate)
		if mf.HasHistory() {
			fmt.Printf("History database:     %s\n", mf.HistoryDatabase)
		}
		fmt.Printf("Garbage collectable:  %v\n", mf.GarbageCollectable)

		if last := repo.LastReplication(); !last.IsZero() {
			fmt.Printf("Last replication:     %s (%s)\n", last, humanize.Time(last))
		}
		if since, ok := repo.ReplicatingSince(); ok {
			fmt.Printf("Replicating since:    %s\n", since)
		}

		tag, err := repo.CurrentTag(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Mounted tag:          %s (revision %d)\n", tag.Name, tag.Revision)
		return nil
	},
}
