package main

import (
	"github.com/spf13/cobra"

	"github.com/cernvm/go-cvmfs/cache"
	"github.com/cernvm/go-cvmfs/internal/dcontext"
)

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "drop all cached objects and re-initialize the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfigurationURL(false)
		if err != nil {
			return err
		}
		ctx := setupContext(config)

		c := cache.New(config.Cache.RootDirectory)
		if err := c.Evict(); err != nil {
			return err
		}
		dcontext.GetLoggerWithField(ctx, "cache", c.Root()).Info("cache evicted")
		return nil
	},
}
