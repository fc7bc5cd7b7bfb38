package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cernvm/go-cvmfs/internal/dcontext"
	"github.com/cernvm/go-cvmfs/mountfs"
)

var mountDebug bool

func init() {
	mountCmd.Flags().BoolVar(&mountDebug, "debug-fuse", false, "log the raw FUSE traffic")
}

var mountCmd = &cobra.Command{
	Use:   "mount MOUNTPOINT",
	Short: "mount the repository revision at the given mountpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountpoint := args[0]
		if fi, err := os.Stat(mountpoint); err != nil || !fi.IsDir() {
			return fmt.Errorf("mountpoint %s is not a directory", mountpoint)
		}

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

		server, err := mountfs.Mount(ctx, repo, mountpoint, mountDebug)
		if err != nil {
			return err
		}

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-interrupt
			dcontext.GetLogger(ctx).Info("unmounting")
			server.Unmount()
		}()

		server.Wait()
		return nil
	},
}
