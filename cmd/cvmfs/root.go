package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cernvm/go-cvmfs/configuration"
	"github.com/cernvm/go-cvmfs/fetcher"
	"github.com/cernvm/go-cvmfs/internal/dcontext"
	"github.com/cernvm/go-cvmfs/repository"
	"github.com/cernvm/go-cvmfs/version"
)

var (
	configPath  string
	sourceURL   string
	cacheDir    string
	showVersion bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a configuration file")
	rootCmd.PersistentFlags().StringVar(&sourceURL, "url", "", "repository source url or directory")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache", "", "local cache directory")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(evictCmd)
}

// rootCmd is the main command for the 'cvmfs' binary.
var rootCmd = &cobra.Command{
	Use:   "cvmfs",
	Short: "read-only CernVM-FS repository client",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			version.PrintVersion()
			return
		}
		cmd.Usage()
	},
}

// loadConfiguration merges the configuration file, if any, with the
// command line overrides.
func loadConfiguration() (*configuration.Configuration, error) {
	return loadConfigurationURL(true)
}

// loadConfigurationURL is loadConfiguration for commands that can run
// without a repository source, such as cache eviction.
func loadConfigurationURL(requireURL bool) (*configuration.Configuration, error) {
	config := &configuration.Configuration{}
	if configPath != "" {
		fp, err := os.Open(configPath)
		if err != nil {
			return nil, err
		}
		defer fp.Close()
		config, err = configuration.Parse(fp)
		if err != nil {
			return nil, fmt.Errorf("error parsing %s: %v", configPath, err)
		}
	} else {
		config.Log.Level = "info"
		config.Log.Formatter = "text"
		config.Cache.RootDirectory = "/var/cache/cvmfs"
	}

	if sourceURL != "" {
		config.Repository.URL = sourceURL
	}
	if cacheDir != "" {
		config.Cache.RootDirectory = cacheDir
	}
	if requireURL && config.Repository.URL == "" {
		return nil, fmt.Errorf("a repository url is required (--url or configuration file)")
	}
	return config, nil
}

// setupContext configures logging per the configuration and returns the
// root context all operations run under.
func setupContext(config *configuration.Configuration) context.Context {
	level, err := logrus.ParseLevel(config.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if config.Log.Formatter == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	entry := logrus.NewEntry(logrus.StandardLogger())
	if len(config.Log.Fields) > 0 {
		entry = entry.WithFields(logrus.Fields(config.Log.Fields))
	}
	return dcontext.WithLogger(context.Background(), entry)
}

// openRepository builds the fetcher and repository for the loaded
// configuration and applies any tag or revision pin.
func openRepository(ctx context.Context, config *configuration.Configuration) (*repository.Repository, *fetcher.Fetcher, error) {
	f, err := fetcher.New(config.Repository.URL, config.Cache.RootDirectory)
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.New(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case config.Repository.Tag != "":
		err = repo.PinTag(ctx, config.Repository.Tag)
	case config.Repository.Revision != 0:
		err = repo.PinRevision(ctx, config.Repository.Revision)
	}
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	return repo, f, nil
}
