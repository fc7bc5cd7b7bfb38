// Package configuration defines the client configuration, intended to be
// provided by a yaml file.
package configuration

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration collects everything needed to mount a repository.
//
// Values come only from the yaml document; environment variables are not
// consulted.
type Configuration struct {
	// Log supports setting various parameters related to the logging
	// subsystem.
	Log Log `yaml:"log"`

	// Cache configures the local object store.
	Cache Cache `yaml:"cache"`

	// Repository selects the repository and, optionally, the revision to
	// mount.
	Repository Repository `yaml:"repository"`
}

// Log supports setting various parameters related to the logging
// subsystem.
type Log struct {
	// Level is the granularity at which client operations are logged.
	Level string `yaml:"level,omitempty"`

	// Formatter overrides the default formatter with another. Options
	// include "text" and "json".
	Formatter string `yaml:"formatter,omitempty"`

	// Fields allows users to specify static string fields to include in
	// the logger context.
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Cache configures the local object store.
type Cache struct {
	// RootDirectory is the directory the content-addressed cache lives
	// in.
	RootDirectory string `yaml:"rootdirectory"`
}

// Repository selects the repository to mount.
type Repository struct {
	// URL is the repository source: an HTTP(S) prefix or a local
	// directory.
	URL string `yaml:"url"`

	// Tag pins the mount to a named tag instead of the published
	// revision. Mutually exclusive with Revision.
	Tag string `yaml:"tag,omitempty"`

	// Revision pins the mount to a revision number. Zero means the
	// published revision.
	Revision uint32 `yaml:"revision,omitempty"`

	// RefreshInterval is parsed and kept on the configuration; nothing in
	// this module reads it, and no periodic remount check is performed.
	RefreshInterval time.Duration `yaml:"refreshinterval,omitempty"`
}

const defaultCacheDirectory = "/var/cache/cvmfs"

// Parse parses an input configuration yaml document and returns a
// Configuration with defaults applied.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	config := &Configuration{
		Log:   Log{Level: "info", Formatter: "text"},
		Cache: Cache{RootDirectory: defaultCacheDirectory},
	}
	if err := yaml.UnmarshalStrict(in, config); err != nil {
		return nil, err
	}

	if config.Repository.URL == "" {
		return nil, fmt.Errorf("configuration: repository url is required")
	}
	if config.Repository.Tag != "" && config.Repository.Revision != 0 {
		return nil, fmt.Errorf("configuration: tag and revision are mutually exclusive")
	}
	switch config.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("configuration: invalid log level %q", config.Log.Level)
	}

	return config, nil
}
