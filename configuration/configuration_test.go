package configuration

import (
	"bytes"
	"testing"
	"time"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner
func Test(t *testing.T) { TestingT(t) }

type ConfigSuite struct{}

var _ = Suite(new(ConfigSuite))

var configYaml = `
log:
  level: debug
  formatter: json
  fields:
    environment: test
cache:
  rootdirectory: /tmp/cvmfs-cache
repository:
  url: http://cvmfs-stratum-one.example.org/cvmfs/sw.example.org
  tag: stable
  refreshinterval: 4m
`

func (s *ConfigSuite) TestParse(c *C) {
	config, err := Parse(bytes.NewReader([]byte(configYaml)))
	c.Assert(err, IsNil)

	c.Check(config.Log.Level, Equals, "debug")
	c.Check(config.Log.Formatter, Equals, "json")
	c.Check(config.Log.Fields["environment"], Equals, "test")
	c.Check(config.Cache.RootDirectory, Equals, "/tmp/cvmfs-cache")
	c.Check(config.Repository.URL, Equals, "http://cvmfs-stratum-one.example.org/cvmfs/sw.example.org")
	c.Check(config.Repository.Tag, Equals, "stable")
	c.Check(config.Repository.RefreshInterval, Equals, 4*time.Minute)
}

func (s *ConfigSuite) TestParseDefaults(c *C) {
	config, err := Parse(bytes.NewReader([]byte("repository:\n  url: /srv/cvmfs/sw.example.org\n")))
	c.Assert(err, IsNil)

	c.Check(config.Log.Level, Equals, "info")
	c.Check(config.Log.Formatter, Equals, "text")
	c.Check(config.Cache.RootDirectory, Equals, defaultCacheDirectory)
	c.Check(config.Repository.Revision, Equals, uint32(0))
}

func (s *ConfigSuite) TestParseRejectsMissingURL(c *C) {
	_, err := Parse(bytes.NewReader([]byte("log:\n  level: info\n")))
	c.Assert(err, NotNil)
}

func (s *ConfigSuite) TestParseRejectsTagAndRevision(c *C) {
	_, err := Parse(bytes.NewReader([]byte(
		"repository:\n  url: /srv/x\n  tag: stable\n  revision: 4\n")))
	c.Assert(err, NotNil)
}

func (s *ConfigSuite) TestParseRejectsUnknownKeys(c *C) {
	_, err := Parse(bytes.NewReader([]byte("repository:\n  url: /srv/x\nstorage:\n  s3: {}\n")))
	c.Assert(err, NotNil)
}

func (s *ConfigSuite) TestParseRejectsBadLevel(c *C) {
	_, err := Parse(bytes.NewReader([]byte("log:\n  level: loud\nrepository:\n  url: /srv/x\n")))
	c.Assert(err, NotNil)
}
