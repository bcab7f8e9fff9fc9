// cmd/navlog/config.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hdsdk/navlog/aviation"
	"github.com/hdsdk/navlog/fuel"
	"github.com/hdsdk/navlog/log"
	"github.com/hdsdk/navlog/pipeline"
	"github.com/hdsdk/navlog/util"
)

const CurrentConfigVersion = 1

type Config struct {
	Version int

	// NavDBSource is a CIFP location: "faa", a URL, gs:// or s3:// object,
	// or a local file.
	NavDBSource string
	CacheDir    string
	NoCache     bool
	CacheMaxAge Duration

	LogLevel string
	LogDir   string

	WithSID bool
	// Tanks overrides the 787-10 tank layout.
	Tanks *fuel.TankGeometry `json:",omitempty"`

	LookupCacheSize int
	LookupCacheTTL  Duration
	ApplyTimeout    Duration
}

// Duration is a time.Duration that is written to JSON as a string such
// as "90s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Allow plain nanosecond counts as well.
		var n int64
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func getDefaultConfig() *Config {
	return &Config{
		Version:         CurrentConfigVersion,
		NavDBSource:     aviation.CIFPSourceFAA,
		CacheMaxAge:     Duration(aviation.DefaultCacheMaxAge),
		LogLevel:        "info",
		WithSID:         true,
		LookupCacheSize: 256,
		LookupCacheTTL:  Duration(10 * time.Minute),
		ApplyTimeout:    Duration(2 * time.Minute),
	}
}

func configFilePath(lg *log.Logger) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		lg.Errorf("Unable to find user config dir: %v", err)
		dir = "."
	}

	dir = filepath.Join(dir, "navlog")
	err = os.MkdirAll(dir, 0o700)
	if err != nil {
		lg.Errorf("%s: unable to make directory for config file: %v", dir, err)
	}

	return filepath.Join(dir, "config.json")
}

func (c *Config) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(c)
}

func (c *Config) Save(fn string, lg *log.Logger) error {
	lg.Infof("Saving config to: %s", fn)
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	return c.Encode(f)
}

// LoadOrMakeDefaultConfig reads the config file at fn. A missing file
// yields the defaults; fields absent from the file keep their defaults.
// If the file can't be decoded, the defaults are returned along with the
// error.
func LoadOrMakeDefaultConfig(fn string, lg *log.Logger) (*Config, error) {
	lg.Infof("Loading config from: %s", fn)

	config := getDefaultConfig()

	contents, err := os.ReadFile(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, err
	}

	if err := util.DecodeJSON(contents, config); err != nil {
		return getDefaultConfig(), fmt.Errorf("%s: %w", fn, err)
	}
	if config.Version > CurrentConfigVersion {
		lg.Warnf("%s: config version %d is newer than %d", fn, config.Version, CurrentConfigVersion)
	}
	config.Version = CurrentConfigVersion

	return config, nil
}

func (c *Config) DatabaseOptions() aviation.DatabaseOptions {
	return aviation.DatabaseOptions{
		Source:   c.NavDBSource,
		CacheDir: c.CacheDir,
		NoCache:  c.NoCache,
		MaxAge:   time.Duration(c.CacheMaxAge),
	}
}

func (c *Config) PipelineOptions(lg *log.Logger) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.WithSID = c.WithSID
	if c.Tanks != nil {
		opts.Tanks = *c.Tanks
	}
	opts.LookupCacheSize = c.LookupCacheSize
	opts.LookupCacheTTL = time.Duration(c.LookupCacheTTL)
	opts.Logger = lg
	return opts
}
