// Package config loads geovrt settings from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	DriverMemory = "memory"
	DriverFS     = "fs"
	DriverS3     = "s3"
)

type Log struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
}

type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"` // empty uses the default credential chain
	SecretAccessKey string `yaml:"secret_access_key"`
}

type Scratch struct {
	Driver string `yaml:"driver"`
	Dir    string `yaml:"dir"`
	S3     S3     `yaml:"s3"`
}

type Config struct {
	Log              Log      `yaml:"log"`
	Scratch          Scratch  `yaml:"scratch"`
	CacheSize        int      `yaml:"cache_size"`        // 0 disables the read cache
	GCPCount         int      `yaml:"gcp_count"`         // GCPs per axis sampled from geolocation grids
	Resample         string   `yaml:"resample"`          // default resampling for resize
	MetadataEncoding string   `yaml:"metadata_encoding"` // utf8|gbk|latin1
	Mappers          []string `yaml:"mappers,omitempty"` // optional dispatch order override
	// MOD44W water mask raster, or the directory holding MOD44W.vrt;
	// empty falls back to $MOD44WPATH
	WatermaskPath string `yaml:"watermask_path"`
}

func Default() *Config {
	return &Config{
		Log:              Log{Level: "info"},
		Scratch:          Scratch{Driver: DriverMemory},
		GCPCount:         10,
		Resample:         "average",
		MetadataEncoding: "utf8",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.Scratch.Driver {
	case DriverMemory:
	case DriverFS:
		if c.Scratch.Dir == "" {
			c.Scratch.Dir = os.TempDir()
		}
	case DriverS3:
		if c.Scratch.S3.Bucket == "" {
			return fmt.Errorf("scratch.s3.bucket required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown scratch driver %q", c.Scratch.Driver)
	}
	if c.GCPCount <= 0 {
		return fmt.Errorf("gcp_count must be positive, got %d", c.GCPCount)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	return nil
}
