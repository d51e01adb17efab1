package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("log:\n  level: debug\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Log.Level != "debug" {
		t.Fatalf("level = %q", c.Log.Level)
	}
	if c.Scratch.Driver != DriverMemory || c.GCPCount != 10 || c.Resample != "average" {
		t.Fatalf("defaults not applied: %+v", c)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geovrt.yaml")
	body := "scratch:\n  driver: fs\ncache_size: 16\nmetadata_encoding: gbk\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Scratch.Driver != DriverFS || c.Scratch.Dir == "" {
		t.Fatalf("fs driver not configured: %+v", c.Scratch)
	}
	if c.CacheSize != 16 || c.MetadataEncoding != "gbk" {
		t.Fatalf("unexpected config %+v", c)
	}
}

func TestValidate(t *testing.T) {
	cases := []string{
		"scratch:\n  driver: tape\n",
		"scratch:\n  driver: s3\n",
		"gcp_count: 0\n",
		"cache_size: -1\n",
	}
	for _, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Errorf("expected error for %q", body)
		}
	}
}
