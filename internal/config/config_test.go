package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != ":8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.PollInterval != 2*time.Second || cfg.BatchSize != 500 || cfg.Keepalive != 3*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SubscriberBuffer != 256 || !cfg.Metrics || cfg.MaxRetries != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RPC["base-mainnet"] == "" || cfg.RPC["ethereum-mainnet"] == "" {
		t.Fatalf("default rpc urls missing: %v", cfg.RPC)
	}
}

func TestLoadFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "stables.yaml")
	content := []byte(`
listen: ":9090"
networks: [base-mainnet]
rpc:
  base-mainnet: "http://localhost:8545"
keepalive: 5s
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint64("batch-size", 500, "")
	if err := flags.Parse([]string{"--batch-size", "50"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Fatalf("listen = %s", cfg.Listen)
	}
	if !reflect.DeepEqual(cfg.Networks, []string{"base-mainnet"}) {
		t.Fatalf("networks = %v", cfg.Networks)
	}
	if cfg.RPC["base-mainnet"] != "http://localhost:8545" {
		t.Fatalf("rpc override missing: %v", cfg.RPC)
	}
	if cfg.Keepalive != 5*time.Second {
		t.Fatalf("keepalive = %s", cfg.Keepalive)
	}
	if cfg.BatchSize != 50 {
		t.Fatalf("batch size = %d", cfg.BatchSize)
	}
}

func TestLoadEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STABLES_RPC", "base-mainnet=http://a, ethereum-mainnet = http://b")
	t.Setenv("STABLES_POLL_INTERVAL", "250ms")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPC["base-mainnet"] != "http://a" || cfg.RPC["ethereum-mainnet"] != "http://b" {
		t.Fatalf("rpc from env: %v", cfg.RPC)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll interval = %s", cfg.PollInterval)
	}
}

func TestValidate(t *testing.T) {
	known := []string{"base-mainnet", "ethereum-mainnet"}
	base := Config{
		Listen:           ":8080",
		RPC:              map[string]string{"base-mainnet": "http://a"},
		PollInterval:     time.Second,
		BatchSize:        10,
		RetryBackoff:     time.Millisecond,
		Keepalive:        time.Second,
		SubscriberBuffer: 1,
	}

	if err := base.Validate(known); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if got := base.EnabledNetworks(known); !reflect.DeepEqual(got, []string{"base-mainnet"}) {
		t.Fatalf("enabled = %v", got)
	}

	cases := map[string]func(c *Config){
		"unknown network":   func(c *Config) { c.Networks = []string{"solana"} },
		"missing rpc":       func(c *Config) { c.Networks = []string{"ethereum-mainnet"} },
		"no rpc at all":     func(c *Config) { c.RPC = nil },
		"zero poll":         func(c *Config) { c.PollInterval = 0 },
		"zero batch":        func(c *Config) { c.BatchSize = 0 },
		"negative retries":  func(c *Config) { c.MaxRetries = -1 },
		"zero keepalive":    func(c *Config) { c.Keepalive = 0 },
		"zero buffer":       func(c *Config) { c.SubscriberBuffer = 0 },
		"empty listen addr": func(c *Config) { c.Listen = "" },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(known); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
