package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultRPC holds public endpoints for the built-in networks.
var DefaultRPC = map[string]string{
	"base-mainnet":     "https://mainnet.base.org",
	"ethereum-mainnet": "https://ethereum-rpc.publicnode.com",
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Listen           string
	LogLevel         string
	Registry         string
	RegistryDSN      string
	Networks         []string
	RPC              map[string]string
	PollInterval     time.Duration
	BatchSize        uint64
	MaxRetries       int
	RetryBackoff     time.Duration
	Keepalive        time.Duration
	SubscriberBuffer int
	Metrics          bool
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STABLES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("batch-size", uint64(500))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("keepalive", 3*time.Second)
	v.SetDefault("subscriber-buffer", 256)
	v.SetDefault("metrics", true)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	rpc := make(map[string]string, len(DefaultRPC))
	for id, url := range DefaultRPC {
		rpc[id] = url
	}
	for id, url := range getStringMap(v, "rpc") {
		rpc[id] = url
	}

	cfg := Config{
		Listen:           v.GetString("listen"),
		LogLevel:         v.GetString("log-level"),
		Registry:         v.GetString("registry"),
		RegistryDSN:      v.GetString("registry-dsn"),
		Networks:         getStringSlice(v, "networks"),
		RPC:              rpc,
		PollInterval:     v.GetDuration("poll-interval"),
		BatchSize:        v.GetUint64("batch-size"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		Keepalive:        v.GetDuration("keepalive"),
		SubscriberBuffer: v.GetInt("subscriber-buffer"),
		Metrics:          v.GetBool("metrics"),
	}

	return cfg, nil
}

// EnabledNetworks resolves the networks to stream. An empty Networks list means
// every known network that has an RPC URL.
func (c Config) EnabledNetworks(known []string) []string {
	if len(c.Networks) > 0 {
		return c.Networks
	}
	out := make([]string, 0, len(known))
	for _, id := range known {
		if c.RPC[id] != "" {
			out = append(out, id)
		}
	}
	return out
}

// Validate checks the settings that serve depends on. known lists the registry
// network ids.
func (c Config) Validate(known []string) error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("retry-backoff must be positive")
	}
	if c.Keepalive <= 0 {
		return fmt.Errorf("keepalive must be positive")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber-buffer must be positive")
	}

	registered := make(map[string]struct{}, len(known))
	for _, id := range known {
		registered[id] = struct{}{}
	}

	enabled := c.EnabledNetworks(known)
	if len(enabled) == 0 {
		return fmt.Errorf("no networks enabled")
	}
	for _, id := range enabled {
		if _, ok := registered[id]; !ok {
			return fmt.Errorf("network %s is not in the registry", id)
		}
		if c.RPC[id] == "" {
			return fmt.Errorf("network %s has no rpc url", id)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

// getStringMap reads a map from a config file table, a StringToString flag or
// an env value of the form "id=url,id=url".
func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return nil
	}

	out := make(map[string]string)
	switch typed := v.Get(key).(type) {
	case string:
		for _, pair := range splitAndClean(typed) {
			id, url, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			addPair(out, id, url)
		}
	case map[string]string:
		for id, url := range typed {
			addPair(out, id, url)
		}
	case map[string]interface{}:
		for id, url := range typed {
			addPair(out, id, fmt.Sprintf("%v", url))
		}
	}
	return out
}

func addPair(out map[string]string, id, url string) {
	id = strings.TrimSpace(id)
	url = strings.TrimSpace(url)
	if id == "" || url == "" {
		return
	}
	out[id] = url
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
