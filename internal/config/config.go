package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calwire/go-caldav/caldav"
)

// Config is the command-line client configuration.
type Config struct {
	Endpoint    string `yaml:"endpoint"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	// Calendar is the default calendar path.
	Calendar string      `yaml:"calendar,omitempty"`
	Dialect  string      `yaml:"dialect,omitempty"`
	Cache    CacheConfig `yaml:"cache"`
}

// CacheConfig configures the calendar object cache
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir selects the encrypted on-disk cache. If empty, objects are cached
	// in memory.
	Dir  string        `yaml:"dir,omitempty"`
	Size int           `yaml:"size,omitempty"`
	TTL  time.Duration `yaml:"ttl,omitempty"`
	// Identity is the path to the age identity used to encrypt the on-disk
	// cache.
	Identity string `yaml:"identity,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (cfg *Config) setDefaults() {
	if cfg.Dialect == "" {
		cfg.Dialect = "default"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.Dir != "" && cfg.Cache.Identity == "" {
		if path, err := GetIdentityPath(); err == nil {
			cfg.Cache.Identity = path
		}
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// Load loads configuration from path. If path is empty, the default path is
// used and a missing file yields the default configuration.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}

	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ResolvePassword returns the configured password, reading it from the
// environment if PasswordEnv is set.
func (cfg *Config) ResolvePassword() string {
	if cfg.Password != "" || cfg.PasswordEnv == "" {
		return cfg.Password
	}
	return os.Getenv(cfg.PasswordEnv)
}

// Validate checks that the configuration can be used to connect to a server.
func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("missing endpoint")
	}
	if _, err := caldav.DialectByName(cfg.Dialect); err != nil {
		return err
	}
	if cfg.Cache.Size < 0 {
		return fmt.Errorf("invalid cache size %v", cfg.Cache.Size)
	}
	if cfg.Cache.Enabled && cfg.Cache.Dir != "" && cfg.Cache.Identity == "" {
		return fmt.Errorf("on-disk cache requires an identity")
	}
	return nil
}
