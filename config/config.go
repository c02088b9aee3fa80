package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/cdn"
)

/* ---------------------------------  Config Struct -------------------------------- */

// Config is the top level struct that contains configuration details parsed
// from a YAML config file: the pool and fetcher tunables, the directory
// service location, and the penalty store backend.
type (
	Config struct {
		Logger       LoggerConfig       `yaml:"logger"`
		Pool         PoolConfig         `yaml:"pool_config"`
		Fetch        FetchConfig        `yaml:"fetch_config"`
		Directory    DirectoryConfig    `yaml:"directory_config"`
		PenaltyStore PenaltyStoreConfig `yaml:"penalty_store_config"`
	}

	PoolConfig struct {
		Floor             int           `yaml:"floor"`
		MaxConcurrent     int           `yaml:"max_concurrent"`
		AcquireTimeout    time.Duration `yaml:"acquire_timeout"`
		ReplenishInterval time.Duration `yaml:"replenish_interval"`
	}

	FetchConfig struct {
		MaxAttempts int           `yaml:"max_attempts"`
		Deadline    time.Duration `yaml:"deadline"`
	}

	DirectoryConfig struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	}

	// PenaltyStoreConfig selects the penalty persistence backend. At most
	// one of FilePath and PostgresConnectionString may be set; when neither
	// is set, penalties are kept in memory only.
	PenaltyStoreConfig struct {
		FilePath                 string `yaml:"file_path"`
		PostgresConnectionString string `yaml:"postgres_connection_string"`
	}
)

/* ---------------------------------  Defaults -------------------------------- */

const (
	defaultDirectoryTimeout = 10 * time.Second
)

// LoadConfigFromYAML reads a YAML configuration file from the specified path
// and unmarshals its content into a Config instance.
func LoadConfigFromYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}

	// hydrate required fields and set defaults for optional fields
	config.hydrateDefaults()

	return config, config.validate()
}

/* --------------------------------- Config Methods -------------------------------- */

// PoolConfig converts the YAML pool section into the cdn package's pool
// config. Fields left at zero pick up the cdn package defaults.
func (c Config) PoolConfig() cdn.PoolConfig {
	return cdn.PoolConfig{
		Floor:             c.Pool.Floor,
		MaxConcurrent:     c.Pool.MaxConcurrent,
		AcquireTimeout:    c.Pool.AcquireTimeout,
		ReplenishInterval: c.Pool.ReplenishInterval,
	}
}

// FetcherConfig converts the YAML fetch section into the cdn package's
// fetcher config.
func (c Config) FetcherConfig() cdn.FetcherConfig {
	return cdn.FetcherConfig{
		MaxAttempts: c.Fetch.MaxAttempts,
		Deadline:    c.Fetch.Deadline,
	}
}

/* --------------------------------- Private Helpers -------------------------------- */

func (c *Config) hydrateDefaults() {
	c.Logger.hydrateLoggerDefaults()
	if c.Directory.Timeout <= 0 {
		c.Directory.Timeout = defaultDirectoryTimeout
	}
}

func (c Config) validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}

	if c.Directory.URL == "" {
		return errors.New("directory_config.url is required")
	}

	if c.Pool.Floor < 0 {
		return fmt.Errorf("pool_config.floor must not be negative: %d", c.Pool.Floor)
	}
	if c.Pool.MaxConcurrent < 0 {
		return fmt.Errorf("pool_config.max_concurrent must not be negative: %d", c.Pool.MaxConcurrent)
	}
	if c.Fetch.MaxAttempts < 0 {
		return fmt.Errorf("fetch_config.max_attempts must not be negative: %d", c.Fetch.MaxAttempts)
	}

	if c.PenaltyStore.FilePath != "" && c.PenaltyStore.PostgresConnectionString != "" {
		return errors.New("penalty_store_config: file_path and postgres_connection_string are mutually exclusive")
	}

	return nil
}
