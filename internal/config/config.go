// Package config loads the offsync configuration file.
//
// Values come from, in increasing priority: built-in defaults, the YAML
// file, and OFFSYNC_* environment variables (store.path is
// OFFSYNC_STORE_PATH).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/lauraedgell33/European-digital-logistics-sub003/internal/mlog"
)

const envPrefix = "OFFSYNC"

type Config struct {
	Store        StoreConfig        `yaml:"store"`
	Replay       ReplayConfig       `yaml:"replay"`
	Sweeper      SweeperConfig      `yaml:"sweeper"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Gate         GateConfig         `yaml:"gate"`
	Wake         WakeConfig         `yaml:"wake"`
	API          APIConfig          `yaml:"api"`
	Log          mlog.LogConfig     `yaml:"log"`
}

type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type ReplayConfig struct {
	MaxRetries     int           `yaml:"max_retries" validate:"min=1"`
	Interval       time.Duration `yaml:"interval" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type ConnectivityConfig struct {
	// ProbeURL empty disables probing; the device is then assumed online.
	ProbeURL string        `yaml:"probe_url" validate:"omitempty,url"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

type GateConfig struct {
	// IdempotencyHeader empty disables key stamping.
	IdempotencyHeader string        `yaml:"idempotency_header"`
	DefaultSyncTag    string        `yaml:"default_sync_tag" validate:"required"`
	DefaultCacheTTL   time.Duration `yaml:"default_cache_ttl" validate:"gt=0"`
}

type WakeConfig struct {
	// RegisterTimeout bounds one registration call on the enqueue path.
	RegisterTimeout time.Duration `yaml:"register_timeout" validate:"gt=0"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the Redis wake facility. It is disabled when Addr
// is empty.
type RedisConfig struct {
	Addr        string        `yaml:"addr" validate:"omitempty,hostname_port"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db" validate:"min=0"`
	Key         string        `yaml:"key"`
	Channel     string        `yaml:"channel"`
	DialTimeout time.Duration `yaml:"dial_timeout" validate:"gt=0"`
	// MaxRetries is passed to go-redis; -1 disables retries.
	MaxRetries int `yaml:"max_retries" validate:"min=-1"`
}

type APIConfig struct {
	// Listen empty disables the HTTP API.
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

var defaults = map[string]any{
	"store.path":              "offsync.db",
	"replay.max_retries":      5,
	"replay.interval":         "30s",
	"replay.request_timeout":  "15s",
	"sweeper.interval":        "1m",
	"connectivity.probe_url":  "",
	"connectivity.interval":   "10s",
	"connectivity.timeout":    "3s",
	"gate.idempotency_header": "Idempotency-Key",
	"gate.default_sync_tag":   "offline-sync",
	"gate.default_cache_ttl":  "5m",
	"wake.register_timeout":   "1s",
	"wake.redis.addr":         "",
	"wake.redis.password":     "",
	"wake.redis.db":           0,
	"wake.redis.key":          "offsync:wake:tags",
	"wake.redis.channel":      "offsync:wake",
	"wake.redis.dial_timeout": "1s",
	"wake.redis.max_retries":  1,
	"api.listen":              "127.0.0.1:9477",
	"log.level":               "info",
	"log.production":          false,
	"log.file":                "",
}

var validate = validator.New()

// Load reads the config from filePath. If filePath is empty, offsync.yaml is
// searched for in the working directory and defaults are used when it does
// not exist. Load returns the file actually read, or "" when none was.
func Load(filePath string) (*Config, string, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(filePath) > 0 {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("offsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if len(filePath) > 0 || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}

	decoderOpt := func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
		cfg.TagName = "yaml"
		cfg.WeaklyTypedInput = true
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
