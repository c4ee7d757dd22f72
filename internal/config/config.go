// Package config loads dashboard and stub-server settings from defaults, an
// optional callboard.yaml, CALLBOARD_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CALLBOARD"

type Config struct {
	APIBaseURL       string        `mapstructure:"api_base_url"`
	FetchLimit       int           `mapstructure:"fetch_limit"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	NoticeTTL        time.Duration `mapstructure:"notice_ttl"`
	OptimisticInsert bool          `mapstructure:"optimistic_insert"`
	AltScreen        bool          `mapstructure:"alt_screen"`
	LogFile          string        `mapstructure:"log_file"`
	LogLevel         string        `mapstructure:"log_level"`
	Stub             StubConfig    `mapstructure:"stub"`
}

type StubConfig struct {
	Addr   string `mapstructure:"addr"`
	DBPath string `mapstructure:"db_path"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"api":               "api_base_url",
	"limit":             "fetch_limit",
	"timeout":           "request_timeout",
	"log-file":          "log_file",
	"log-level":         "log_level",
	"optimistic-insert": "optimistic_insert",
	"addr":              "stub.addr",
	"db":                "stub.db_path",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "http://localhost:5005/api/v1")
	v.SetDefault("fetch_limit", 20)
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("notice_ttl", 5*time.Second)
	v.SetDefault("optimistic_insert", true)
	v.SetDefault("alt_screen", true)
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("stub.addr", "127.0.0.1:5005")
	v.SetDefault("stub.db_path", "callboard-stub.sqlite")
}

// Load resolves the configuration. configFile, when set, must exist;
// otherwise callboard.yaml is looked up in the usual places and skipped
// if absent. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("callboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "callboard"))
		}
		v.AddConfigPath("/etc/callboard")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url %q is not a valid URL", c.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_base_url %q must use http or https", c.APIBaseURL)
	}
	if c.FetchLimit <= 0 {
		return fmt.Errorf("fetch_limit must be positive, got %d", c.FetchLimit)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.NoticeTTL <= 0 {
		return fmt.Errorf("notice_ttl must be positive, got %s", c.NoticeTTL)
	}
	return nil
}
