// Package config loads tab-bridge settings from defaults, a YAML file,
// TAB_BRIDGE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mj1618/tab-bridge/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. TAB_BRIDGE_HOST.
const EnvPrefix = "TAB_BRIDGE"

// Config holds application configuration.
type Config struct {
	Host     string        `mapstructure:"host"`
	Socket   string        `mapstructure:"socket"`
	Codec    string        `mapstructure:"codec"`
	Fixture  string        `mapstructure:"fixture"`
	LogLevel string        `mapstructure:"log_level"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Tmux     TmuxConfig    `mapstructure:"tmux"`
	OTEL     OTELConfig    `mapstructure:"otel"`
}

// TmuxConfig holds tmux host settings.
type TmuxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// OTELConfig holds telemetry exporter settings.
type OTELConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Headers  string `mapstructure:"headers"`
}

// flagKeys maps flag names to config keys. Flags missing from the set
// passed to Load are skipped.
var flagKeys = map[string]string{
	"host":      "host",
	"socket":    "socket",
	"codec":     "codec",
	"fixture":   "fixture",
	"log-level": "log_level",
	"timeout":   "timeout",
}

var validCodecs = []string{"json", "cbor"}

// SearchPaths returns the config files tried, in order, when neither an
// explicit path nor TAB_BRIDGE_CONFIG is given.
func SearchPaths() []string {
	paths := []string{".tab-bridge.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tab-bridge", "config.yaml"))
	}
	return paths
}

// Load builds the configuration. path names an explicit config file and
// may be empty; an explicit file that cannot be read is an error. flags may
// be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	v.SetDefault("host", "tmux")
	v.SetDefault("socket", "")
	v.SetDefault("codec", "json")
	v.SetDefault("fixture", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("timeout", "10s")
	v.SetDefault("tmux.poll_interval", "1s")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.headers", "")

	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		for _, candidate := range SearchPaths() {
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			v.SetConfigFile(candidate)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", candidate, err)
			}
			break
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports invalid settings.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if !slices.Contains(validCodecs, c.Codec) {
		errs = append(errs, fmt.Errorf("codec %q is not one of %s", c.Codec, strings.Join(validCodecs, ", ")))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Tmux.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("tmux.poll_interval must be positive, got %s", c.Tmux.PollInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
