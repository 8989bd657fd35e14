// Package config loads runtime settings from flags, COMPASS_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable, e.g. COMPASS_DATA_DIR.
const EnvPrefix = "COMPASS"

// Keys.
const (
	KeyConfig       = "config"
	KeyDataDir      = "data-dir"
	KeyListen       = "listen"
	KeyBaseURL      = "base-url"
	KeyLogLevel     = "log-level"
	KeyLogFormat    = "log-format"
	KeyPingInterval = "ping-interval"
	KeyPassphrase   = "passphrase"
	KeyUseKeyring   = "use-keyring"
	KeyMaxBodyBytes = "max-body-bytes"
	KeyCORSOrigins  = "cors-origins"
)

// Defaults.
const (
	DefaultListen       = ":8080"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultPingInterval = 30 * time.Second
	DefaultMaxBodyBytes = 1 << 20
)

// DefaultDataDir is where the database lives unless data-dir is set.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "compass")
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDir      string        `validate:"required"`
	Listen       string        `validate:"required"`
	BaseURL      string        `validate:"omitempty,uri"`
	LogLevel     string        `validate:"required"`
	LogFormat    string        `validate:"oneof=json console"`
	PingInterval time.Duration `validate:"gt=0"`
	Passphrase   string
	UseKeyring   bool
	MaxBodyBytes int64 `validate:"gt=0"`
	CORSOrigins  []string
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDataDir, DefaultDataDir())
	v.SetDefault(KeyListen, DefaultListen)
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyPingInterval, DefaultPingInterval)
	v.SetDefault(KeyPassphrase, "")
	v.SetDefault(KeyUseKeyring, true)
	v.SetDefault(KeyMaxBodyBytes, DefaultMaxBodyBytes)
	v.SetDefault(KeyCORSOrigins, []string{})
	return v
}

// Bind binds every flag in flags whose name is a key.
func Bind(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(f.Name, f)
	})
	return err
}

// Load reads the config file named by the "config" key, if any, and returns
// the validated configuration.
func Load(v *viper.Viper) (*Config, error) {
	if path := strings.TrimSpace(v.GetString(KeyConfig)); path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, fmt.Errorf("config: expand %q: %w", path, err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", expanded, err)
		}
	}

	dataDir, err := expandPath(strings.TrimSpace(v.GetString(KeyDataDir)))
	if err != nil {
		return nil, fmt.Errorf("config: expand data-dir: %w", err)
	}

	cfg := &Config{
		DataDir:      dataDir,
		Listen:       strings.TrimSpace(v.GetString(KeyListen)),
		BaseURL:      strings.TrimRight(strings.TrimSpace(v.GetString(KeyBaseURL)), "/"),
		LogLevel:     strings.TrimSpace(v.GetString(KeyLogLevel)),
		LogFormat:    strings.TrimSpace(v.GetString(KeyLogFormat)),
		PingInterval: v.GetDuration(KeyPingInterval),
		Passphrase:   v.GetString(KeyPassphrase),
		UseKeyring:   v.GetBool(KeyUseKeyring),
		MaxBodyBytes: v.GetInt64(KeyMaxBodyBytes),
		CORSOrigins:  v.GetStringSlice(KeyCORSOrigins),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config: invalid %s (%s=%v)", e.Field(), e.Tag(), e.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: invalid LogLevel: %w", err)
	}
	return nil
}

func expandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if len(p) == 1 {
		return home, nil
	}
	if p[1] == '/' || p[1] == '\\' {
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}
