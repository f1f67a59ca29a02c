package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/bmcpi/efiboot/internal/efivars"
	"github.com/go-logr/logr"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// EFIBOOT_EFIVARS_PATH or EFIBOOT_COMPANION_SUFFIX.
const EnvPrefix = "EFIBOOT"

var (
	OutputFormats = []string{"text", "json", "yaml"}
	LogFormats    = []string{"text", "json"}
)

type CompanionConfig struct {
	Suffix   string `yaml:"suffix"    mapstructure:"suffix"`
	ESPMount string `yaml:"esp_mount" mapstructure:"esp_mount"`
}

type Config struct {
	EfivarsPath  string          `yaml:"efivars_path"  mapstructure:"efivars_path"`
	FirmwareVars string          `yaml:"firmware_vars" mapstructure:"firmware_vars"`
	Debug        bool            `yaml:"debug"         mapstructure:"debug"`
	LogFormat    string          `yaml:"log_format"    mapstructure:"log_format"`
	Output       string          `yaml:"output"        mapstructure:"output"`
	Address      string          `yaml:"address"       mapstructure:"address"`
	Port         int             `yaml:"port"          mapstructure:"port"`
	Companion    CompanionConfig `yaml:"companion"     mapstructure:"companion"`
	Log          logr.Logger     `yaml:"-"             mapstructure:"-"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("efivars_path", efivars.DefaultRoot)
	v.SetDefault("firmware_vars", "")
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "text")
	v.SetDefault("output", "text")
	v.SetDefault("address", "127.0.0.1")
	v.SetDefault("port", 9420)
	v.SetDefault("companion.suffix", bootsource.DefaultCompanionSuffix)
	v.SetDefault("companion.esp_mount", "/boot/efi")
}

// NewConfig loads the configuration from defaults, an optional YAML file
// and EFIBOOT_* environment variables, in increasing order of precedence.
// Flags bound to v with BindPFlag win over all of them. An empty
// configFile searches /etc/efiboot and the working directory, where a
// missing file is not an error.
func NewConfig(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("/etc/efiboot/")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: unable to read config file: %w", err)
		}
	}

	for _, key := range v.AllKeys() {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey); err != nil {
			return nil, fmt.Errorf("config: unable to bind env %s: %w", envKey, err)
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	conf.Log = NewLogger(os.Stderr, conf.LogFormat, conf.Debug)
	return conf, nil
}

func (c *Config) Validate() error {
	if !slices.Contains(OutputFormats, c.Output) {
		return fmt.Errorf("config: unknown output format %q, want one of %s", c.Output, strings.Join(OutputFormats, ", "))
	}
	if !slices.Contains(LogFormats, c.LogFormat) {
		return fmt.Errorf("config: unknown log format %q, want one of %s", c.LogFormat, strings.Join(LogFormats, ", "))
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.EfivarsPath == "" && c.FirmwareVars == "" {
		return errors.New("config: one of efivars_path and firmware_vars is required")
	}
	return nil
}

// NewLogger uses the slog logr implementation. Debug enables V(1) output.
func NewLogger(w io.Writer, format string, debug bool) logr.Logger {
	// source file and function can be long. This makes the logs less readable.
	// truncate source file and function to last 3 parts for improved readability.
	customAttr := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			ss, ok := a.Value.Any().(*slog.Source)
			if !ok || ss == nil {
				return a
			}
			f := strings.Split(ss.Function, "/")
			if len(f) > 3 {
				ss.Function = filepath.Join(f[len(f)-3:]...)
			}
			p := strings.Split(ss.File, "/")
			if len(p) > 3 {
				ss.File = filepath.Join(p[len(p)-3:]...)
			}
		}
		return a
	}

	opts := &slog.HandlerOptions{AddSource: debug, ReplaceAttr: customAttr, Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}

	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return logr.FromSlogHandler(h)
}
