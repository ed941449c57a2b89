package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Dicklesworthstone/dwatch/internal/styles"
)

// EnvPrefix prefixes every environment override, e.g. DWATCH_INTERVAL.
const EnvPrefix = "DWATCH"

// Config carries runtime options for dwatch.
type Config struct {
	Interval         time.Duration
	RunFor           time.Duration
	NoBanner         bool
	MultipleCommands bool
	Style            string
	Timeout          time.Duration
	Shell            string
	DataFile         string
	StylesFile       string
	NoColor          bool
	Verbose          bool
	Commands         []string
}

func Default() Config {
	return Config{
		Interval: time.Second,
		Style:    "default",
		Shell:    "sh",
	}
}

// BindFlags registers the command line flags on fs with their defaults.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Float64P("interval", "i", d.Interval.Seconds(), "poll interval in seconds")
	fs.Float64P("seconds", "s", 0, "exit after this many seconds (0 runs forever)")
	fs.BoolP("no-banner", "n", false, "do not print the banner line")
	fs.BoolP("multiple-commands", "m", false, "treat every argument as a separate command")
	fs.String("style", d.Style, "initial style: "+styles.Describe())
	fs.Float64P("timeout", "t", 0, "per-command timeout in seconds (defaults to the interval)")
	fs.String("shell", d.Shell, "shell used to run commands with -c")
	fs.StringP("data", "d", "", "append per-pass rates to this file")
	fs.String("styles-file", "", "style persistence file (default ~/.config/dwatch/styles.json)")
	fs.Bool("no-color", false, "disable colors and styling")
	fs.BoolP("verbose", "v", false, "log debug detail to stderr")
	fs.StringP("config", "c", "", "YAML config file (default ~/.config/dwatch/config.yaml)")
}

// DefaultConfigPath returns ~/.config/dwatch/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dwatch", "config.yaml"), nil
}

// Load layers defaults, the YAML config file, DWATCH_* environment variables
// and the flags set on fs, in increasing priority. args are the positional
// command arguments.
func Load(fs *pflag.FlagSet, args []string) (Config, error) {
	d := Default()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("interval", d.Interval.Seconds())
	v.SetDefault("seconds", 0.0)
	v.SetDefault("no-banner", false)
	v.SetDefault("multiple-commands", false)
	v.SetDefault("style", d.Style)
	v.SetDefault("timeout", 0.0)
	v.SetDefault("shell", d.Shell)
	v.SetDefault("data", "")
	v.SetDefault("styles-file", "")
	v.SetDefault("no-color", false)
	v.SetDefault("verbose", false)

	path, explicit := "", false
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			path, explicit = f.Value.String(), true
		}
	}
	if path == "" {
		if p, err := DefaultConfigPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if !missing || explicit {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	if fs != nil {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" {
				return
			}
			_ = v.BindPFlag(f.Name, f)
		})
	}

	cfg := Config{
		Interval:         seconds(v.GetFloat64("interval")),
		RunFor:           seconds(v.GetFloat64("seconds")),
		NoBanner:         v.GetBool("no-banner"),
		MultipleCommands: v.GetBool("multiple-commands"),
		Style:            strings.TrimSpace(v.GetString("style")),
		Timeout:          seconds(v.GetFloat64("timeout")),
		Shell:            strings.TrimSpace(v.GetString("shell")),
		DataFile:         v.GetString("data"),
		StylesFile:       v.GetString("styles-file"),
		NoColor:          v.GetBool("no-color"),
		Verbose:          v.GetBool("verbose"),
	}
	cfg.Commands = Commands(args, cfg.MultipleCommands)
	if cfg.Timeout == 0 {
		cfg.Timeout = cfg.Interval
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option values. An empty command list is not an error.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.RunFor < 0 {
		return fmt.Errorf("seconds must not be negative, got %s", c.RunFor)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if _, ok := styles.Index(c.Style); !ok {
		return fmt.Errorf("unknown style %q (available: %s)", c.Style, styles.Describe())
	}
	if c.Shell == "" {
		return errors.New("shell must not be empty")
	}
	return nil
}

// Commands turns positional arguments into the commands to run. Unless
// multiple is set all arguments form a single command.
func Commands(args []string, multiple bool) []string {
	if len(args) == 0 {
		return nil
	}
	if multiple {
		return append([]string(nil), args...)
	}
	return []string{strings.Join(args, " ")}
}

func seconds(v float64) time.Duration {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	return time.Duration(v * float64(time.Second))
}
