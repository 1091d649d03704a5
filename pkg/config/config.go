// Package config loads Splice settings.
//
// Settings start from Default, are overlaid by an optional YAML file and then
// by SPLICE_* environment variables, and are validated last.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/chazu/splice/pkg/codegen"
	"github.com/chazu/splice/pkg/engine"
)

// Config is the top-level settings struct.
type Config struct {
	Codegen CodegenConfig `json:"codegen" yaml:"codegen"`
	Script  ScriptConfig  `json:"script" yaml:"script"`
	Watch   WatchConfig   `json:"watch" yaml:"watch"`
}

// CodegenConfig shapes generated source.
type CodegenConfig struct {
	// Indent prefixes every body statement. Empty keeps statements flush left.
	Indent string `json:"indent" yaml:"indent" validate:"max=16"`

	// Preamble lines are written before the first function.
	Preamble []string `json:"preamble,omitempty" yaml:"preamble,omitempty"`
}

// ScriptConfig limits script evaluation.
type ScriptConfig struct {
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0,lte=5m"`
}

// WatchConfig tunes `splice watch`.
type WatchConfig struct {
	// Debounce coalesces bursts of file events into one regeneration.
	Debounce time.Duration `json:"debounce" yaml:"debounce" validate:"gte=0,lte=1m"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Script: ScriptConfig{Timeout: engine.EvalTimeout},
		Watch:  WatchConfig{Debounce: 200 * time.Millisecond},
	}
}

var validate = validator.New()

// Validate checks value ranges.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Load builds a Config from defaults, the file at path and the environment.
// An empty path or a missing file means defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, errors.Wrap(err, "load config file")
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return cfg, errors.Wrap(err, "load config env")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("SPLICE_INDENT"); ok {
		cfg.Codegen.Indent = v
	}

	if v := os.Getenv("SPLICE_PREAMBLE"); v != "" {
		cfg.Codegen.Preamble = strings.Split(v, "\n")
	}

	if v := os.Getenv("SPLICE_SCRIPT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "SPLICE_SCRIPT_TIMEOUT")
		}
		cfg.Script.Timeout = d
	}

	if v := os.Getenv("SPLICE_WATCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "SPLICE_WATCH_DEBOUNCE")
		}
		cfg.Watch.Debounce = d
	}

	return nil
}

// CodegenOptions converts the codegen settings into generator options.
func (c Config) CodegenOptions() []codegen.Option {
	opts := []codegen.Option{codegen.WithIndent(c.Codegen.Indent)}
	if len(c.Codegen.Preamble) != 0 {
		opts = append(opts, codegen.WithPreamble(c.Codegen.Preamble...))
	}
	return opts
}

// EngineOptions converts the script settings into engine options.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{engine.WithTimeout(c.Script.Timeout)}
}
