// Package config loads hxnav runtime configuration.
//
// Values come from built-in defaults, an optional config file (any format
// viper reads: YAML, TOML, JSON) and HXNAV_* environment variables, in
// increasing priority. Nested keys map to environment variables with
// underscores: transition.css is HXNAV_TRANSITION_CSS.
//
// The decoded configuration is validated against a CUE schema before it is
// returned, so an invalid log level or a CSS transition without classes
// fails at load time rather than at the first navigation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

// Transition configures the fade played around a navigation.
type Transition struct {
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	CSS           bool          `mapstructure:"css"`
	InClass       string        `mapstructure:"in_class"`
	OutClass      string        `mapstructure:"out_class"`
}

// Store configures the global and page stores.
type Store struct {
	CreateOnLoad bool `mapstructure:"create_on_load"`
	RefreshOnSet bool `mapstructure:"refresh_on_set"`
}

// Script configures page script execution.
type Script struct {
	MaxSteps uint64 `mapstructure:"max_steps"`
}

// Storage configures the persisted storage database.
type Storage struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
	Key      string `mapstructure:"key"`
}

// Log configures logging.
type Log struct {
	Level   string `mapstructure:"level"`
	Journal bool   `mapstructure:"journal"`
}

// Config holds all runtime configuration.
type Config struct {
	Mount           string     `mapstructure:"mount"`
	PlayTransitions bool       `mapstructure:"play_transitions"`
	CaptureHistory  bool       `mapstructure:"capture_history"`
	Transition      Transition `mapstructure:"transition"`
	Store           Store      `mapstructure:"store"`
	Script          Script     `mapstructure:"script"`
	Storage         Storage    `mapstructure:"storage"`
	Log             Log        `mapstructure:"log"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

const schema = `
mount:            string & !=""
play_transitions: bool
capture_history:  bool
transition: close({
	frame_interval: int & >=0
	css:            bool
	in_class:       string
	out_class:      string
	if css {
		in_class:  !=""
		out_class: !=""
	}
})
store: close({
	create_on_load: bool
	refresh_on_set: bool
})
script: close({
	max_steps: int & >=0
})
storage: close({
	path:      string
	in_memory: bool
	key:       string
	if !in_memory {
		path: !=""
	}
})
log: close({
	level:   "debug" | "info" | "warn" | "error"
	journal: bool
})
`

func setDefaults(v *viper.Viper) {
	v.SetDefault("mount", "body")
	v.SetDefault("play_transitions", true)
	v.SetDefault("capture_history", false)
	v.SetDefault("transition.frame_interval", 16*time.Millisecond)
	v.SetDefault("transition.css", false)
	v.SetDefault("transition.in_class", "")
	v.SetDefault("transition.out_class", "")
	v.SetDefault("store.create_on_load", true)
	v.SetDefault("store.refresh_on_set", true)
	v.SetDefault("script.max_steps", 1_000_000)
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.in_memory", true)
	v.SetDefault("storage.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.journal", false)
}

// Default returns the built-in configuration, ignoring the environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads configuration from the file at path (skipped when empty) and
// the environment, over built-in defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HXNAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the configuration schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()
	s := ctx.CompileString("close({" + schema + "})")
	if err := s.Err(); err != nil {
		return fmt.Errorf("config: schema: %w", err)
	}
	value := ctx.Encode(toMap(cfg))
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func toMap(cfg Config) map[string]any {
	return map[string]any{
		"mount":            cfg.Mount,
		"play_transitions": cfg.PlayTransitions,
		"capture_history":  cfg.CaptureHistory,
		"transition": map[string]any{
			"frame_interval": int64(cfg.Transition.FrameInterval),
			"css":            cfg.Transition.CSS,
			"in_class":       cfg.Transition.InClass,
			"out_class":      cfg.Transition.OutClass,
		},
		"store": map[string]any{
			"create_on_load": cfg.Store.CreateOnLoad,
			"refresh_on_set": cfg.Store.RefreshOnSet,
		},
		"script": map[string]any{
			"max_steps": cfg.Script.MaxSteps,
		},
		"storage": map[string]any{
			"path":      cfg.Storage.Path,
			"in_memory": cfg.Storage.InMemory,
			"key":       cfg.Storage.Key,
		},
		"log": map[string]any{
			"level":   cfg.Log.Level,
			"journal": cfg.Log.Journal,
		},
	}
}
