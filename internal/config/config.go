// Package config loads wallhue's configuration via spf13/viper: a config
// file (TOML/YAML/JSON, whichever viper finds first), overridable by
// WALLHUE_-prefixed environment variables, per spec §6. tinct itself
// configures each plugin ad hoc (contrib/plugins/output/*/config.go, one
// struct per plugin, no shared loader); viper is adopted here instead
// because the spec calls for a single process-wide config surface, and
// viper is the config library the rest of the retrieval pack's CLI tools
// converge on (arthur404dev-heimdall-cli, JaimeStill-omarchy-theme-generator).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config mirrors every option enumerated in spec §6.
type Config struct {
	Cache        CacheConfig        `mapstructure:"cache"`
	Palette      PaletteConfig      `mapstructure:"palette"`
	Variants     []VariantConfig    `mapstructure:"variants"`
	Effects      EffectsConfig      `mapstructure:"effects"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

type CacheConfig struct {
	Root              string `mapstructure:"root"`
	MaxBytes          int64  `mapstructure:"max_bytes"`
	MaxEntries        int    `mapstructure:"max_entries"`
	LowWatermarkBytes int64  `mapstructure:"low_watermark_bytes"`
	SchemaVersion     int    `mapstructure:"schema_version"`
	LockTimeoutMS     int    `mapstructure:"lock_timeout_ms"`
}

type PaletteConfig struct {
	Backend        string            `mapstructure:"backend"`
	BackendOptions map[string]string `mapstructure:"backend_options"`
	TemplatesDir   string            `mapstructure:"templates_dir"`
	Formats        []string          `mapstructure:"formats"`
}

type EffectParamConfig struct {
	Kind         string  `mapstructure:"kind"`
	Radius       float64 `mapstructure:"radius"`
	Factor       float64 `mapstructure:"factor"`
	Strength     float64 `mapstructure:"strength"`
	Falloff      float64 `mapstructure:"falloff"`
	OverlayHex   string  `mapstructure:"overlay_hex"`
	OverlayAlpha float64 `mapstructure:"overlay_alpha"`
}

type VariantConfig struct {
	Name     string              `mapstructure:"name"`
	Engine   string              `mapstructure:"engine"`
	Critical bool                `mapstructure:"critical"`
	Effects  []EffectParamConfig `mapstructure:"effects"`
}

type EffectsConfig struct {
	PreferredEngine string `mapstructure:"preferred_engine"`
	Concurrency     int    `mapstructure:"concurrency"`
}

type PipelineConfig struct {
	StepTimeoutMS   int `mapstructure:"step_timeout_ms"`
	StepMaxAttempts int `mapstructure:"step_max_attempts"`
}

type OrchestratorConfig struct {
	AllowCache bool `mapstructure:"allow_cache"`
}

// Load reads config from configPath (if non-empty) or the default search
// path/name ("wallhue.toml" under the user's config dir), applies
// WALLHUE_-prefixed environment variable overrides, and unmarshals into a
// Config with every documented default applied first.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WALLHUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("wallhue")
		v.AddConfigPath("$HOME/.config/wallhue")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine: defaults + env vars still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("cache.root", filepath.Join(home, ".cache", "wallhue"))
	v.SetDefault("cache.max_bytes", int64(1)<<30) // 1 GiB
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.low_watermark_bytes", int64(768)<<20) // 768 MiB
	v.SetDefault("cache.schema_version", 1)
	v.SetDefault("cache.lock_timeout_ms", 5000)

	v.SetDefault("palette.backend", "in_process")
	v.SetDefault("palette.formats", []string{"json", "css"})

	v.SetDefault("effects.preferred_engine", "in_process")
	v.SetDefault("effects.concurrency", 0) // loaded only: the orchestrator always uses the generator's default of runtime.NumCPU()-1

	v.SetDefault("pipeline.step_timeout_ms", 30000)
	v.SetDefault("pipeline.step_max_attempts", 3)

	v.SetDefault("orchestrator.allow_cache", true)
}
