// Package config loads the msgenhance CLI configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-msgenhance/internal/fileutil"
	"github.com/alnah/go-msgenhance/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxAddrLength     = 255  // host:port
	MaxKeyLength      = 512  // Redis key
	MaxURLLength      = 2048 // Browser limit
	MaxPathLength     = 4096 // PATH_MAX
	MaxThemeLength    = 50   // "default", "dark", "forest"
	MaxLanguageLength = 35   // BCP 47 tag
	MaxWorkers        = 64
)

// Math backends accepted by render.math.
const (
	MathKatex  = "katex"
	MathMathML = "mathml"
)

// MathBackends lists the accepted render.math values.
var MathBackends = []string{MathKatex, MathMathML}

// Config holds the CLI configuration.
type Config struct {
	// Settings is the plugin settings object used when no other
	// settings source is configured.
	Settings map[string]any `yaml:"settings"`
	Redis    RedisConfig    `yaml:"redis"`
	Assets   AssetsConfig   `yaml:"assets"`
	Render   RenderConfig   `yaml:"render"`
}

// RedisConfig defines the Redis settings source.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // Empty = not used
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"` // Empty = settings.DefaultRedisKey
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // Empty = use embedded assets
	BaseURL  string `yaml:"baseURL"`  // Empty = /plugins/msgenhance
}

// RenderConfig defines rendering options.
type RenderConfig struct {
	Workers int    `yaml:"workers"` // 0 = auto
	Math    string `yaml:"math"`    // "katex" or "mathml" (default: "katex")
}

// Validate checks field lengths and enumerated values.
// Called automatically by LoadConfig, but available for consumers
// who construct Config manually.
func (c *Config) Validate() error {
	if err := validateFieldLength("redis.addr", c.Redis.Addr, MaxAddrLength); err != nil {
		return err
	}
	if err := validateFieldLength("redis.key", c.Redis.Key, MaxKeyLength); err != nil {
		return err
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("%w: redis.db must not be negative, got %d", ErrInvalidValue, c.Redis.DB)
	}

	if err := validateFieldLength("assets.basePath", c.Assets.BasePath, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("assets.baseURL", c.Assets.BaseURL, MaxURLLength); err != nil {
		return err
	}

	if c.Render.Workers < 0 || c.Render.Workers > MaxWorkers {
		return fmt.Errorf("%w: render.workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, c.Render.Workers)
	}
	if c.Render.Math != "" {
		switch strings.ToLower(c.Render.Math) {
		case MathKatex, MathMathML:
			// valid
		default:
			return fmt.Errorf("%w: render.math %q (must be %s)", ErrInvalidValue, c.Render.Math, strings.Join(MathBackends, " or "))
		}
	}

	for _, key := range []string{"mermaidTheme", "language"} {
		v, ok := c.Settings[key].(string)
		if !ok {
			continue
		}
		limit := MaxThemeLength
		if key == "language" {
			limit = MaxLanguageLength
		}
		if err := validateFieldLength("settings."+key, v, limit); err != nil {
			return err
		}
	}

	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns a configuration using embedded assets and KaTeX.
func DefaultConfig() *Config {
	return &Config{
		Settings: map[string]any{},
		Render:   RenderConfig{Math: MathKatex},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yamlutil.DecodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if cfg.Render.Math == "" {
		cfg.Render.Math = MathKatex
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SearchPaths returns the paths resolveConfigPath tries for name.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2) // 2 locations

	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, "go-msgenhance", name+ext))
		}
	}
	return paths
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-msgenhance/
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}
