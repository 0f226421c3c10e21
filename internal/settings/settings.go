// Package settings resolves the plugin settings that gate each enhancement.
//
// Settings arrive as an opaque key/value object from a Source. Feature flags
// are enabled unless the stored value is strictly the boolean false; a
// source that fails yields the defaults.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
)

// Setting keys.
const (
	KeyEnableKatex          = "enableKatex"
	KeyEnableMermaid        = "enableMermaid"
	KeyEnableCopyButton     = "enableCopyButton"
	KeyEnableExtraLanguages = "enableExtraLanguages"
	KeyMermaidTheme         = "mermaidTheme"
	KeyLanguage             = "language"
)

// Defaults for string settings.
const (
	DefaultMermaidTheme = "default"
	DefaultLanguage     = "en"
)

// ErrSettings indicates settings could not be fetched or decoded.
var ErrSettings = errors.New("settings unavailable")

// Settings gate the enhancements applied to a message.
type Settings struct {
	EnableKatex          bool
	EnableMermaid        bool
	EnableCopyButton     bool
	EnableExtraLanguages bool
	MermaidTheme         string
	Language             string
}

// Defaults returns settings with every feature enabled.
func Defaults() Settings {
	return Settings{
		EnableKatex:          true,
		EnableMermaid:        true,
		EnableCopyButton:     true,
		EnableExtraLanguages: true,
		MermaidTheme:         DefaultMermaidTheme,
		Language:             DefaultLanguage,
	}
}

// Source fetches the raw settings object.
type Source interface {
	Fetch(ctx context.Context) (map[string]any, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (map[string]any, error)

// Fetch calls f(ctx).
func (f SourceFunc) Fetch(ctx context.Context) (map[string]any, error) {
	return f(ctx)
}

// raw mirrors the settings object. Flags stay untyped so that only a real
// boolean false disables a feature.
type raw struct {
	EnableKatex          any    `mapstructure:"enableKatex"`
	EnableMermaid        any    `mapstructure:"enableMermaid"`
	EnableCopyButton     any    `mapstructure:"enableCopyButton"`
	EnableExtraLanguages any    `mapstructure:"enableExtraLanguages"`
	MermaidTheme         string `mapstructure:"mermaidTheme"`
	Language             string `mapstructure:"language"`
}

// Decode converts a raw settings object. Unknown keys are ignored; a
// string setting of the wrong type is an error.
func Decode(m map[string]any) (Settings, error) {
	var r raw
	if err := mapstructure.Decode(m, &r); err != nil {
		return Defaults(), fmt.Errorf("%w: %v", ErrSettings, err)
	}

	s := Settings{
		EnableKatex:          enabled(r.EnableKatex),
		EnableMermaid:        enabled(r.EnableMermaid),
		EnableCopyButton:     enabled(r.EnableCopyButton),
		EnableExtraLanguages: enabled(r.EnableExtraLanguages),
		MermaidTheme:         r.MermaidTheme,
		Language:             r.Language,
	}
	if s.MermaidTheme == "" {
		s.MermaidTheme = DefaultMermaidTheme
	}
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
	return s, nil
}

func enabled(v any) bool {
	b, ok := v.(bool)
	return !ok || b
}

// Resolve fetches and decodes settings from src. Any failure is logged and
// yields Defaults. A nil src yields Defaults.
func Resolve(ctx context.Context, src Source, log zerolog.Logger) Settings {
	if src == nil {
		return Defaults()
	}

	m, err := src.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("settings unavailable, using defaults")
		return Defaults()
	}
	s, err := Decode(m)
	if err != nil {
		log.Warn().Err(err).Msg("settings invalid, using defaults")
		return Defaults()
	}
	return s
}
