// Package yamlutil decodes the YAML documents msgenhance reads: the CLI
// config file (strict, into a struct) and settings files (a loose mapping).
package yamlutil

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// MaxInputSize caps YAML input at 1MB.
var MaxInputSize = 1 << 20

var (
	ErrEmptyInput    = errors.New("yamlutil: empty input")
	ErrInputTooLarge = errors.New("yamlutil: input exceeds maximum size")
	ErrNotMapping    = errors.New("yamlutil: document is not a mapping")
)

func checkSize(data []byte) error {
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: more than %d bytes", ErrInputTooLarge, MaxInputSize)
	}
	return nil
}

// DecodeStrict decodes data into v and rejects keys v does not declare.
func DecodeStrict(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyInput
	}
	if err := checkSize(data); err != nil {
		return err
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// ReadMap reads at most MaxInputSize bytes from r and parses them with ParseMap.
func ReadMap(r io.Reader) (map[string]any, error) {
	// One byte past the cap, so oversized input is reported instead of truncated.
	data, err := io.ReadAll(io.LimitReader(r, int64(MaxInputSize)+1))
	if err != nil {
		return nil, fmt.Errorf("yamlutil: %w", err)
	}
	return ParseMap(data)
}

// ParseMap parses a top-level mapping. Scalars keep their YAML types, so
// "false" and false stay distinct. Non-string keys are stringified and an
// empty document yields an empty map.
func ParseMap(data []byte) (map[string]any, error) {
	if err := checkSize(data); err != nil {
		return nil, err
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yamlutil: %w", err)
	}
	switch m := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, v)
	}
}
