package assets

import (
	"fmt"
	"strings"
)

// ValidateAssetName checks that an asset name is a safe relative path.
// Segments are separated by "/" and may only contain letters, digits, '.',
// '-' and '_'. Empty segments, "." and ".." are rejected, as are backslashes.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if strings.Contains(name, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
		}
		for _, r := range seg {
			if !isAssetNameRune(r) {
				return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
			}
		}
	}
	return nil
}

func isAssetNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}
