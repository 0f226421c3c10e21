package assets

import "errors"

var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrInvalidAssetName = errors.New("invalid asset name")
	ErrInvalidBasePath  = errors.New("invalid asset directory")

	// ErrAssetRead covers I/O failures, including names that resolve
	// outside the asset directory through a symlink.
	ErrAssetRead = errors.New("failed to read asset")
)
