package collage

import "errors"

// Error kinds surfaced by the collage core. Callers match with errors.Is and
// map them onto the session failed status; the core itself never retries and
// never writes partial output.
var (
	// ErrInvalidImage marks an undecodable or zero-dimension source image.
	ErrInvalidImage = errors.New("invalid image")

	// ErrEmptyForeground means the cutout contains no opaque pixels, which
	// usually indicates the upstream background removal failed or the input
	// was blank.
	ErrEmptyForeground = errors.New("no opaque pixels in foreground")

	// ErrMissingAsset marks a background template that is not on disk.
	ErrMissingAsset = errors.New("background template not found")

	// ErrConfiguration marks an unusable canvas configuration.
	ErrConfiguration = errors.New("invalid canvas configuration")
)
