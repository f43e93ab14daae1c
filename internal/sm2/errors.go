package sm2

import "errors"

// ErrInvalidQuality is returned when a quality rating falls outside [0,5].
// Check with errors.Is.
var ErrInvalidQuality = errors.New("sm2: quality rating out of range [0,5]")
