package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrJobExpired = errors.New("job waited longer than its timeout")
)
