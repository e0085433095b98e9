package classify

import "errors"

var (
	// ErrClassificationUnavailable covers every remote failure: transport
	// errors, timeouts and responses that do not match the result shape.
	ErrClassificationUnavailable = errors.New("classify: classification unavailable")
	ErrEmptyText                 = errors.New("classify: text is empty")
)
