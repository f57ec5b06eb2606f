package capture

import "errors"

var (
	// ErrInvalidState is returned on protocol misuse, such as starting twice.
	ErrInvalidState = errors.New("invalid capture state")

	// ErrHardware wraps measurement and presentation I/O failures.
	ErrHardware = errors.New("hardware error")
)
