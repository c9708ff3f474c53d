package signals

import "errors"

// Registration and lookup errors. Call sites wrap them with the offending kind,
// so compare with errors.Is.
var (
	ErrDuplicateKind      = errors.New("signal kind already registered")
	ErrRegistrationClosed = errors.New("signal registry is frozen")
	ErrUnknownKind        = errors.New("unknown signal kind")
	ErrInvalidParams      = errors.New("invalid signal kind parameters")
)
