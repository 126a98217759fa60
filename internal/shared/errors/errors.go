package errors

import "errors"

// Domain errors
var (
	// Session errors
	ErrConnection        = errors.New("connection failed")
	ErrAuthentication    = errors.New("authentication failed")
	ErrNotAuthenticated  = errors.New("session handshake not completed")
	ErrSessionClosed     = errors.New("session closed")
	ErrUnsupportedScheme = errors.New("unsupported protocol")

	// Read errors
	ErrReadTimeout     = errors.New("read timed out")
	ErrPaginationLimit = errors.New("pagination limit exceeded")

	// Rule errors
	ErrPatternMismatch = errors.New("device output did not match expected pattern")
	ErrRuleExecution   = errors.New("rule execution failed")

	// Report errors
	ErrReportNotRunning = errors.New("report is not running")
	ErrReportFinished   = errors.New("report already finished")
	ErrEmptyRuleID      = errors.New("rule ID cannot be empty")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)
