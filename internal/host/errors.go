package host

import "errors"

var (
	// ErrUnknownOperator marks invocations of operators the host does not register.
	ErrUnknownOperator = errors.New("unknown operator")
	// ErrBadKeyword marks operator rejections of a keyword argument. Fallback
	// chains treat it as "try the next call convention".
	ErrBadKeyword = errors.New("operator rejected keyword")
	// ErrOperatorFailed marks operators that ran and reported failure.
	ErrOperatorFailed = errors.New("operator failed")
	// ErrTimeout marks bounded waits that expired.
	ErrTimeout = errors.New("host wait timed out")
	// ErrClosed marks use of a bridge whose host process has exited.
	ErrClosed = errors.New("host connection closed")
)
