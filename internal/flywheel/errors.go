package flywheel

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInitialized   = errors.New("flywheel config already initialized")
	ErrInvalidBpsSum        = errors.New("basis points sum exceeds 10000")
	ErrInvalidEpoch         = errors.New("epoch start is after epoch end")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidIdentity      = errors.New("identity must be a non-zero public key")
	ErrUnauthorized         = errors.New("caller is not authorized")
	ErrOutsideEpoch         = errors.New("current time is outside the execution epoch")
	ErrInsufficientInterval = errors.New("minimum interval since last execution has not elapsed")
	ErrNothingToExecute     = errors.New("vault balance is empty")
	ErrNotFound             = errors.New("flywheel config not initialized")
	ErrMathOverflow         = errors.New("arithmetic overflow")
	ErrExecutionAborted     = errors.New("execution aborted")
)

// ExecutionAbortedError reports an external distribution failure. Nothing was committed.
type ExecutionAbortedError struct {
	Stage string
	Err   error
}

func (e *ExecutionAbortedError) Error() string {
	return fmt.Sprintf("execution aborted during %s: %v", e.Stage, e.Err)
}

func (e *ExecutionAbortedError) Unwrap() error { return e.Err }

func (e *ExecutionAbortedError) Is(target error) bool { return target == ErrExecutionAborted }

func aborted(stage string, err error) error {
	return &ExecutionAbortedError{Stage: stage, Err: err}
}

// Code returns the stable machine-readable code of a domain error, or "internal" for anything else.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrInvalidBpsSum):
		return "invalid_bps_sum"
	case errors.Is(err, ErrInvalidEpoch):
		return "invalid_epoch"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrOutsideEpoch):
		return "outside_epoch"
	case errors.Is(err, ErrInsufficientInterval):
		return "insufficient_interval"
	case errors.Is(err, ErrNothingToExecute):
		return "nothing_to_execute"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMathOverflow):
		return "math_overflow"
	case errors.Is(err, ErrExecutionAborted):
		return "execution_aborted"
	}
	return "internal"
}
