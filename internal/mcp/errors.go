package mcp

import (
	"context"
	"errors"
	"fmt"
)

// Normalized protocol error codes. Every failure leaving this package wraps
// exactly one of these, so callers branch with errors.Is instead of string
// matching.
var (
	ErrTimeout  = errors.New("TIMEOUT")
	ErrLink     = errors.New("LINK_ERROR")
	ErrRejected = errors.New("REJECTED")
	ErrCanceled = errors.New("CANCELED")
)

// RemoteError carries the normalized code plus the method and remote detail
// for diagnostics.
type RemoteError struct {
	Code   error
	Method string
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", e.Code, e.Detail, e.Method)
}

func (e *RemoteError) Unwrap() error {
	return e.Code
}

// normalize maps a raw transport or context failure onto the fixed taxonomy.
func normalize(method string, err error) error {
	if err == nil {
		return nil
	}
	code := ErrLink
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrTimeout
	case errors.Is(err, context.Canceled):
		code = ErrCanceled
	}
	return &RemoteError{Code: code, Method: method, Detail: err.Error()}
}
