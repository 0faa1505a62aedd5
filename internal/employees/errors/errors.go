package errors

import (
	"fmt"
)

var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// ErrTransport reports that the remote API could not be reached.
	ErrTransport = fmt.Errorf("transport failure")
	// ErrRemote reports a non-success HTTP status from the remote API.
	ErrRemote = fmt.Errorf("remote error")
	// ErrDecode reports a payload that could not be decoded.
	ErrDecode = fmt.Errorf("decode failure")

	ErrSessionState    = fmt.Errorf("invalid session state")
	ErrNoPendingDelete = fmt.Errorf("no pending deletion")
)
