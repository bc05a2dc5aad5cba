package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/multisync/packages/formdata"
	"github.com/abdul-hamid-achik/multisync/packages/wire"
)

type (
	// InvalidAttachmentError is returned before any I/O when only one of
	// CopyName or File is set, or a raw body is combined with form data.
	InvalidAttachmentError = formdata.InvalidAttachmentError
	// FileReadError is returned when the attachment cannot be read.
	FileReadError = formdata.FileReadError
	// ProtocolError is returned for malformed or truncated responses.
	ProtocolError = wire.ProtocolError
)

// ErrInvalidOptions wraps option validation failures.
var ErrInvalidOptions = errors.New("invalid request options")

// ConnectionError reports a failure to connect to, or write to, the server.
type ConnectionError struct {
	Op   string // "dial" or "write"
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that the request deadline expired during Op.
type TimeoutError struct {
	Op    string // "dial", "write" or "read"
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("request timed out after %s during %s", e.After, e.Op)
	}
	return fmt.Sprintf("request deadline exceeded during %s", e.Op)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Timeout reports true, so TimeoutError satisfies net.Error-style checks.
func (e *TimeoutError) Timeout() bool {
	return true
}
