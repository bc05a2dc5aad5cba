package cmd

import (
	"errors"
	"strconv"

	"github.com/abdul-hamid-achik/multisync/packages/http"
)

// Exit codes for multisync CLI
const (
	// ExitSuccess indicates the request succeeded and every check passed
	ExitSuccess = 0

	// ExitFailure indicates a non-2xx status or a failed check
	ExitFailure = 1

	// ExitAttachmentError indicates an invalid or unreadable attachment
	ExitAttachmentError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a connection failure or timeout
	ExitNetworkError = 4

	// ExitProtocolError indicates a malformed response
	ExitProtocolError = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// errConfig marks configuration failures.
var errConfig = errors.New("config error")

// exitError carries an explicit exit code. A silent error has already been
// reported by the formatter.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: ExitUsageError, err: err}
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) && exitErr.code != 0 {
		return exitErr.code
	}

	var (
		attachErr  *http.InvalidAttachmentError
		fileErr    *http.FileReadError
		connErr    *http.ConnectionError
		timeoutErr *http.TimeoutError
		protoErr   *http.ProtocolError
	)
	switch {
	case errors.As(err, &attachErr), errors.As(err, &fileErr):
		return ExitAttachmentError
	case errors.Is(err, errConfig):
		return ExitConfigError
	case errors.As(err, &timeoutErr), errors.As(err, &connErr):
		return ExitNetworkError
	case errors.As(err, &protoErr):
		return ExitProtocolError
	case errors.Is(err, http.ErrInvalidOptions):
		return ExitUsageError
	default:
		return ExitFailure
	}
}
