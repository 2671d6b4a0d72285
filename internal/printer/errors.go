package printer

import (
	"errors"
	"fmt"

	"github.com/nerrad567/workbench-core/internal/probe"
)

// Domain errors for the printer package.
//
//	if errors.Is(err, printer.ErrPrinterNotFound) {
//	    // 404
//	}
var (
	// ErrPrinterNotFound is returned when a printer ID does not exist, or
	// when no printer is connected.
	ErrPrinterNotFound = errors.New("printer: not found")

	// ErrPrinterExists is returned when creating a printer with an ID already in use.
	ErrPrinterExists = errors.New("printer: already exists")

	// ErrInvalidPrinter is the parent of every validation error below.
	ErrInvalidPrinter = errors.New("printer: invalid")

	ErrInvalidName     = fmt.Errorf("%w name", ErrInvalidPrinter)
	ErrInvalidHost     = fmt.Errorf("%w host", ErrInvalidPrinter)
	ErrInvalidPort     = fmt.Errorf("%w port", ErrInvalidPrinter)
	ErrInvalidPath     = fmt.Errorf("%w path", ErrInvalidPrinter)
	ErrInvalidProtocol = fmt.Errorf("%w protocol", ErrInvalidPrinter)

	// ErrUnreachable is returned when a probe fails during create or connect.
	// Use errors.As with *UnreachableError to get the probe result.
	ErrUnreachable = errors.New("printer: unreachable")

	// ErrConflict is returned when a write would leave more than one printer
	// connected. The write is rolled back.
	ErrConflict = errors.New("printer: conflicting connected state")
)

// UnreachableError carries the failed probe so callers can show the method,
// status and timing, then retry or force.
type UnreachableError struct {
	Result probe.Result
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s (method=%s, elapsed=%dms)", ErrUnreachable, e.Result.Method, e.Result.ElapsedMs)
}

// Unwrap lets errors.Is match ErrUnreachable.
func (e *UnreachableError) Unwrap() error {
	return ErrUnreachable
}
