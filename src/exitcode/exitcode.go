// Package exitcode maps command errors to process exit codes shared by every binary.
package exitcode

import (
	"errors"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
)

// Process exit codes.
const (
	OK          = 0
	Failure     = 1
	NoRecords   = 2
	LogNotFound = 3
	Invalid     = 4
)

// ErrValidationFailed is returned when a log check finds problems.
var ErrValidationFailed = errors.New("validation found problems")

// For returns the exit code for err.
func For(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, analysis.ErrLogNotFound):
		return LogNotFound
	case errors.Is(err, analysis.ErrNoRecords):
		return NoRecords
	case errors.Is(err, ErrValidationFailed):
		return Invalid
	default:
		return Failure
	}
}
