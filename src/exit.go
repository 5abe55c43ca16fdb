package main

import "github.com/AobaIwaki123/wifi-speed-bench/src/exitcode"

const (
	exitOK          = exitcode.OK
	exitFailure     = exitcode.Failure
	exitNoRecords   = exitcode.NoRecords
	exitLogNotFound = exitcode.LogNotFound
	exitInvalid     = exitcode.Invalid
)

// errValidationFailed is returned by `validate` when the log has problems.
var errValidationFailed = exitcode.ErrValidationFailed

func exitCode(err error) int { return exitcode.For(err) }
