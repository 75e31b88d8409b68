package compiler

import (
	"errors"
	"fmt"
)

var (
	// ErrCompileFailed is matched by every *CompileError
	ErrCompileFailed = errors.New("stylesheet compilation failed")

	// ErrCompilerUnavailable is returned when the compiler cannot be run at all
	ErrCompilerUnavailable = errors.New("stylesheet compiler is not available")

	// ErrNoOutput is returned when the compiler exits cleanly without writing the stylesheet
	ErrNoOutput = errors.New("compiler produced no stylesheet")

	// ErrTimeout is returned when a compilation exceeds its deadline
	ErrTimeout = errors.New("compilation timeout")
)

// CompileError carries the compiler's diagnostic for input it rejected
type CompileError struct {
	Compiler   string
	ExitCode   int
	Diagnostic string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s (exit code %d): %s", ErrCompileFailed, e.Compiler, e.ExitCode, e.Diagnostic)
}

// Unwrap lets errors.Is(err, ErrCompileFailed) match
func (e *CompileError) Unwrap() error {
	return ErrCompileFailed
}
