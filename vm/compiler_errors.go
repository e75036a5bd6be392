package vm

import (
	"fmt"

	e "github.com/rami3l/golua/errors"
)

func sprintfReason(format string, a ...any) string { return fmt.Sprintf(format, a...) }

// compileError is the internal carrier for a single lexical error collected
// by the Scanner. It satisfies the error interface directly (so it can be
// handed to multierror.Append) and converts cleanly to the public
// errors.CompilationError shape.
type compileError struct {
	line   int
	reason string
}

func (c *compileError) Error() string { return (&e.CompilationError{Line: c.line, Reason: c.reason}).Error() }

// compileAbort is the payload panicked by the compiler the moment it hits a
// fatal error (spec §7: "the parser never attempts local recovery or
// resynchronization" — unlike the teacher's panicMode+sync() loop, there is
// exactly one abort per compile, recovered at the top by Compile).
type compileAbort struct{ err error }

// abort raises a CompilationError and unwinds straight out of Compile.
func (fs *FuncState) abort(line int, format string, a ...any) {
	panic(compileAbort{&e.CompilationError{Line: line, Reason: sprintfReason(format, a...)}})
}

// abortResource raises a ResourceError (spec §5's size caps) and unwinds the
// same way.
func (fs *FuncState) abortResource(line int, resource string, limit int) {
	panic(compileAbort{&e.ResourceError{Line: line, Resource: resource, Limit: limit}})
}
