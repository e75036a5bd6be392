package debug

import (
	"fmt"
	"os"
)

// DEBUG gates the verbose disassembly/stack-trace logging scattered through
// the compiler and the demonstration VM. It defaults off and is flipped on
// by setting GOLUA_DEBUG=1, or by the CLI's --verbosity flag.
var DEBUG = os.Getenv("GOLUA_DEBUG") != ""

func Assertf(b bool, format string, a ...any) {
	if DEBUG && !b {
		panic(fmt.Sprintf(format, a...))
	}
}

func AssertEq[T comparable](expected, got T) { Assertf(expected == got, "%v != %v", expected, got) }
