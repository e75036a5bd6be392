package vm_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rami3l/golua/vm"
)

// protoShape captures the parts of a Proto that are meaningful to compare
// across a recompile without reaching into its unexported line table.
type protoShape struct {
	NumParams int
	IsVararg  bool
	Numbers   []float64
	Strings   []string
	NumProtos int
}

func shapeOf(p *vm.Proto) protoShape {
	return protoShape{
		NumParams: p.NumParams,
		IsVararg:  p.IsVararg,
		Numbers:   p.Numbers,
		Strings:   p.Strings,
		NumProtos: len(p.Protos),
	}
}

// TestCompileIsDeterministic guards against accidental nondeterminism (e.g. a
// map iteration leaking into constant-pool ordering) by compiling the same
// chunk twice and diffing the resulting Proto shapes with go-cmp, in the
// style of _examples' table/set tests.
func TestCompileIsDeterministic(t *testing.T) {
	t.Parallel()
	src := `
		local t = {1, 2, x = "y"}
		local function f(a, b) return a + b end
		result = f(t[1], t[2])
	`
	a, err := vm.Compile(src, "a", vm.DefaultLimits())
	require.NoError(t, err)
	b, err := vm.Compile(src, "b", vm.DefaultLimits())
	require.NoError(t, err)

	if diff := cmp.Diff(shapeOf(a), shapeOf(b)); diff != "" {
		t.Errorf("recompiling the same source produced a different Proto shape (-first +second):\n%s", diff)
	}
}

func TestCompileConstantPoolDedups(t *testing.T) {
	t.Parallel()
	src := `
		local a = "dup"
		local b = "dup"
		result = a .. b
	`
	proto, err := vm.Compile(src, "dedup", vm.DefaultLimits())
	require.NoError(t, err)

	count := 0
	for _, s := range proto.Strings {
		if s == "dup" {
			count++
		}
	}
	require.Equal(t, 1, count, "the string constant pool must dedup identical literals: %v", proto.Strings)
}
