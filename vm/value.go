package vm

import "fmt"

// Value is the demonstration VM's dynamic-type union. The compiler itself
// never inspects values beyond what ExpDesc-level constant folding needs
// (spec §1 Non-goals: "optimizing passes beyond ExpDesc-level folding");
// everything past that is the interpreter's business, not the parser's.
type Value interface{ isValue() }

func NewValue() Value { return VNil{} }

type VBool bool

func (VBool) isValue()         {}
func (v VBool) String() string { return fmt.Sprintf("%t", v) }

type VNil struct{}

func (VNil) isValue()         {}
func (v VNil) String() string { return "nil" }

type VNum float64

func (VNum) isValue()         {}
func (v VNum) String() string { return fmt.Sprintf("%g", v) }

type VStr string

func (VStr) isValue()         {}
func (v VStr) String() string { return string(v) }

// VTable is the language's one structured data type: an associative array
// used for both "array part" (list constructors) and "hash part" (record
// constructors), per spec §4.5's constructor grammar. The demonstration VM
// does not need Lua's real array/hash split optimization; a single map is
// enough to exercise OpNewTable/OpSetList/OpSetMap/OpGetTable/OpSetTable.
type VTable struct {
	fields map[Value]Value
}

func NewVTable() *VTable { return &VTable{fields: make(map[Value]Value)} }

func (*VTable) isValue() {}
func (t *VTable) String() string {
	return fmt.Sprintf("table: %p", t)
}

func (t *VTable) Get(k Value) Value {
	if v, ok := t.fields[k]; ok {
		return v
	}
	return VNil{}
}

func (t *VTable) Set(k, v Value) {
	if _, isNil := v.(VNil); isNil {
		delete(t.fields, k)
		return
	}
	t.fields[k] = v
}

// upvalRef is a shared cell: an open upvalue points at a live stack slot in
// an enclosing call frame, a closed one holds its own copy once that frame
// has returned. The demonstration VM closes eagerly at closure-creation time
// rather than lazily at frame-exit, since faithfully modeling the runtime's
// GC-integrated open-upvalue chain is out of scope (spec §1: "the memory
// allocator" is excluded).
type upvalRef struct{ val Value }

// VFun is a compiled-but-not-yet-closed-over function prototype, paired at
// runtime with captured upvalues to form a callable closure (spec §3's
// Proto/Closure split, and spec §4.8's CLOSURE instruction).
type VFun struct {
	proto *Proto
	name  *string
}

func NewVFun(proto *Proto) VFun { return VFun{proto: proto} }

func (VFun) isValue() {}
func (v VFun) String() string {
	if v.name != nil {
		return fmt.Sprintf("function: %s", *v.name)
	}
	return "function: <anonymous>"
}

// VClosure pairs a VFun with the upvalue cells it captured at CLOSURE time.
type VClosure struct {
	VFun
	upvals []*upvalRef
}

func (VClosure) isValue() {}

// VBuiltin is a Go-implemented function exposed to script code (e.g. the
// demonstration VM's `print`), grounded in golox's treatment of `print` as a
// dedicated opcode, generalized here into an ordinary callable so user code
// and builtins share one call path (spec §4.7's funcargs/call handling).
type VBuiltin struct {
	Name string
	Fn   func(args []Value) []Value
}

func (VBuiltin) isValue()         {}
func (v VBuiltin) String() string { return fmt.Sprintf("builtin: %s", v.Name) }

func VAdd(v, w Value) (Value, bool) { return numBinop(v, w, func(a, b float64) float64 { return a + b }) }
func VSub(v, w Value) (Value, bool) { return numBinop(v, w, func(a, b float64) float64 { return a - b }) }
func VMul(v, w Value) (Value, bool) { return numBinop(v, w, func(a, b float64) float64 { return a * b }) }
func VDiv(v, w Value) (Value, bool) { return numBinop(v, w, func(a, b float64) float64 { return a / b }) }

func numBinop(v, w Value, op func(a, b float64) float64) (Value, bool) {
	a, aok := v.(VNum)
	b, bok := w.(VNum)
	if !aok || !bok {
		return NewValue(), false
	}
	return VNum(op(float64(a), float64(b))), true
}

func VPow(v, w Value) (Value, bool) {
	a, aok := v.(VNum)
	b, bok := w.(VNum)
	if !aok || !bok {
		return NewValue(), false
	}
	base, exp := float64(a), float64(b)
	neg := exp < 0
	if neg {
		exp = -exp
	}
	res := 1.0
	for i := 0; i < int(exp); i++ {
		res *= base
	}
	if neg {
		res = 1 / res
	}
	return VNum(res), true
}

func VConcat(v, w Value) (Value, bool) {
	vs, vok := concatable(v)
	ws, wok := concatable(w)
	if !vok || !wok {
		return NewValue(), false
	}
	return VStr(vs + ws), true
}

func concatable(v Value) (string, bool) {
	switch v := v.(type) {
	case VStr:
		return string(v), true
	case VNum:
		return v.String(), true
	default:
		return "", false
	}
}

func VGreater(v, w Value) (Value, bool) { return numCmp(v, w, func(a, b float64) bool { return a > b }) }
func VGreaterEq(v, w Value) (Value, bool) {
	return numCmp(v, w, func(a, b float64) bool { return a >= b })
}
func VLess(v, w Value) (Value, bool)   { return numCmp(v, w, func(a, b float64) bool { return a < b }) }
func VLessEq(v, w Value) (Value, bool) { return numCmp(v, w, func(a, b float64) bool { return a <= b }) }

func numCmp(v, w Value, op func(a, b float64) bool) (Value, bool) {
	a, aok := v.(VNum)
	b, bok := w.(VNum)
	if !aok || !bok {
		return NewValue(), false
	}
	return VBool(op(float64(a), float64(b))), true
}

func VNeg(v Value) (Value, bool) {
	if n, ok := v.(VNum); ok {
		return -n, true
	}
	return NewValue(), false
}

func VTruthy(v Value) VBool {
	switch v := v.(type) {
	case VBool:
		return v
	case VNil:
		return false
	default:
		return true
	}
}

func VEq(v, w Value) VBool {
	switch v := v.(type) {
	case VBool:
		w, ok := w.(VBool)
		return VBool(ok && v == w)
	case VNum:
		w, ok := w.(VNum)
		return VBool(ok && v == w)
	case VStr:
		w, ok := w.(VStr)
		return VBool(ok && v == w)
	case VNil:
		_, ok := w.(VNil)
		return VBool(ok)
	case *VTable:
		w, ok := w.(*VTable)
		return VBool(ok && v == w)
	}
	return false
}
