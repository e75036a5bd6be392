package vm

// ExpKind tags which of ExpDesc's fields are meaningful. Spec §3: "an
// expression descriptor... represents a partially-compiled expression that
// has not yet been forced onto the stack."
//
//go:generate stringer -type=ExpKind
type ExpKind int

const (
	VVoid    ExpKind = iota // no value (e.g. a statement-level call result nobody wants)
	VNilExp                 // literal nil
	VTrueExp                // literal true
	VFalseExp
	VNumExp    // literal number, value in .num
	VStrExp    // literal string, value in .str
	VLocalExp  // a local variable, slot in .info
	VUpvalExp  // an upvalue, index in .info
	VGlobalExp // a global, name in .str
	// VIndexedExp: table[key]. The table and key have already been pushed as
	// the top two stack values (index() sets neither .info nor .aux) — spec
	// §4.6's "both operands already materialized" rule for GETTABLE/SETTABLE.
	VIndexedExp
	// VCallExp: an open function call whose result count has not yet been
	// fixed; .info holds the instruction offset of the OpCall so the
	// consumer can backpatch its result-count operand (spec §4.7 "open
	// call").
	VCallExp
	VVarargExp
	// VRelocableExp: a value already emitted by an instruction that writes
	// to "whatever slot turns out to be the top of stack" (e.g. a freshly
	// built table, a freshly closed closure); .info is the pc of that
	// instruction, which the caller can leave as-is or relocate once it
	// knows the target slot.
	VRelocableExp
	// VNonRelocableExp: a value already pushed on top of the stack (e.g. an
	// operator result); .info is not set.
	VNonRelocableExp
	// VJmp: a boolean-valued expression that has not materialized a value
	// at all yet, only true/false jump chains (the tested lhs of `and`/`or`
	// as returned by goIfTrue/goIfFalse).
	VJmp
)

// ExpDesc is the parser's one piece of deferred state: instead of building
// an AST node for an expression, simeple/subexpr/expr return an ExpDesc that
// describes how to finish materializing the value, and callers decide
// whether they need it on the stack, as an lvalue, as a jump condition, or
// not at all (spec §3's central data structure).
type ExpDesc struct {
	Kind ExpKind

	info int     // meaning depends on Kind (slot index, pc, upvalue index...)
	aux  int      // not set by any current ExpKind
	num  float64  // VNumExp
	str  string   // VStrExp / VGlobalExp

	// t, f are lists of pcs of jump instructions still to be patched once the
	// final target (fall-through vs branch) is known — spec §3's "true-list,
	// false-list" / real Lua's t/f NO_JUMP-terminated chains, represented
	// here as plain slices per spec §9's explicitly-permitted alternative.
	t, f []int
}

func voidExp() ExpDesc   { return ExpDesc{Kind: VVoid} }
func nilExp() ExpDesc    { return ExpDesc{Kind: VNilExp} }
func trueExp() ExpDesc   { return ExpDesc{Kind: VTrueExp} }
func falseExp() ExpDesc  { return ExpDesc{Kind: VFalseExp} }
func numExp(n float64) ExpDesc { return ExpDesc{Kind: VNumExp, num: n} }
func strExp(s string) ExpDesc  { return ExpDesc{Kind: VStrExp, str: s} }

func localExp(slot int) ExpDesc  { return ExpDesc{Kind: VLocalExp, info: slot} }
func upvalExp(idx int) ExpDesc   { return ExpDesc{Kind: VUpvalExp, info: idx} }
func globalExp(name string) ExpDesc { return ExpDesc{Kind: VGlobalExp, str: name} }

func (e ExpDesc) hasJumps() bool { return len(e.t) > 0 || len(e.f) > 0 }

// isConstBool reports whether e is a constant-true or constant-false literal
// already known at parse time, letting the and/or/if compiler elide a
// conditional jump entirely — the one constant-folding peephole spec §1
// explicitly allows ("that falls out of the expression descriptor"), and
// grounded in real Lua's luaK_goiftrue/luaK_goiffalse short-circuits.
func (e ExpDesc) isConstBool() (v bool, ok bool) {
	switch e.Kind {
	case VTrueExp:
		return true, true
	case VFalseExp:
		return false, true
	case VNilExp:
		return false, true
	default:
		return false, false
	}
}
