package vm

import (
	"math"

	"github.com/dolthub/swiss"
	"github.com/josharian/intern"
)

// Limits are the configurable resource caps of spec §5 ("too many locals",
// "too many upvalues", etc). They default to golox's original MaxUint8
// ceilings but are exposed so the CLI's --max-* flags (SPEC_FULL §A) can
// tighten or loosen them per compile.
type Limits struct {
	MaxLocals    int
	MaxUpvalues  int
	MaxParams    int
	MaxConstants int
}

func DefaultLimits() Limits {
	return Limits{
		MaxLocals:    math.MaxUint8 + 1,
		MaxUpvalues:  math.MaxUint8 + 1,
		MaxParams:    math.MaxUint8,
		MaxConstants: math.MaxUint8 + 1,
	}
}

// breakLabel is one entry of the break-label stack a FuncState carries while
// inside a loop body: named directly after real Lua's lparser.c Breaklabel
// struct (spec §4.2's break/continue bookkeeping).
type breakLabel struct {
	prev       *breakLabel
	breakList  []int // pcs of OpJmp instructions still to be patched to the loop exit
	stackLevel int    // stack depth to unwind to on break
}

// FuncState is "one per function being compiled", open for exactly the
// duration of that function's body and closed into an immutable *Proto
// (spec §3/§4.9's FuncState lifecycle: open_func/close_func).
type FuncState struct {
	enclosing *FuncState
	limits    Limits

	proto *Proto

	locals      []localVar
	activeLocal int // number of locals currently in scope (<= len(locals))
	blockDepth  int
	blockScope  *blockInfo

	upvalIndex map[string]int

	// jpc is the "pending jump list": jumps that target the instruction about
	// to be emitted next, not yet attached to any ExpDesc. Mirrors real Lua's
	// FuncState.jpc field exactly.
	jpc []int
	// lastTarget is the pc of the last instruction that is a known jump
	// target, used to detect (and avoid) redundant jump-to-next-instruction
	// patches.
	lastTarget int

	breaks *breakLabel

	stringIndex *swiss.Map[string, int]
	numberIndex *swiss.Map[float64, int]

	isVararg bool
}

// localVar is FuncState's own bookkeeping for an in-scope local; it becomes
// a Proto LocVar debug record once its scope ends.
type localVar struct {
	name            string
	slot            int
	startPC         int
	captured        bool // true once some nested function captures it as an upvalue
	attribIsConst   bool
}

func newFuncState(enclosing *FuncState, limits Limits, source string, line int) *FuncState {
	return &FuncState{
		enclosing:   enclosing,
		limits:      limits,
		proto:       &Proto{Source: source, LineDefined: line},
		upvalIndex:  make(map[string]int),
		lastTarget:  -1,
		stringIndex: swiss.NewMap[string, int](uint32(8)),
		numberIndex: swiss.NewMap[float64, int](uint32(8)),
	}
}

/* --- constant pool --- */

// addStringConst dedups s against this function's string pool via
// stringIndex, and additionally interns the backing bytes process-wide with
// github.com/josharian/intern: two functions compiling the identical
// identifier or literal (e.g. "self", a common field name) end up sharing one
// string header instead of each holding its own copy, the same win golox
// took for function names (vm/compiler.go's wrapCompiler) generalized here to
// every string constant instead of just one.
func (fs *FuncState) addStringConst(s string) int {
	s = intern.String(s)
	if idx, ok := fs.stringIndex.Get(s); ok {
		return idx
	}
	if len(fs.proto.Strings) >= fs.limits.MaxConstants {
		fs.abortResource(fs.line(), "constants", fs.limits.MaxConstants)
	}
	idx := len(fs.proto.Strings)
	fs.proto.Strings = append(fs.proto.Strings, s)
	fs.stringIndex.Put(s, idx)
	return idx
}

func (fs *FuncState) addNumberConst(n float64) int {
	if idx, ok := fs.numberIndex.Get(n); ok {
		return idx
	}
	if len(fs.proto.Numbers) >= fs.limits.MaxConstants {
		fs.abortResource(fs.line(), "constants", fs.limits.MaxConstants)
	}
	idx := len(fs.proto.Numbers)
	fs.proto.Numbers = append(fs.proto.Numbers, n)
	fs.numberIndex.Put(n, idx)
	return idx
}

func (fs *FuncState) addProto(p *Proto) int {
	idx := len(fs.proto.Protos)
	fs.proto.Protos = append(fs.proto.Protos, p)
	return idx
}

/* --- code emission --- */

// line tracks "the line of the token most recently consumed", set by the
// statement/expression parser before each emit call; stored on FuncState
// rather than threaded through every emit signature to keep emit's call
// sites terse, matching golox's p.prev.Line pattern.
func (fs *FuncState) line() int {
	if len(fs.proto.lines) == 0 {
		return fs.proto.LineDefined
	}
	return fs.proto.lines[len(fs.proto.lines)-1]
}

func (fs *FuncState) pc() int { return len(fs.proto.Code) }

// emit appends one opcode (no operands) and returns its pc.
func (fs *FuncState) emit(op OpCode, line int) int {
	fs.dischargeJPC()
	pc := fs.pc()
	fs.proto.Code = append(fs.proto.Code, byte(op))
	fs.proto.lines = append(fs.proto.lines, line)
	if op == OpJmp || op == OpJmpIfFalse || op == OpJmpIfTrue {
		fs.lastTarget = -1
	}
	return pc
}

func (fs *FuncState) emit1(op OpCode, arg byte, line int) int {
	pc := fs.emit(op, line)
	fs.proto.Code = append(fs.proto.Code, arg)
	return pc
}

func (fs *FuncState) emit2(op OpCode, a, b byte, line int) int {
	pc := fs.emit(op, line)
	fs.proto.Code = append(fs.proto.Code, a, b)
	return pc
}

// emitJump emits a jump opcode with a placeholder 16-bit target, returning
// the pc of the instruction (so the caller can later patchJump to it).
func (fs *FuncState) emitJump(op OpCode, line int) int {
	pc := fs.emit(op, line)
	fs.proto.Code = append(fs.proto.Code, 0, 0)
	return pc
}

func (fs *FuncState) patchJumpTo(pc, target int) {
	hi, lo := writeUint16(target)
	fs.proto.Code[pc+1] = hi
	fs.proto.Code[pc+2] = lo
}

// patchJumpHere patches pc's target to "the next instruction to be emitted",
// i.e. here-and-now, the common case for if/while exit jumps.
func (fs *FuncState) patchJumpHere(pc int) {
	fs.patchListHere([]int{pc})
}

// patchListHere patches every jump pc in list to target the instruction
// about to be emitted. Mirrors real Lua's luaK_patchtohere, which folds the
// list into FuncState.jpc instead of patching immediately — done here via
// dischargeJPC so that two patchListHere calls to the same target coalesce.
func (fs *FuncState) patchListHere(list []int) {
	fs.jpc = append(fs.jpc, list...)
}

// dischargeJPC finalizes fs.jpc against the pc about to be emitted, the
// moment that pc is actually about to exist.
func (fs *FuncState) dischargeJPC() {
	if len(fs.jpc) == 0 {
		return
	}
	target := fs.pc()
	for _, pc := range fs.jpc {
		fs.patchJumpTo(pc, target)
	}
	fs.jpc = nil
	fs.lastTarget = target
}

func (fs *FuncState) patchList(list []int, target int) {
	for _, pc := range list {
		fs.patchJumpTo(pc, target)
	}
}

func concatJumps(a, b []int) []int { return append(append([]int{}, a...), b...) }

/* --- locals --- */

func (fs *FuncState) newLocal(name string, line int) int {
	if fs.activeLocal >= fs.limits.MaxLocals {
		fs.abortResource(line, "locals", fs.limits.MaxLocals)
	}
	slot := fs.activeLocal
	fs.locals = append(fs.locals, localVar{name: name, slot: slot, startPC: fs.pc()})
	return slot
}

// activateLocals makes the last n declared-but-inactive locals visible to
// name resolution, i.e. advances activeLocal. Spec §4.1's "a local only
// becomes visible to lookups after its initializer has been fully parsed"
// rule (so `local x = x` resolves the rhs x to an outer scope, not itself).
func (fs *FuncState) activateLocals(n int) { fs.activeLocal += n }

// searchLocal resolves name against currently-active locals, innermost
// first, per spec §4.1's shadowing rule.
func (fs *FuncState) searchLocal(name string) (slot int, ok bool) {
	for i := fs.activeLocal - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return fs.locals[i].slot, true
		}
	}
	return 0, false
}

// closeLocals pops locals back down to n, recording each one's EndPC debug
// record as it goes (spec §3's LocVar table).
func (fs *FuncState) closeLocals(n int) {
	pc := fs.pc()
	for fs.activeLocal > n {
		fs.activeLocal--
		l := fs.locals[len(fs.locals)-1]
		fs.locals = fs.locals[:len(fs.locals)-1]
		fs.proto.Locals = append(fs.proto.Locals, LocVar{Name: l.name, StartPC: l.startPC, EndPC: pc})
	}
}

/* --- upvalues --- */

// findUpval resolves name as an upvalue of fs, recursing into fs.enclosing
// only one level per spec §4.4's explicit-upvalue-syntax rule: the caller
// (see resolveName in expr.go) is responsible for rejecting an implicit
// reference to a grandparent's local — findUpval itself is happy to chain
// enclosing upvalues, since that's how a 3-deep closure re-exports a name
// its *immediate* parent already captured.
func (fs *FuncState) findUpval(name string) (idx int, ok bool) {
	if idx, ok := fs.upvalIndex[name]; ok {
		return idx, true
	}
	if fs.enclosing == nil {
		return 0, false
	}
	if slot, ok := fs.enclosing.searchLocal(name); ok {
		fs.enclosing.locals[fs.enclosing.localIndexBySlot(slot)].captured = true
		return fs.addUpval(name, true, slot), true
	}
	if outerIdx, ok := fs.enclosing.findUpval(name); ok {
		return fs.addUpval(name, false, outerIdx), true
	}
	return 0, false
}

func (fs *FuncState) localIndexBySlot(slot int) int {
	for i, l := range fs.locals {
		if l.slot == slot {
			return i
		}
	}
	return -1
}

func (fs *FuncState) addUpval(name string, fromLocal bool, index int) int {
	if len(fs.proto.Upvalues) >= fs.limits.MaxUpvalues {
		fs.abortResource(fs.line(), "upvalues", fs.limits.MaxUpvalues)
	}
	idx := len(fs.proto.Upvalues)
	fs.proto.Upvalues = append(fs.proto.Upvalues, UpvalDesc{Name: name, FromLocal: fromLocal, Index: index})
	fs.upvalIndex[name] = idx
	return idx
}

/* --- break labels --- */

func (fs *FuncState) pushBreakLabel() {
	fs.breaks = &breakLabel{prev: fs.breaks, stackLevel: fs.activeLocal}
}

func (fs *FuncState) popBreakLabel() *breakLabel {
	b := fs.breaks
	fs.breaks = b.prev
	return b
}

/* --- close --- */

// close finalizes the Proto: appends the line-table sentinel (spec §8) and
// records MaxStack. Called once per FuncState at the end of funcbody.
func (fs *FuncState) close(maxStack int) *Proto {
	fs.proto.lines = append(fs.proto.lines, LineSentinel)
	fs.proto.MaxStack = maxStack
	fs.proto.IsVararg = fs.isVararg
	return fs.proto
}
