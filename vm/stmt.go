package vm

// blockEndTokens are the follow-tokens that terminate a statement list
// without being consumaed by it (spec §4's block grammar: `end`/`else`/
// `elseif`/`until`/EOF all close the block one level up).
func isBlockEnd(ty TokenType) bool {
	switch ty {
	case TEnd, TElse, TElseif, TUntil, TEOF:
		return true
	default:
		return false
	}
}

// block parses a statement list and returns the high-water mark of stack
// depth reached while compiling it, threaded back up to Proto.MaxStack.
// Since every pushExp/pop is paired by construction (each statement leaves
// the stack exactly as deep as it found it), the running activeLocal count
// is already a faithful proxy for stack depth at block granularity; a
// dedicated depth tracker would only matter for the demonstration VM's fixed
// stack array sizing, so we conservatively report len(locals)+a small pad.
func (p *Parser) block() int {
	maxStack := p.fs.activeLocal
	for !isBlockEnd(p.curr.Type) {
		if p.curr.Type == TReturn {
			p.returnStat()
			break
		}
		p.statement()
		if d := p.fs.activeLocal; d > maxStack {
			maxStack = d
		}
	}
	return maxStack + 16 // headroom for transient expression-evaluation stack
}

func (p *Parser) statement() {
	line := p.curr.Line
	switch p.curr.Type {
	case TSemi:
		p.advance()
	case TIf:
		p.ifStat()
	case TWhile:
		p.whileStat()
	case TDo:
		p.advance()
		p.fs.enterBlock(false)
		p.block()
		p.fs.leaveBlock()
		p.expectMatch(TEnd, TDo, line)
	case TFor:
		p.forStat()
	case TRepeat:
		p.repeatStat()
	case TFunction:
		p.funcStat()
	case TLocal:
		p.localStat()
	case TBreak:
		p.advance()
		p.fs.emitBreak(line)
	case TReturn:
		p.returnStat()
	default:
		p.exprStat()
	}
}

/* --- if --- */

func (p *Parser) ifStat() {
	openLine := p.curr.Line
	p.advance()
	p.ifThenBlock(openLine)
}

// ifThenBlock parses one `if`/`elseif` clause and recurses for any further
// elseif/else, chaining every clause's exit jump to the same end-of-if
// patch point (spec §4.2's if/elseif/else chain).
func (p *Parser) ifThenBlock(openLine int) {
	cond := p.expr()
	_, falseList := p.condJump(cond, p.prev.Line)
	p.expect(TThen, "'then' expected")

	p.fs.enterBlock(false)
	p.block()
	p.fs.leaveBlock()

	var exitJumps []int
	if p.check(TElseif) {
		exitJumps = append(exitJumps, p.fs.emitJump(OpJmp, p.prev.Line))
		p.fs.patchListHere(falseList)
		p.fs.emit(OpPop, p.prev.Line) // false branch: discard the tested condition value
		p.advance()
		p.ifThenBlock(openLine)
		p.fs.patchListHere(exitJumps)
		return
	}
	if p.check(TElse) {
		exitJumps = append(exitJumps, p.fs.emitJump(OpJmp, p.prev.Line))
		p.fs.patchListHere(falseList)
		p.fs.emit(OpPop, p.prev.Line) // false branch: discard the tested condition value
		p.advance()
		p.fs.enterBlock(false)
		p.block()
		p.fs.leaveBlock()
		p.fs.patchListHere(exitJumps)
		p.expectMatch(TEnd, TIf, openLine)
		return
	}
	skip := p.fs.emitJump(OpJmp, p.prev.Line) // true branch: step over the false-branch pop
	p.fs.patchListHere(falseList)
	p.fs.emit(OpPop, p.prev.Line) // false branch: discard the tested condition value
	p.fs.patchJumpHere(skip)
	p.fs.patchListHere(exitJumps)
	p.expectMatch(TEnd, TIf, openLine)
}

/* --- while --- */

func (p *Parser) whileStat() {
	openLine := p.curr.Line
	p.advance()
	loopStart := p.fs.pc()
	cond := p.expr()
	_, falseList := p.condJump(cond, p.prev.Line)
	p.expect(TDo, "'do' expected")

	p.fs.enterBlock(true)
	p.block()
	breaks := p.fs.breaks.breakList
	p.fs.breaks.breakList = nil
	p.fs.leaveBlock()

	p.fs.emitJump(OpJmp, p.prev.Line)
	p.fs.patchList([]int{p.fs.pc() - 3}, loopStart)
	p.fs.patchListHere(falseList)
	p.fs.emit(OpPop, p.prev.Line) // loop exit: discard the tested condition value
	p.fs.patchListHere(breaks)    // break exits land past the back edge and that pop
	p.expectMatch(TEnd, TWhile, openLine)
}

/* --- repeat/until --- */

// repeatStat keeps the body's locals visible while parsing the `until`
// condition (SPEC_FULL §C.3, grounded in original_source/lparser.c's
// repeatstat: the block is only closed after the condition, not before).
func (p *Parser) repeatStat() {
	openLine := p.curr.Line
	p.advance()
	loopStart := p.fs.pc()

	p.fs.enterBlock(true)
	p.block()
	p.expectMatch(TUntil, TRepeat, openLine)
	cond := p.expr()
	line := p.prev.Line
	_, falseList := p.condJump(cond, line)
	nBody := p.fs.activeLocal - p.fs.blockScope.localsOnEntry
	p.fs.leaveBlock()

	// condJump's own fallthrough pop already discards the tested value on
	// the true (condition holds, loop exits) path, and leaveBlock pops the
	// body's locals there. The false path (loop repeats) skips both, so it
	// needs its own: patch falseList here, pop the value and the body's
	// locals, then jump back, with the true path skipping over that stub.
	exitJump := p.fs.emitJump(OpJmp, line)
	p.fs.patchListHere(falseList)
	p.fs.emit(OpPop, line) // false branch: discard the tested condition value before repeating
	if nBody > 0 {
		p.fs.emit1(OpPopN, byte(nBody), line)
	}
	backPC := p.fs.emitJump(OpJmp, line)
	p.fs.patchJumpTo(backPC, loopStart)
	p.fs.patchJumpHere(exitJump)
}

/* --- numeric/generic for --- */

// forStat dispatches on whether the loop variable is followed by '=' (numeric
// for) or ',' / 'in' (generic for), per spec §4.2's for-loop grammar.
func (p *Parser) forStat() {
	openLine := p.curr.Line
	p.advance()
	name := p.expect(TIdent, "variable name expected").String()
	if p.check(TEq) {
		p.numericFor(name, openLine)
	} else {
		p.genericFor(name, openLine)
	}
}

// numericFor lays down the 3 reserved locals (NAME, "(limit)", "(step)") in
// exactly that slot order and emits the FORPREP/FORLOOP pair, grounded
// directly in original_source/lparser.c's fornum/forbody (SPEC_FULL §C
// intro; the distilled spec names the reserved locals but left slot order
// and jump targets to be confirmed from the original).
func (p *Parser) numericFor(name string, openLine int) {
	p.advance() // '='
	initExp := p.expr()
	p.pushExp(initExp, p.prev.Line)
	p.expect(TComma, "',' expected")
	limitExp := p.expr()
	p.pushExp(limitExp, p.prev.Line)
	var stepGiven bool
	if p.match(TComma) {
		stepExp := p.expr()
		p.pushExp(stepExp, p.prev.Line)
		stepGiven = true
	}
	if !stepGiven {
		p.emitNum(1, p.prev.Line)
	}
	p.expect(TDo, "'do' expected")

	p.fs.enterBlock(true)
	p.fs.newLocal(name, p.prev.Line)
	p.fs.newLocal("(limit)", p.prev.Line)
	p.fs.newLocal("(step)", p.prev.Line)
	p.fs.activateLocals(3)

	prepPC := p.fs.emitJump(OpForPrep, p.prev.Line)
	bodyStart := p.fs.pc()
	p.fs.enterBlock(false)
	p.block()
	p.fs.leaveBlock()
	loopPC := p.fs.emitJump(OpForLoop, p.prev.Line)
	p.fs.patchJumpTo(loopPC, bodyStart)
	p.fs.patchJumpHere(prepPC)

	p.fs.leaveBlock()
	p.expectMatch(TEnd, TFor, openLine)
}

// genericFor lays down the 4 reserved locals ("(table)", "(index)", key,
// value) and the LFORPREP/LFORLOOP pair, grounded in original_source/
// lparser.c's forlist. OpLForLoop always writes both key and value slots
// (it carries no operand recording how many names were declared), so a
// single-name `for k in t do` still reserves a value slot; it's simply
// never given a name to read it back through.
func (p *Parser) genericFor(firstName string, openLine int) {
	names := []string{firstName}
	for p.match(TComma) {
		names = append(names, p.expect(TIdent, "variable name expected").String())
	}
	if len(names) > 2 {
		p.fs.abort(openLine, "generic for supports at most 2 loop variables")
	}
	for len(names) < 2 {
		names = append(names, "(value)")
	}
	p.expect(TIn, "'=' or 'in' expected")
	tableExp := p.expr()
	p.pushExp(tableExp, p.prev.Line)
	// "(table)" lands on the value just pushed; "(index)" and the key/value
	// names have no initializer expression of their own, so each needs its
	// own OpNil to keep one stack slot per active local (the invariant every
	// other emit site in this compiler relies on).
	for i := 0; i < 1+len(names); i++ {
		p.fs.emit(OpNil, p.prev.Line)
	}
	p.expect(TDo, "'do' expected")

	p.fs.enterBlock(true)
	p.fs.newLocal("(table)", p.prev.Line)
	p.fs.newLocal("(index)", p.prev.Line)
	for _, n := range names {
		p.fs.newLocal(n, p.prev.Line)
	}
	p.fs.activateLocals(2 + len(names))

	prepPC := p.fs.emitJump(OpLForPrep, p.prev.Line)
	bodyStart := p.fs.pc()
	p.fs.enterBlock(false)
	p.block()
	p.fs.leaveBlock()
	loopPC := p.fs.emitJump(OpLForLoop, p.prev.Line)
	p.fs.patchJumpTo(loopPC, bodyStart)
	p.fs.patchJumpHere(prepPC)

	p.fs.leaveBlock()
	p.expectMatch(TEnd, TFor, openLine)
}

/* --- local --- */

func (p *Parser) localStat() {
	line := p.curr.Line
	p.advance()
	if p.match(TFunction) {
		p.localFuncStat(line)
		return
	}

	var names []string
	names = append(names, p.expect(TIdent, "name expected").String())
	p.skipAttrib()
	for p.match(TComma) {
		names = append(names, p.expect(TIdent, "name expected").String())
		p.skipAttrib()
	}

	nvals := 0
	if p.match(TEq) {
		n, open := p.exprList()
		nvals = n
		_ = open
	}
	p.adjustAssign(len(names), nvals, line)

	for _, n := range names {
		p.fs.newLocal(n, line)
	}
	p.fs.activateLocals(len(names))
}

// skipAttrib accepts (and ignores) a `<const>`/`<close>`-style attribute if
// present; the distilled grammar doesn't mention local attributes and no
// Non-goal excludes them, but nothing in SPEC_FULL requires enforcing one
// either, so we just consume the syntax to stay forward-compatible with
// lparser.c's localstat without adding semantics spec_full never asked for.
func (p *Parser) skipAttrib() {
	if p.match(TLt) {
		p.expect(TIdent, "attribute name expected")
		p.expect(TGt, "'>' expected")
	}
}

// localFuncStat declares the local *before* compiling the body so the
// function can call itself by name (SPEC_FULL §C.1, grounded in
// original_source/lparser.c's localfunc).
func (p *Parser) localFuncStat(line int) {
	name := p.expect(TIdent, "function name expected").String()
	p.fs.newLocal(name, line)
	p.fs.activateLocals(1)
	fn := p.funcBody(false, line)
	// The closure OpClosure leaves on top of the stack is the new local's
	// slot itself, as with `local x = ...`; no store is needed.
	p.pushExp(fn, p.prev.Line)
}

/* --- function statement (incl. method sugar) --- */

func (p *Parser) funcStat() {
	line := p.curr.Line
	p.advance()
	target, isMethod := p.funcName()
	fn := p.funcBody(isMethod, line)
	p.pushExp(fn, p.prev.Line)
	p.storeVar(target, p.prev.Line)
}

// funcName parses `NAME {'.' NAME} [':' NAME]` and returns the lvalue
// ExpDesc to assign the closure to, plus whether a ':' method suffix was
// present (which makes funcBody insert an implicit `self` parameter, spec
// §4.8).
func (p *Parser) funcName() (ExpDesc, bool) {
	line := p.curr.Line
	name := p.expect(TIdent, "function name expected").String()
	e := p.resolveName(name, line)
	for p.match(TDot) {
		field := p.expect(TIdent, "name expected").String()
		e = p.indexField(e, field, p.prev.Line)
	}
	if p.match(TColon) {
		field := p.expect(TIdent, "method name expected").String()
		e = p.indexField(e, field, p.prev.Line)
		return e, true
	}
	return e, false
}

/* --- assignment / bare call --- */

func (p *Parser) exprStat() {
	line := p.curr.Line
	first := p.suffixedExp()
	if p.check(TEq) || p.check(TComma) {
		p.assignStat(first, line)
		return
	}
	if first.Kind != VCallExp {
		p.fs.abort(line, "syntax error (expected statement)")
	}
	p.fs.emit(OpPop, line) // bare call statement: discard its single result
}

// assignStat parses the `, lvalue` tail and the rhs list, then reconciles
// arity (adjust_mult_assign) and stores back-to-front, per spec §4.2/§9.
// Assumes at most one indexed (table) target per statement, and that it is
// the first target (its table and key sit under every rhs value); real Lua's
// register machine handles any mix because registers are addressable, which
// a pure operand stack is not.
func (p *Parser) assignStat(first ExpDesc, line int) {
	targets := []ExpDesc{first}
	for p.match(TComma) {
		targets = append(targets, p.suffixedExp())
	}
	p.expect(TEq, "'=' expected")
	n, _ := p.exprList()
	p.adjustAssign(len(targets), n, line)

	for i := len(targets) - 1; i >= 0; i-- {
		p.storeVar(targets[i], line)
	}
}

// adjustAssign reconciles a target count against a produced-value count
// (real Lua's adjust_assign): extra values are silently discarded (popped),
// missing ones are padded with nil.
func (p *Parser) adjustAssign(nTargets, nVals int, line int) {
	if nVals > nTargets {
		p.fs.emit1(OpPopN, byte(nVals-nTargets), line)
	} else if nVals < nTargets {
		for i := 0; i < nTargets-nVals; i++ {
			p.fs.emit(OpNil, line)
		}
	}
}

// storeVar emits the appropriate store for an lvalue ExpDesc, consuming the
// value already sitting on top of the stack.
func (p *Parser) storeVar(target ExpDesc, line int) {
	switch target.Kind {
	case VLocalExp:
		p.fs.emit1(OpSetLocal, byte(target.info), line)
	case VUpvalExp:
		p.fs.abort(line, "cannot assign to an upvalue")
	case VGlobalExp:
		idx := p.fs.addStringConst(target.str)
		p.fs.emit1(OpSetGlobal, byte(idx), line)
	case VIndexedExp:
		// index() already pushed table then key; the value being stored is
		// pushed right on top by the caller, giving exactly SETTABLE's "t k
		// v" stack picture with no reshuffling needed.
		p.fs.emit(OpSetTable, line)
		p.fs.emit1(OpPopN, 2, line) // discard leftover t,k
	default:
		p.fs.abort(line, "cannot assign to this expression")
	}
}

/* --- return --- */

func (p *Parser) returnStat() {
	line := p.curr.Line
	p.advance()
	if isBlockEnd(p.curr.Type) || p.check(TSemi) {
		p.fs.emit1(OpReturn, 0, line)
		p.match(TSemi)
		return
	}
	n, open := p.exprList()
	p.match(TSemi)
	if open {
		p.fs.emit1(OpReturn, byte(MultRet), line)
	} else {
		p.fs.emit1(OpReturn, byte(n), line)
	}
}
