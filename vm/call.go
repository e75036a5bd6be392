package vm

// indexField and index both implement spec §4.6's table-access grammar
// ('.' NAME and '[' expr ']'): push the table, push the key, and return a
// VIndexedExp descriptor deferring the actual GETTABLE/SETTABLE emission to
// whoever consumes it (an rvalue context calls pushExp; an lvalue context
// calls storevar).
func (p *Parser) indexField(base ExpDesc, name string, line int) ExpDesc {
	return p.index(base, strExp(name), line)
}

func (p *Parser) index(base ExpDesc, key ExpDesc, line int) ExpDesc {
	p.pushExp(base, line)
	p.pushExp(key, line)
	return ExpDesc{Kind: VIndexedExp}
}

// call parses funcargs and emits an open OpCall whose result count defaults
// to 1; a consumer that wants more (an open call in tail position of an
// argument list or return statement) or fewer (truncateToOne) fixes up the
// operand byte at e.info+2 before it's ever read. Grounded in spec §4.7's
// "open call" / MULT_RET sentinel discussion.
func (p *Parser) call(fn ExpDesc, line int) ExpDesc {
	p.pushExp(fn, line)
	nargs := p.funcArgs()
	pc := p.fs.emit2(OpCall, byte(nargs), 1, line)
	return ExpDesc{Kind: VCallExp, info: pc}
}

// methodCall parses `base:name(args)`, inserting base itself as the implicit
// first argument (spec §4.7/§4.8's method-call sugar, completed per
// SPEC_FULL §C.5 from original_source/lparser.c's funcargs self-insertion).
func (p *Parser) methodCall(base ExpDesc, name string, line int) ExpDesc {
	p.pushExp(base, line)            // self
	p.fs.emit(OpDup, line)           // self self
	idx := p.fs.addStringConst(name) // self self key
	p.fs.emit1(OpStr, byte(idx), line)
	p.fs.emit(OpGetTable, line) // self method
	p.fs.emit(OpSwap, line)     // method self  (self becomes the implicit first argument)
	nargs := p.funcArgs() + 1
	pc := p.fs.emit2(OpCall, byte(nargs), 1, line)
	return ExpDesc{Kind: VCallExp, info: pc}
}

// funcArgs parses '(' exprlist ')' | tableconstructor | STRING, pushing each
// argument and returning how many were pushed. The last argument, if itself
// an open call or vararg, contributes "however many results it produces"
// (spec §4.7), so funcArgs widens its own nargs return to MultRet in that
// case and the runtime reconciles actual stack depth at call time.
func (p *Parser) funcArgs() int {
	line := p.curr.Line
	switch p.curr.Type {
	case TLParen:
		p.advance()
		if p.match(TRParen) {
			return 0
		}
		n, open := p.exprList()
		p.expectMatch(TRParen, TLParen, line)
		if open {
			return MultRet
		}
		return n
	case TLBrace:
		p.pushExp(p.constructor(), line)
		return 1
	case TStr:
		p.pushExp(strExp(p.curr.String()), line)
		p.advance()
		return 1
	default:
		p.fs.abort(line, "function arguments expected")
		panic(nil)
	}
}

// exprList parses a comma-separated expression list, pushing every value
// but the last (which is returned undischarged so the caller can decide
// whether to truncate it). The bool result reports whether the last
// expression is an open call/vararg (so its result count isn't fixed to 1).
func (p *Parser) exprList() (n int, lastIsOpen bool) {
	first := p.expr()
	n = 1
	last := first
	for p.match(TComma) {
		p.pushExp(last, p.prev.Line)
		last = p.expr()
		n++
	}
	lastIsOpen = last.Kind == VCallExp || last.Kind == VVarargExp
	p.pushExp(last, p.prev.Line) // open calls/varargs push "however many results"; funcArgs/return decide
	return n, lastIsOpen
}
