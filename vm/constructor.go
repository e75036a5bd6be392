package vm

// constructor parses a table literal (spec §4.5): `{` (field (',' | ';')? `}`
// where a field is either `[expr] = expr`, `NAME = expr`, or a bare expr
// (appended to the array part). List-fields are batched into one OpSetList
// and record-fields into one OpSetMap, each flushed whenever the other kind
// of field interrupts the run — matching real Lua's lparser.c constructor,
// which batches LFIELDS_PER_FLUSH fields at a time; here there is no size
// cap per flush, only a flush on kind-change, since the demonstration VM has
// no register-count ceiling to respect mid-constructor.
func (p *Parser) constructor() ExpDesc {
	openLine := p.curr.Line
	p.expect(TLBrace, "'{' expected")

	tablePC := p.fs.emit1(OpNewTable, 0, openLine)

	var pendingList, pendingMap int
	flushList := func() {
		if pendingList > 0 {
			p.fs.emit1(OpSetList, byte(pendingList), p.prev.Line)
			pendingList = 0
		}
	}
	flushMap := func() {
		if pendingMap > 0 {
			p.fs.emit1(OpSetMap, byte(pendingMap), p.prev.Line)
			pendingMap = 0
		}
	}

	for !p.check(TRBrace) && !p.check(TEOF) {
		switch {
		case p.check(TLBrack):
			flushList()
			p.advance()
			key := p.expr()
			p.expect(TRBrack, "']' expected")
			p.expect(TEq, "'=' expected")
			p.pushExp(key, p.prev.Line)
			val := p.expr()
			p.pushExp(val, p.prev.Line)
			pendingMap++
		case p.check(TIdent) && p.peekIsAssign():
			flushList()
			name := p.curr.String()
			p.advance()
			p.advance() // '='
			p.pushExp(strExp(name), p.prev.Line)
			val := p.expr()
			p.pushExp(val, p.prev.Line)
			pendingMap++
		default:
			flushMap()
			val := p.expr()
			p.pushExp(val, p.prev.Line)
			pendingList++
		}

		if !p.match(TComma) && !p.match(TSemi) {
			break
		}
	}
	flushList()
	flushMap()

	p.expectMatch(TRBrace, TLBrace, openLine)
	return ExpDesc{Kind: VRelocableExp, info: tablePC}
}

// peekIsAssign distinguishes `NAME = expr` from a bare NAME expression used
// as a list-field value; it consumes no tokens (single token of look-ahead
// per spec §4.1 means this actually needs a 2-token peek, implemented here
// by scanning ahead and restoring the scanner's position).
func (p *Parser) peekIsAssign() bool {
	save := *p.scanner
	next := p.scanner.ScanToken()
	*p.scanner = save
	return next.Type == TEq
}
