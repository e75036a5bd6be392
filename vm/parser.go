package vm

import (
	"github.com/sirupsen/logrus"

	"github.com/rami3l/golua/debug"
	e "github.com/rami3l/golua/errors"
)

// Parser is the single-pass driver: it owns one token of look-ahead (spec
// §4.1) and the currently-open FuncState chain. There is no separate AST:
// every parsing method below both recognizes grammar and emits code (or
// returns an ExpDesc describing code not yet emitted), exactly as spec §1
// mandates ("fuses parsing and code generation into a single pass").
type Parser struct {
	scanner *Scanner
	fs      *FuncState
	prev, curr Token
	limits  Limits
	source  string
}

// Compile parses src as a top-level chunk (implicitly a vararg function with
// no parameters, per spec §4.9) and returns its compiled Proto, or the first
// fatal CompilationError/ResourceError encountered. There is no error
// recovery: spec §7 is explicit that a second error in the same compile is
// never reported, so Compile recovers exactly one compileAbort.
func Compile(source, chunkName string, limits Limits) (proto *Proto, err error) {
	p := &Parser{scanner: NewScanner(source), limits: limits, source: chunkName}

	defer func() {
		if r := recover(); r != nil {
			abort, ok := r.(compileAbort)
			if !ok {
				panic(r)
			}
			err = abort.err
		}
	}()

	p.fs = newFuncState(nil, limits, chunkName, 0)
	p.fs.isVararg = true
	p.advance()
	if lexErr := p.scanner.Errors(); lexErr != nil {
		return nil, lexErr
	}

	maxStack := p.block()
	p.expect(TEOF, "expected <eof>")
	if lexErr := p.scanner.Errors(); lexErr != nil {
		return nil, lexErr
	}
	p.fs.emit1(OpReturn, 0, p.prev.Line)
	proto = p.fs.close(maxStack)

	if debug.DEBUG {
		logrus.Debugln(proto.Disassemble(chunkName))
	}
	return proto, nil
}

/* --- token stream --- */

func (p *Parser) advance() {
	p.prev = p.curr
	for {
		p.curr = p.scanner.ScanToken()
		if p.curr.Type != TErr {
			break
		}
	}
}

func (p *Parser) check(ty TokenType) bool { return p.curr.Type == ty }

func (p *Parser) match(ty TokenType) bool {
	if !p.check(ty) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(ty TokenType, reason string) Token {
	if !p.check(ty) {
		p.fs.abort(p.curr.Line, "%s (got %s)", reason, p.curr.Type)
	}
	t := p.curr
	p.advance()
	return t
}

func (p *Parser) expectMatch(ty TokenType, openTok TokenType, openLine int) Token {
	if p.check(ty) {
		t := p.curr
		p.advance()
		return t
	}
	if openLine == p.prev.Line {
		p.fs.abort(p.curr.Line, "%s expected", ty)
	}
	p.fs.abort(p.curr.Line, "%s expected (to close %s at line %d)", ty, openTok, openLine)
	panic(e.Unreachable)
}
