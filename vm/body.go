package vm

import "github.com/rami3l/golua/utils"

// funcBody parses `'(' parlist ')' block 'end'` (spec §4.8/§4.9) and returns
// a VRelocableExp wrapping the OpClosure instruction that, at runtime, pairs
// the nested Proto with whatever upvalues it captured. isMethod inserts an
// implicit leading `self` parameter (SPEC_FULL §C.5).
func (p *Parser) funcBody(isMethod bool, defLine int) ExpDesc {
	openLine := p.curr.Line
	p.expect(TLParen, "'(' expected")

	outer := p.fs
	p.fs = newFuncState(outer, p.limits, outer.proto.Source, defLine)

	if isMethod {
		p.fs.newLocal("self", defLine)
		p.fs.activateLocals(1)
	}

	nparams := utils.BoolToInt[int](isMethod)
	if !p.check(TRParen) {
		for {
			if p.match(TEllipsis) {
				p.fs.isVararg = true
				break
			}
			name := p.expect(TIdent, "parameter name expected").String()
			p.fs.newLocal(name, p.prev.Line)
			p.fs.activateLocals(1)
			nparams++
			if nparams > p.limits.MaxParams {
				p.fs.abortResource(openLine, "parameters", p.limits.MaxParams)
			}
			if !p.match(TComma) {
				break
			}
		}
	}
	p.fs.proto.NumParams = nparams

	p.expectMatch(TRParen, TLParen, openLine)

	maxStack := p.block()
	p.fs.emit1(OpReturn, 0, p.prev.Line)
	proto := p.fs.close(maxStack)

	p.fs = outer
	idx := p.fs.addProto(proto)
	pc := p.fs.emit2(OpClosure, byte(idx), byte(len(proto.Upvalues)), p.prev.Line)
	for _, uv := range proto.Upvalues {
		// Upvalue-capture descriptors ride immediately after the CLOSURE
		// instruction as a run of (fromLocal, index) byte pairs, exactly as
		// real Lua's OP_CLOSURE is followed by one OP_MOVE/OP_GETUPVAL per
		// upvalue; the demonstration VM's loader reads them the same way.
		p.fs.proto.Code = append(p.fs.proto.Code, utils.BoolToInt[byte](uv.FromLocal), byte(uv.Index))
	}

	p.expectMatch(TEnd, TFunction, openLine)
	return ExpDesc{Kind: VRelocableExp, info: pc}
}
