package vm

// blockInfo tracks one lexical block (spec §4's Scope Manager): how many
// locals were active on entry (so leaveBlock knows where to truncate back
// to) and whether the block is loop-bodied (so `break` knows how far out it
// has to search before concluding "no loop to enclose this break").
type blockInfo struct {
	prev        *blockInfo
	localsOnEntry int
	isLoop      bool
}

func (fs *FuncState) enterBlock(isLoop bool) {
	fs.blockScope = &blockInfo{prev: fs.blockScope, localsOnEntry: fs.activeLocal, isLoop: isLoop}
	fs.blockDepth++
	if isLoop {
		fs.pushBreakLabel()
	}
}

// leaveBlock pops and closes every local declared inside the block
// (recording debug EndPC per spec §3) and, if the block was a loop, patches
// every pending break jump to land just past that pop.
func (fs *FuncState) leaveBlock() {
	b := fs.blockScope
	if n := fs.activeLocal - b.localsOnEntry; n > 0 {
		fs.emit1(OpPopN, byte(n), fs.line())
	}
	fs.closeLocals(b.localsOnEntry)
	fs.blockScope = b.prev
	fs.blockDepth--
	if b.isLoop {
		bl := fs.popBreakLabel()
		fs.patchListHere(bl.breakList)
	}
}

// emitBreak resolves `break` against the innermost enclosing loop's label,
// per spec §4.2 ("no loop to break" is a CompilationError when none is
// found), directly modeled on real Lua's lparser.c breakstat.
func (fs *FuncState) emitBreak(line int) {
	bl := fs.breaks
	if bl == nil {
		fs.abort(line, "no loop to break")
	}
	if fs.activeLocal > bl.stackLevel {
		fs.emit1(OpPopN, byte(fs.activeLocal-bl.stackLevel), line)
	}
	pc := fs.emitJump(OpJmp, line)
	bl.breakList = append(bl.breakList, pc)
}
