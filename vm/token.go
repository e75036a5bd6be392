package vm

import "golang.org/x/exp/slices"

// Token is the (kind, lexeme, line) tuple the scanner hands to the compiler,
// per spec §6's lexer contract.
type Token struct {
	Type TokenType
	Line int
	// Runes is the lexeme for most tokens, the unescaped error message for
	// TErr, and the already-unquoted body for TStr (see Scanner.shortString
	// and Scanner.tryLongBracket: both hand back the content, not the raw
	// source including quotes/brackets).
	Runes []rune
}

func (t Token) String() string  { return string(t.Runes) }
func (t Token) Eq(u Token) bool { return t.Type == u.Type && slices.Equal(t.Runes, u.Runes) }

//go:generate stringer -type=TokenType
type TokenType int

const (
	// Punctuation.
	TLParen TokenType = iota
	TRParen
	TLBrace
	TRBrace
	TLBrack
	TRBrack
	TComma
	TSemi
	TColon
	TDot
	TConcat   // ..
	TEllipsis // ...
	TPlus
	TMinus
	TStar
	TSlash
	TCaret   // ^
	TPercent // % (used only as the upvalue-reference sigil, see spec §4.4)
	TEq
	TEqEq
	TNotEq // ~=
	TLt
	TLe
	TGt
	TGe

	// Literals.
	TIdent
	TNumber
	TStr

	// Keywords.
	TAnd
	TBreak
	TDo
	TElse
	TElseif
	TEnd
	TFalse
	TFor
	TFunction
	TIf
	TIn
	TLocal
	TNil
	TNot
	TOr
	TRepeat
	TReturn
	TThen
	TTrue
	TUntil
	TWhile

	TErr
	TEOF
)
