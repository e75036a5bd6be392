package vm

import (
	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"
)

// Scanner is the lexer driver consumed by the compiler: it produces a stream
// of Tokens from source text. The compiler itself (see parser.go) owns the
// single token of look-ahead described in spec §4.1; Scanner only knows how
// to produce "the next token" on demand.
type Scanner struct {
	start, curr, line int
	src               []rune

	// errs accumulates lexical errors (spec §7 kind 1) so that a source file
	// with several bad characters/unterminated strings reports all of them
	// instead of aborting at the first. This is independent of the parser's
	// own fatal-on-first-error discipline: lexing and parsing are different
	// error domains.
	errs *multierror.Error
}

func NewScanner(src string) *Scanner {
	return &Scanner{src: []rune(src), line: 1}
}

// ScanToken returns the next token in the source, skipping whitespace and
// comments (-- line comments and --[=[ ... ]=] long comments).
func (s *Scanner) ScanToken() Token {
	s.skipWhitespace()
	s.start = s.curr
	if s.isAtEnd() {
		return s.makeToken(TEOF)
	}

	c := s.advance()
	switch {
	case isDigit(c):
		return s.number()
	case isAlpha(c):
		for p := s.peek(); isAlpha(p) || isDigit(p); p = s.peek() {
			s.advance()
		}
		return s.makeToken(s.identType())
	}

	switch c {
	case '(':
		return s.makeToken(TLParen)
	case ')':
		return s.makeToken(TRParen)
	case '{':
		return s.makeToken(TLBrace)
	case '}':
		return s.makeToken(TRBrace)
	case '[':
		if s.peek() == '[' || s.peek() == '=' {
			if tok, ok := s.tryLongBracket(); ok {
				return tok
			}
		}
		return s.makeToken(TLBrack)
	case ']':
		return s.makeToken(TRBrack)
	case ';':
		return s.makeToken(TSemi)
	case ':':
		return s.makeToken(TColon)
	case ',':
		return s.makeToken(TComma)
	case '+':
		return s.makeToken(TPlus)
	case '-':
		return s.makeToken(TMinus)
	case '*':
		return s.makeToken(TStar)
	case '/':
		return s.makeToken(TSlash)
	case '^':
		return s.makeToken(TCaret)
	case '%':
		return s.makeToken(TPercent)
	case '=':
		if s.match('=') {
			return s.makeToken(TEqEq)
		}
		return s.makeToken(TEq)
	case '~':
		if s.match('=') {
			return s.makeToken(TNotEq)
		}
		return s.errorToken("'~' must be followed by '='")
	case '<':
		if s.match('=') {
			return s.makeToken(TLe)
		}
		return s.makeToken(TLt)
	case '>':
		if s.match('=') {
			return s.makeToken(TGe)
		}
		return s.makeToken(TGt)
	case '.':
		if s.match('.') {
			if s.match('.') {
				return s.makeToken(TEllipsis)
			}
			return s.makeToken(TConcat)
		}
		if isDigit(s.peek()) {
			s.curr = s.start
			return s.number()
		}
		return s.makeToken(TDot)
	case '"', '\'':
		return s.shortString(c)
	}

	return s.errorToken("unexpected character")
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case '\n':
			s.line++
			fallthrough
		case ' ', '\r', '\t':
			s.advance()
		case '-':
			if s.peekNext() != '-' {
				return
			}
			s.advance()
			s.advance()
			if s.peek() == '[' {
				save := s.curr
				s.advance() // tryLongBracket starts just after the opening '['
				if _, ok := s.tryLongBracket(); ok {
					continue
				}
				s.curr = save
			}
			for s.peek() != '\n' && !s.isAtEnd() {
				s.advance()
			}
		default:
			return
		}
	}
}

// tryLongBracket consumes a [=*[ ... ]=*] long-bracketed span (used by both
// long strings and long comments) starting just after the opening '['. It
// returns ok=false (and leaves s.curr unchanged) if what follows is not a
// valid long-bracket opening, so the caller can fall back to treating the
// '[' as an ordinary token or comment-terminating newline scan.
func (s *Scanner) tryLongBracket() (Token, bool) {
	save := s.curr
	level := 0
	for s.peek() == '=' {
		level++
		s.advance()
	}
	if s.peek() != '[' {
		s.curr = save
		return Token{}, false
	}
	s.advance()
	if s.peek() == '\n' {
		s.line++
		s.advance()
	}

	contentStart := s.curr
	for {
		if s.isAtEnd() {
			return s.errorToken("unterminated long bracket"), true
		}
		if s.peek() == ']' {
			closeStart := s.curr
			s.advance()
			closeLevel := 0
			for s.peek() == '=' {
				closeLevel++
				s.advance()
			}
			if closeLevel == level && s.peek() == ']' {
				content := s.src[contentStart:closeStart]
				s.advance()
				return s.makeTokenWithRunes(TStr, content), true
			}
			continue
		}
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}
}

func (s *Scanner) number() Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	if e := s.peek(); e == 'e' || e == 'E' {
		save := s.curr
		s.advance()
		if s.peek() == '+' || s.peek() == '-' {
			s.advance()
		}
		if isDigit(s.peek()) {
			for isDigit(s.peek()) {
				s.advance()
			}
		} else {
			s.curr = save
		}
	}
	return s.makeToken(TNumber)
}

func (s *Scanner) shortString(quote rune) Token {
	for {
		if s.isAtEnd() {
			return s.errorToken("unterminated string")
		}
		switch s.peek() {
		case '\n':
			return s.errorToken("unterminated string")
		case quote:
			s.advance()
			return s.makeTokenWithRunes(TStr, s.src[s.start+1:s.curr-1])
		case '\\':
			s.advance()
			if !s.isAtEnd() {
				s.advance()
			}
			continue
		}
		s.advance()
	}
}

func (s *Scanner) advance() (res rune) {
	res = s.src[s.curr]
	s.curr++
	return
}

func (s *Scanner) peek() (res rune) {
	if s.isAtEnd() {
		return 0
	}
	return s.src[s.curr]
}

func (s *Scanner) peekNext() (res rune) {
	if s.isAtEnd() || s.curr+1 >= len(s.src) {
		return 0
	}
	return s.src[s.curr+1]
}

func (s *Scanner) match(expected rune) bool {
	if c := s.peek(); c == 0 || c != expected {
		return false
	}
	s.curr++
	return true
}

func (s *Scanner) isAtEnd() bool { return s.curr >= len(s.src) }

func isAlpha(c rune) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' }
func isDigit(c rune) bool { return c >= '0' && c <= '9' }

// identType classifies an already-scanned [s.start, s.curr) run of
// letters/digits as a keyword or a plain identifier.
func (s *Scanner) identType() TokenType {
	checkKeyword := func(start int, rest string, ty TokenType) TokenType {
		absStart := s.start + start
		if s.curr-absStart == len(rest) && slices.Equal(s.src[absStart:s.curr], []rune(rest)) {
			return ty
		}
		return TIdent
	}

	switch s.src[s.start] {
	case 'a':
		return checkKeyword(1, "nd", TAnd)
	case 'b':
		return checkKeyword(1, "reak", TBreak)
	case 'd':
		return checkKeyword(1, "o", TDo)
	case 'e':
		if s.curr-s.start > 1 {
			switch s.src[s.start+1] {
			case 'l':
				if s.curr-s.start == 4 {
					return checkKeyword(2, "se", TElse)
				}
				return checkKeyword(2, "seif", TElseif)
			case 'n':
				return checkKeyword(2, "d", TEnd)
			}
		}
	case 'f':
		if s.curr-s.start > 1 {
			switch s.src[s.start+1] {
			case 'a':
				return checkKeyword(2, "lse", TFalse)
			case 'o':
				return checkKeyword(2, "r", TFor)
			case 'u':
				return checkKeyword(2, "nction", TFunction)
			}
		}
	case 'i':
		if s.curr-s.start > 1 {
			switch s.src[s.start+1] {
			case 'f':
				return checkKeyword(2, "", TIf)
			case 'n':
				return checkKeyword(2, "", TIn)
			}
		}
	case 'l':
		return checkKeyword(1, "ocal", TLocal)
	case 'n':
		if s.curr-s.start > 1 {
			switch s.src[s.start+1] {
			case 'i':
				return checkKeyword(2, "l", TNil)
			case 'o':
				return checkKeyword(2, "t", TNot)
			}
		}
	case 'o':
		return checkKeyword(1, "r", TOr)
	case 'r':
		if s.curr-s.start > 2 && s.src[s.start+1] == 'e' {
			if s.src[s.start+2] == 'p' {
				return checkKeyword(3, "eat", TRepeat)
			}
			return checkKeyword(2, "turn", TReturn)
		}
	case 't':
		if s.curr-s.start > 1 {
			switch s.src[s.start+1] {
			case 'h':
				return checkKeyword(2, "en", TThen)
			case 'r':
				return checkKeyword(2, "ue", TTrue)
			}
		}
	case 'u':
		return checkKeyword(1, "ntil", TUntil)
	case 'w':
		return checkKeyword(1, "hile", TWhile)
	}
	return TIdent
}

func (s *Scanner) makeToken(ty TokenType) Token {
	return Token{Type: ty, Line: s.line, Runes: s.src[s.start:s.curr]}
}

func (s *Scanner) makeTokenWithRunes(ty TokenType, runes []rune) Token {
	return Token{Type: ty, Line: s.line, Runes: runes}
}

func (s *Scanner) errorToken(reason string) Token {
	t := s.makeToken(TErr)
	t.Runes = []rune(reason)
	s.errs = multierror.Append(s.errs, &compileError{line: s.line, reason: reason})
	return t
}

// Errors returns the accumulated lexical errors, if any.
func (s *Scanner) Errors() error { return s.errs.ErrorOrNil() }
