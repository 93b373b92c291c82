package compiler

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for bblang source
// ---------------------------------------------------------------------------

// Lexer tokenizes bblang source code. It never fails: bytes it does not
// recognize are skipped, and malformed literals still produce a token.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of current character (1-based)
	col     int  // column of current character (1-based, in runes)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}

	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = len(l.input)
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// atEOF reports whether the whole input has been consumed. A NUL byte inside
// the input is an ordinary (skipped) character, not the end.
func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// NextToken returns the next token. Once the input is exhausted it keeps
// returning TokenEOF.
func (l *Lexer) NextToken() Token {
	for {
		l.skipWhitespace()

		pos := l.position()
		if l.atEOF() {
			return Token{Type: TokenEOF, Pos: pos}
		}

		switch {
		case l.ch == '(':
			l.readChar()
			return Token{Type: TokenLParen, Literal: "(", Pos: pos}

		case l.ch == ')':
			l.readChar()
			return Token{Type: TokenRParen, Literal: ")", Pos: pos}

		case l.ch == '{':
			l.readChar()
			return Token{Type: TokenLBrace, Literal: "{", Pos: pos}

		case l.ch == '}':
			l.readChar()
			return Token{Type: TokenRBrace, Literal: "}", Pos: pos}

		case l.ch == ',':
			l.readChar()
			return Token{Type: TokenComma, Literal: ",", Pos: pos}

		case l.ch == ';':
			l.readChar()
			return Token{Type: TokenSemicolon, Literal: ";", Pos: pos}

		case l.ch == '"':
			return l.readString(pos)

		case l.ch == '\'':
			return l.readCharLiteral(pos)

		case unicode.IsNumber(l.ch):
			return l.readNumber(pos)

		case unicode.IsLetter(l.ch) || l.ch == '_':
			return l.readIdentifier(pos)

		default:
			// Unrecognized characters are dropped silently.
			l.readChar()
		}
	}
}

// skipWhitespace skips Unicode whitespace.
func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && unicode.IsSpace(l.ch) {
		l.readChar()
	}
}

// readIdentifier reads an identifier or the fn keyword.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for !l.atEOF() && (unicode.IsLetter(l.ch) || unicode.IsNumber(l.ch) || l.ch == '_') {
		l.readChar()
	}
	ident := l.input[start:l.pos]
	return Token{Type: LookupIdent(ident), Literal: ident, Pos: pos}
}

// readNumber reads a decimal or 0x-prefixed hexadecimal integer. The run of
// characters is taken greedily (hex digits and x/X), so text such as "12ab"
// or "0x" forms a single token whose value is 0.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	l.readChar()
	for !l.atEOF() && (isHexDigit(l.ch) || l.ch == 'x' || l.ch == 'X') {
		l.readChar()
	}
	text := l.input[start:l.pos]
	return Token{Type: TokenInteger, Literal: text, Value: parseInteger(text), Pos: pos}
}

func parseInteger(text string) int64 {
	var (
		v   int64
		err error
	)
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		v, err = strconv.ParseInt(text[2:], 16, 64)
	} else {
		v, err = strconv.ParseInt(text, 10, 64)
	}
	if err != nil {
		return 0
	}
	return v
}

// readString reads a double-quoted string. The opening quote is the current
// character. An unterminated string runs to the end of the input.
func (l *Lexer) readString(pos Position) Token {
	var sb strings.Builder
	l.readChar() // skip opening "

	for !l.atEOF() {
		switch l.ch {
		case '"':
			l.readChar()
			return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
		case '\\':
			l.readChar()
			if l.atEOF() {
				break
			}
			sb.WriteRune(unescape(l.ch))
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

func unescape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		// \\, \" and any unknown escape yield the character itself.
		return ch
	}
}

// readCharLiteral reads a character literal: a quote, one character, and a closing
// quote that may be missing. A lone quote at the end of the input yields EOF.
// The value is the low byte of the code point.
func (l *Lexer) readCharLiteral(pos Position) Token {
	l.readChar() // skip opening '
	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: l.position()}
	}

	ch := l.ch
	l.readChar()
	if !l.atEOF() && l.ch == '\'' {
		l.readChar()
	}
	return Token{Type: TokenChar, Literal: string(ch), Value: int64(uint8(ch)), Pos: pos}
}

func isHexDigit(ch rune) bool {
	return ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

// Tokenize returns every token in input, ending with a single TokenEOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
