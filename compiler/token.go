package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the bblang lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Keywords
	TokenFn // fn

	// Literals
	TokenIdentifier // main, PRINTLN, R0, unsafe
	TokenInteger    // 42, 0x2A
	TokenString     // "hello\n"
	TokenChar       // 'A'

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenFn:         "fn",
	TokenIdentifier: "IDENTIFIER",
	TokenInteger:    "INTEGER",
	TokenString:     "STRING",
	TokenChar:       "CHAR",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenSemicolon:  ";",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // identifier name, decoded string or char, raw number text
	Value   int64    // numeric value of TokenInteger and TokenChar
	Pos     Position // start position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenFn, TokenLParen, TokenRParen, TokenLBrace, TokenRBrace, TokenComma, TokenSemicolon:
		return fmt.Sprintf("'%s'", t.Type)
	case TokenInteger:
		return fmt.Sprintf("%s(%d)", t.Type, t.Value)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types. Only "fn" is reserved;
// "unsafe" is an ordinary identifier that the parser treats specially.
var reservedWords = map[string]TokenType{
	"fn": TokenFn,
}

// LookupIdent returns the token type for an identifier or reserved word.
func LookupIdent(ident string) TokenType {
	if tok, ok := reservedWords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}
