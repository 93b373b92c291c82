package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for bblang
// ---------------------------------------------------------------------------

// ParseError is a syntax error. Parsing stops at the first one.
type ParseError struct {
	Pos Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Parser parses bblang source code into an AST using one token of
// lookahead.
type Parser struct {
	lexer    *Lexer
	curToken Token
	inUnsafe bool // inside an unsafe block, where registers are allowed
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	return p
}

// Parse parses a complete source file.
func Parse(input string) (*Program, error) {
	return NewParser(input).ParseProgram()
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// expect consumes the current token if it has type t.
func (p *Parser) expect(t TokenType) error {
	if p.curTokenIs(t) {
		p.nextToken()
		return nil
	}
	return p.errorf("expected '%s', found %s", t, p.curToken)
}

// errorf returns a ParseError at the current token.
func (p *Parser) errorf(format string, args ...interface{}) error {
	return p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...interface{}) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses functions until EOF.
func (p *Parser) ParseProgram() (*Program, error) {
	prog := &Program{}
	for !p.curTokenIs(TokenEOF) {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

// parseFunction parses: fn main() { body }
func (p *Parser) parseFunction() (*Function, error) {
	pos := p.curToken.Pos
	if !p.curTokenIs(TokenFn) {
		return nil, p.errorf("expected 'fn' keyword, found %s", p.curToken)
	}
	p.nextToken()

	if !p.curTokenIs(TokenIdentifier) {
		return nil, p.errorf("expected identifier after fn, found %s", p.curToken)
	}
	name := p.curToken.Literal
	if name != "main" {
		return nil, p.errorf("only `main` is supported, found function '%s'", name)
	}
	p.nextToken()

	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &Function{Name: name, Params: []string{}, Body: body, Pos: pos}, nil
}

// parseBlock parses { statements } at function level or inside unsafe.
func (p *Parser) parseBlock() ([]Stmt, error) {
	if err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}

	var body []Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		st, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, st)
	}

	if err := p.expect(TokenRBrace); err != nil {
		return nil, err
	}
	return body, nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() (Stmt, error) {
	switch p.curToken.Type {
	case TokenSemicolon:
		pos := p.curToken.Pos
		p.nextToken()
		return &EmptyStmt{Pos: pos}, nil

	case TokenIdentifier:
		if p.curToken.Literal == "unsafe" {
			return p.parseUnsafe()
		}
		instr, err := p.parseInstruction()
		if err != nil {
			return nil, err
		}
		return &InstrStmt{Instr: instr}, nil
	}

	if p.inUnsafe {
		return nil, p.errorf("unsupported token in unsafe body: %s", p.curToken)
	}
	return nil, p.errorf("unsupported token in body: %s", p.curToken)
}

// parseUnsafe parses: unsafe { statements }
func (p *Parser) parseUnsafe() (Stmt, error) {
	pos := p.curToken.Pos
	if p.inUnsafe {
		return nil, p.errorf("nested unsafe block")
	}
	p.nextToken()

	p.inUnsafe = true
	body, err := p.parseBlock()
	p.inUnsafe = false
	if err != nil {
		return nil, err
	}
	return &UnsafeBlock{Body: body, Pos: pos}, nil
}

// parseInstruction parses: NAME [ ( operand {, operand} [,] ) ] [;]
func (p *Parser) parseInstruction() (*Instruction, error) {
	instr := &Instruction{Name: p.curToken.Literal, Pos: p.curToken.Pos}
	p.nextToken()

	if p.curTokenIs(TokenLParen) {
		p.nextToken()
		for !p.curTokenIs(TokenRParen) {
			op, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			instr.Args = append(instr.Args, op)

			switch {
			case p.curTokenIs(TokenComma):
				p.nextToken()
			case p.curTokenIs(TokenRParen):
			default:
				return nil, p.errorf("expected ',' or ')', found %s", p.curToken)
			}
		}
		p.nextToken() // )
	}

	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return instr, nil
}

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

func (p *Parser) parseOperand() (Operand, error) {
	tok := p.curToken
	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		return Imm{Value: tok.Value}, nil

	case TokenString:
		p.nextToken()
		return Str{Value: tok.Literal}, nil

	case TokenChar:
		p.nextToken()
		return Char{Value: uint8(tok.Value)}, nil

	case TokenIdentifier:
		if !isRegisterName(tok.Literal) {
			p.nextToken()
			return Ident{Name: tok.Literal}, nil
		}
		if !p.inUnsafe {
			return nil, p.errorf("register %s used outside unsafe block", tok.Literal)
		}
		n, err := strconv.ParseUint(tok.Literal[1:], 10, 8)
		if err != nil {
			return nil, p.errorf("register %s out of range (max R255)", tok.Literal)
		}
		p.nextToken()
		return Reg{Index: uint8(n)}, nil
	}

	return nil, p.errorf("unexpected operand: %s", tok)
}

// isRegisterName reports whether ident has the form R<digits> or r<digits>.
func isRegisterName(ident string) bool {
	if len(ident) < 2 || (ident[0] != 'R' && ident[0] != 'r') {
		return false
	}
	for i := 1; i < len(ident); i++ {
		if ident[i] < '0' || ident[i] > '9' {
			return false
		}
	}
	return true
}
