package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for bblang
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Program is a parsed source file: its functions in source order.
type Program struct {
	Functions []*Function
}

// Function looks up a function by name.
func (p *Program) Function(name string) *Function {
	for _, fn := range p.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Function is a function definition. Params is always empty; the grammar has
// no parameter list yet.
type Function struct {
	Name   string
	Params []string
	Body   []Stmt
	Pos    Position
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	stmt() // marker method
}

// EmptyStmt is a bare ";".
type EmptyStmt struct {
	Pos Position
}

// InstrStmt wraps a single instruction.
type InstrStmt struct {
	Instr *Instruction
}

// UnsafeBlock is an "unsafe { ... }" block. Its statements are only ever
// EmptyStmt or InstrStmt; registers may only appear inside one.
type UnsafeBlock struct {
	Body []Stmt
	Pos  Position
}

func (*EmptyStmt) stmt()   {}
func (*InstrStmt) stmt()   {}
func (*UnsafeBlock) stmt() {}

// Instruction is a mnemonic with its operands. The mnemonic is kept as
// written; the encoder matches it case-insensitively.
type Instruction struct {
	Name string
	Args []Operand
	Pos  Position
}

// ---------------------------------------------------------------------------
// Operand nodes
// ---------------------------------------------------------------------------

// Operand is the interface for instruction operands.
type Operand interface {
	operand() // marker method
}

// Imm is an integer literal.
type Imm struct {
	Value int64
}

// Reg is a register reference such as R3.
type Reg struct {
	Index uint8
}

// Str is a string literal with escapes already decoded.
type Str struct {
	Value string
}

// Char is a character literal, truncated to one byte.
type Char struct {
	Value uint8
}

// Ident is any other bare identifier. No instruction accepts one today.
type Ident struct {
	Name string
}

func (Imm) operand()   {}
func (Reg) operand()   {}
func (Str) operand()   {}
func (Char) operand()  {}
func (Ident) operand() {}

// ---------------------------------------------------------------------------
// Debug dump
// ---------------------------------------------------------------------------

// Dump renders the program as an indented tree for debug output.
func Dump(prog *Program) string {
	var sb strings.Builder
	sb.WriteString("Program\n")
	for _, fn := range prog.Functions {
		fmt.Fprintf(&sb, "  Function %s (%s)\n", fn.Name, fn.Pos)
		for _, st := range fn.Body {
			dumpStmt(&sb, st, "    ")
		}
	}
	return sb.String()
}

func dumpStmt(sb *strings.Builder, st Stmt, indent string) {
	switch s := st.(type) {
	case *EmptyStmt:
		fmt.Fprintf(sb, "%sEmpty\n", indent)
	case *InstrStmt:
		fmt.Fprintf(sb, "%sInstr %s\n", indent, FormatInstruction(s.Instr))
	case *UnsafeBlock:
		fmt.Fprintf(sb, "%sUnsafe\n", indent)
		for _, inner := range s.Body {
			dumpStmt(sb, inner, indent+"  ")
		}
	}
}

// FormatInstruction renders an instruction back in source form, e.g.
// `MOV(R1, 42)`.
func FormatInstruction(in *Instruction) string {
	if len(in.Args) == 0 {
		return in.Name
	}
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = FormatOperand(a)
	}
	return in.Name + "(" + strings.Join(args, ", ") + ")"
}

// FormatOperand renders an operand in source form.
func FormatOperand(op Operand) string {
	switch o := op.(type) {
	case Imm:
		return fmt.Sprintf("%d", o.Value)
	case Reg:
		return fmt.Sprintf("R%d", o.Index)
	case Str:
		return fmt.Sprintf("%q", o.Value)
	case Char:
		return fmt.Sprintf("'%c'", rune(o.Value))
	case Ident:
		return o.Name
	}
	return "?"
}
