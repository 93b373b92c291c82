package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: advisory checks on main
// ---------------------------------------------------------------------------

// Warning is a non-fatal finding. Warnings never change the encoded output.
type Warning struct {
	Pos Position
	Msg string
}

func (w Warning) String() string {
	return fmt.Sprintf("warning: line %s: %s", w.Pos, w.Msg)
}

// SemanticAnalyzer walks main in execution order, the same order the encoder
// emits it, and records suspicious but encodable code.
type SemanticAnalyzer struct {
	warnings []Warning

	written     map[uint8]bool // registers assigned so far
	reported    map[uint8]bool // registers already warned about
	stackDepth  int
	halted      bool
	unreachable bool // unreachable code already reported
}

// NewSemanticAnalyzer creates a new semantic analyzer.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	return &SemanticAnalyzer{
		written:  make(map[uint8]bool),
		reported: make(map[uint8]bool),
	}
}

// Warnings returns accumulated warnings in source order.
func (s *SemanticAnalyzer) Warnings() []Warning {
	return s.warnings
}

func (s *SemanticAnalyzer) warnAt(pos Position, format string, args ...interface{}) {
	s.warnings = append(s.warnings, Warning{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// AnalyzeFunction checks the body of fn.
func (s *SemanticAnalyzer) AnalyzeFunction(fn *Function) {
	s.analyzeStatements(fn.Body)
}

func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	for _, st := range stmts {
		switch st := st.(type) {
		case *InstrStmt:
			s.analyzeInstruction(st.Instr)
		case *UnsafeBlock:
			if !hasInstructions(st.Body) {
				s.warnAt(st.Pos, "empty unsafe block")
			}
			s.analyzeStatements(st.Body)
		}
	}
}

func hasInstructions(stmts []Stmt) bool {
	for _, st := range stmts {
		if _, ok := st.(*InstrStmt); ok {
			return true
		}
	}
	return false
}

func (s *SemanticAnalyzer) analyzeInstruction(in *Instruction) {
	if s.halted && !s.unreachable {
		s.warnAt(in.Pos, "unreachable code after HALT")
		s.unreachable = true
	}

	switch strings.ToUpper(in.Name) {
	case "HALT":
		s.halted = true
	case "MOV":
		if len(in.Args) == 2 {
			s.read(in, in.Args[1])
			s.write(in.Args[0])
		}
	case "ADD":
		if len(in.Args) == 2 {
			s.read(in, in.Args[0])
			s.read(in, in.Args[1])
			s.write(in.Args[0])
		}
	case "PUSH":
		if len(in.Args) == 1 {
			s.read(in, in.Args[0])
		}
		s.stackDepth++
	case "POP":
		if s.stackDepth == 0 {
			s.warnAt(in.Pos, "POP from an empty stack")
		} else {
			s.stackDepth--
		}
		if len(in.Args) == 1 {
			s.write(in.Args[0])
		}
	case "PRINTREG":
		if len(in.Args) == 1 {
			s.read(in, in.Args[0])
		}
	}
}

// read reports a register operand that has not been assigned yet.
func (s *SemanticAnalyzer) read(in *Instruction, op Operand) {
	r, ok := op.(Reg)
	if !ok || s.written[r.Index] || s.reported[r.Index] {
		return
	}
	s.reported[r.Index] = true
	s.warnAt(in.Pos, "register R%d is read before it is written", r.Index)
}

func (s *SemanticAnalyzer) write(op Operand) {
	if r, ok := op.(Reg); ok {
		s.written[r.Index] = true
	}
}

// ---------------------------------------------------------------------------
// Integration with Compile function
// ---------------------------------------------------------------------------

// Analyze runs semantic analysis on main and returns its warnings. A program
// without main has nothing to analyze.
func Analyze(prog *Program) []Warning {
	fn := prog.Function("main")
	if fn == nil {
		return nil
	}
	analyzer := NewSemanticAnalyzer()
	analyzer.AnalyzeFunction(fn)
	return analyzer.Warnings()
}
