package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/bblang/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: Encode the AST into a bcx container
// ---------------------------------------------------------------------------

// ErrMissingMain is returned when a program has no main function.
var ErrMissingMain = errors.New("missing main")

// EncodeError is raised when an instruction cannot be encoded.
type EncodeError struct {
	Mnemonic string
	Pos      Position
	Msg      string
}

// Error renders "line L:C: MNEMONIC: msg", dropping the mnemonic when the
// message already names it.
func (e *EncodeError) Error() string {
	if e.Mnemonic == "" || strings.Contains(e.Msg, e.Mnemonic) {
		return fmt.Sprintf("line %s: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("line %s: %s: %s", e.Pos, e.Mnemonic, e.Msg)
}

// Compiler encodes a parsed program. It writes nothing on failure.
type Compiler struct {
	builder *bytecode.Builder
}

// NewCompiler creates a new compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Emit encodes the body of main and returns a complete container file.
// Functions other than main are ignored.
func Emit(prog *Program) ([]byte, error) {
	return NewCompiler().Emit(prog)
}

// Emit encodes the body of main and returns a complete container file.
func (c *Compiler) Emit(prog *Program) ([]byte, error) {
	mainFn := prog.Function("main")
	if mainFn == nil {
		return nil, ErrMissingMain
	}

	c.builder = bytecode.NewBuilder()
	for _, st := range mainFn.Body {
		switch s := st.(type) {
		case *InstrStmt:
			if err := c.emitInstr(s.Instr); err != nil {
				return nil, err
			}
		case *UnsafeBlock:
			for _, inner := range s.Body {
				if is, ok := inner.(*InstrStmt); ok {
					if err := c.emitInstr(is.Instr); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return c.builder.Container(), nil
}

// Compile parses and encodes source in one step.
func Compile(source string) ([]byte, error) {
	prog, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return Emit(prog)
}

// ---------------------------------------------------------------------------
// Instruction encoding
// ---------------------------------------------------------------------------

// instrRule encodes one source mnemonic.
type instrRule struct {
	Usage   string            // operand summary shown in editor hover
	Opcodes []bytecode.Opcode // opcodes the rule may emit
	Emit    func(c *Compiler, in *Instruction) error
}

// instrRules maps upper-case source mnemonics to their encoders.
var instrRules map[string]instrRule

func init() {
	instrRules = map[string]instrRule{
		"WRITE": {"WRITE(fd, \"text\")",
			[]bytecode.Opcode{bytecode.OpWrite}, (*Compiler).emitWrite},
		"PRINTLN": {"PRINTLN() | PRINTLN(\"text\") | PRINTLN('c')",
			[]bytecode.Opcode{bytecode.OpWrite, bytecode.OpPrint, bytecode.OpNewline}, (*Compiler).emitPrintln},
		"NEWLINE": {"NEWLINE",
			[]bytecode.Opcode{bytecode.OpNewline}, (*Compiler).emitNewline},
		"HALT": {"HALT",
			[]bytecode.Opcode{bytecode.OpHalt}, (*Compiler).emitHalt},
		"PRINT": {"PRINT('c') | PRINT(imm)",
			[]bytecode.Opcode{bytecode.OpPrint}, (*Compiler).emitPrint},
		"MOV": {"MOV(Rd, imm) | MOV(Rd, Rs)",
			[]bytecode.Opcode{bytecode.OpMovImm, bytecode.OpMovReg}, (*Compiler).emitMov},
		"ADD": {"ADD(Rd, Rs)",
			[]bytecode.Opcode{bytecode.OpAdd}, (*Compiler).emitAdd},
		"PUSH": {"PUSH(imm) | PUSH(Rn)",
			[]bytecode.Opcode{bytecode.OpPushImm, bytecode.OpPushReg}, (*Compiler).emitPush},
		"POP": {"POP(Rn)",
			[]bytecode.Opcode{bytecode.OpPop}, (*Compiler).emitPop},
		"PRINTREG": {"PRINTREG(Rn)",
			[]bytecode.Opcode{bytecode.OpPrintReg}, (*Compiler).emitPrintReg},
	}
}

// Mnemonics returns the source mnemonics the encoder accepts, sorted.
func Mnemonics() []string {
	names := make([]string, 0, len(instrRules))
	for name := range instrRules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage returns the operand summary of a source mnemonic.
func Usage(mnemonic string) (string, bool) {
	rule, ok := instrRules[strings.ToUpper(mnemonic)]
	return rule.Usage, ok
}

// Encodings returns the opcodes a source mnemonic may emit.
func Encodings(mnemonic string) []bytecode.Opcode {
	return instrRules[strings.ToUpper(mnemonic)].Opcodes
}

func (c *Compiler) emitInstr(in *Instruction) error {
	name := strings.ToUpper(in.Name)
	rule, ok := instrRules[name]
	if !ok {
		return c.errorf(in, "unsupported instruction: %s", name)
	}
	return rule.Emit(c, in)
}

// errorf returns an EncodeError for in.
func (c *Compiler) errorf(in *Instruction, format string, args ...interface{}) error {
	return &EncodeError{
		Mnemonic: strings.ToUpper(in.Name),
		Pos:      in.Pos,
		Msg:      fmt.Sprintf(format, args...),
	}
}

func (c *Compiler) emitWrite(in *Instruction) error {
	if len(in.Args) != 2 {
		return c.errorf(in, "WRITE requires 2 args")
	}
	var fd byte
	switch a := in.Args[0].(type) {
	case Imm:
		fd = byte(a.Value)
	case Reg:
		fd = a.Index
	default:
		return c.errorf(in, "invalid fd")
	}
	s, ok := in.Args[1].(Str)
	if !ok {
		return c.errorf(in, "WRITE requires string")
	}
	if err := c.builder.EmitText(bytecode.OpWrite, fd, s.Value); err != nil {
		return c.errorf(in, "%v", err)
	}
	return nil
}

func (c *Compiler) emitPrintln(in *Instruction) error {
	switch len(in.Args) {
	case 0:
		c.builder.Emit(bytecode.OpNewline)
		return nil
	case 1:
	default:
		return c.errorf(in, "PRINTLN accepts 0 or 1 argument")
	}

	switch a := in.Args[0].(type) {
	case Str:
		if err := c.builder.EmitText(bytecode.OpWrite, 1, a.Value); err != nil {
			return c.errorf(in, "%v", err)
		}
	case Char:
		c.builder.EmitByte(bytecode.OpPrint, a.Value)
	default:
		return c.errorf(in, "PRINTLN expects a string or char")
	}
	c.builder.Emit(bytecode.OpNewline)
	return nil
}

func (c *Compiler) emitNewline(in *Instruction) error {
	if len(in.Args) != 0 {
		return c.errorf(in, "NEWLINE takes no args")
	}
	c.builder.Emit(bytecode.OpNewline)
	return nil
}

func (c *Compiler) emitHalt(in *Instruction) error {
	if len(in.Args) != 0 {
		return c.errorf(in, "HALT takes no args")
	}
	c.builder.Emit(bytecode.OpHalt)
	return nil
}

func (c *Compiler) emitPrint(in *Instruction) error {
	if len(in.Args) != 1 {
		return c.errorf(in, "PRINT requires 1 arg")
	}
	switch a := in.Args[0].(type) {
	case Char:
		c.builder.EmitByte(bytecode.OpPrint, a.Value)
	case Imm:
		c.builder.EmitByte(bytecode.OpPrint, byte(a.Value))
	default:
		return c.errorf(in, "PRINT expects char or immediate")
	}
	return nil
}

func (c *Compiler) emitMov(in *Instruction) error {
	if len(in.Args) != 2 {
		return c.errorf(in, "MOV requires 2 args")
	}
	dst, ok := in.Args[0].(Reg)
	if !ok {
		return c.errorf(in, "MOV dst must be reg")
	}
	switch src := in.Args[1].(type) {
	case Imm:
		c.builder.EmitByteInt32(bytecode.OpMovImm, dst.Index, int32(src.Value))
	case Reg:
		c.builder.EmitBytes(bytecode.OpMovReg, dst.Index, src.Index)
	default:
		return c.errorf(in, "MOV src must be reg or imm")
	}
	return nil
}

func (c *Compiler) emitAdd(in *Instruction) error {
	if len(in.Args) != 2 {
		return c.errorf(in, "ADD requires 2 args")
	}
	dst, ok := in.Args[0].(Reg)
	if !ok {
		return c.errorf(in, "ADD dst must be reg")
	}
	src, ok := in.Args[1].(Reg)
	if !ok {
		return c.errorf(in, "ADD src must be reg")
	}
	c.builder.EmitBytes(bytecode.OpAdd, dst.Index, src.Index)
	return nil
}

func (c *Compiler) emitPush(in *Instruction) error {
	if len(in.Args) != 1 {
		return c.errorf(in, "PUSH requires 1 arg")
	}
	switch a := in.Args[0].(type) {
	case Imm:
		c.builder.EmitInt32(bytecode.OpPushImm, int32(a.Value))
	case Reg:
		c.builder.EmitByte(bytecode.OpPushReg, a.Index)
	default:
		return c.errorf(in, "PUSH expects imm or reg")
	}
	return nil
}

func (c *Compiler) emitPop(in *Instruction) error {
	if len(in.Args) != 1 {
		return c.errorf(in, "POP requires 1 arg")
	}
	r, ok := in.Args[0].(Reg)
	if !ok {
		return c.errorf(in, "POP expects reg")
	}
	c.builder.EmitByte(bytecode.OpPop, r.Index)
	return nil
}

func (c *Compiler) emitPrintReg(in *Instruction) error {
	if len(in.Args) != 1 {
		return c.errorf(in, "PRINTREG requires 1 arg")
	}
	r, ok := in.Args[0].(Reg)
	if !ok {
		return c.errorf(in, "PRINTREG expects reg")
	}
	c.builder.EmitByte(bytecode.OpPrintReg, r.Index)
	return nil
}
