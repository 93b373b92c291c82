package compiler

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, input string) *Program {
	t.Helper()
	prog, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return prog
}

func mainBody(t *testing.T, input string) []Stmt {
	t.Helper()
	prog := mustParse(t, input)
	if len(prog.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(prog.Functions))
	}
	return prog.Functions[0].Body
}

func TestParserEmptyMain(t *testing.T) {
	prog := mustParse(t, "fn main() { }")
	fn := prog.Function("main")
	if fn == nil {
		t.Fatal("main not found")
	}
	if len(fn.Body) != 0 {
		t.Errorf("len(Body) = %d, want 0", len(fn.Body))
	}
	if fn.Params == nil || len(fn.Params) != 0 {
		t.Errorf("Params = %v, want empty", fn.Params)
	}
}

func TestParserEmptyInput(t *testing.T) {
	prog := mustParse(t, "   \n")
	if len(prog.Functions) != 0 {
		t.Errorf("got %d functions, want 0", len(prog.Functions))
	}
}

func TestParserStatements(t *testing.T) {
	body := mainBody(t, `fn main() { ; HALT; NEWLINE }`)
	if len(body) != 3 {
		t.Fatalf("len(body) = %d, want 3", len(body))
	}
	if _, ok := body[0].(*EmptyStmt); !ok {
		t.Errorf("body[0] = %T, want *EmptyStmt", body[0])
	}
	for i, want := range []string{"HALT", "NEWLINE"} {
		is, ok := body[i+1].(*InstrStmt)
		if !ok {
			t.Fatalf("body[%d] = %T, want *InstrStmt", i+1, body[i+1])
		}
		if is.Instr.Name != want {
			t.Errorf("body[%d] name = %q, want %q", i+1, is.Instr.Name, want)
		}
		if len(is.Instr.Args) != 0 {
			t.Errorf("body[%d] args = %v, want none", i+1, is.Instr.Args)
		}
	}
}

func TestParserOperands(t *testing.T) {
	body := mainBody(t, `fn main() { unsafe { X(42, 0x10, "s", 'c', R7, r255, foo, R, rax) } }`)
	ub, ok := body[0].(*UnsafeBlock)
	if !ok {
		t.Fatalf("body[0] = %T, want *UnsafeBlock", body[0])
	}
	in := ub.Body[0].(*InstrStmt).Instr

	want := []Operand{
		Imm{Value: 42},
		Imm{Value: 16},
		Str{Value: "s"},
		Char{Value: 'c'},
		Reg{Index: 7},
		Reg{Index: 255},
		Ident{Name: "foo"},
		Ident{Name: "R"},
		Ident{Name: "rax"},
	}
	if len(in.Args) != len(want) {
		t.Fatalf("len(Args) = %d, want %d", len(in.Args), len(want))
	}
	for i := range want {
		if in.Args[i] != want[i] {
			t.Errorf("Args[%d] = %#v, want %#v", i, in.Args[i], want[i])
		}
	}
}

func TestParserTrailingCommaAndOptionalSemicolon(t *testing.T) {
	body := mainBody(t, `fn main() { PRINT(65,) PRINT('B') HALT }`)
	if len(body) != 3 {
		t.Fatalf("len(body) = %d, want 3", len(body))
	}
	in := body[0].(*InstrStmt).Instr
	if len(in.Args) != 1 || in.Args[0] != (Imm{Value: 65}) {
		t.Errorf("Args = %v", in.Args)
	}
}

func TestParserEmptyParens(t *testing.T) {
	body := mainBody(t, `fn main() { PRINTLN(); }`)
	in := body[0].(*InstrStmt).Instr
	if len(in.Args) != 0 {
		t.Errorf("Args = %v, want none", in.Args)
	}
}

func TestParserUnsafeBlock(t *testing.T) {
	body := mainBody(t, `fn main() {
	PRINTLN("a");
	unsafe {
		MOV(R1, 5);
		;
		PRINTREG(R1);
	}
	HALT;
}`)
	if len(body) != 3 {
		t.Fatalf("len(body) = %d, want 3", len(body))
	}
	ub, ok := body[1].(*UnsafeBlock)
	if !ok {
		t.Fatalf("body[1] = %T, want *UnsafeBlock", body[1])
	}
	if len(ub.Body) != 3 {
		t.Fatalf("len(unsafe body) = %d, want 3", len(ub.Body))
	}
	if _, ok := ub.Body[1].(*EmptyStmt); !ok {
		t.Errorf("unsafe body[1] = %T, want *EmptyStmt", ub.Body[1])
	}
	if ub.Pos.Line != 3 {
		t.Errorf("unsafe Pos.Line = %d, want 3", ub.Pos.Line)
	}
}

func TestParserInstructionPosition(t *testing.T) {
	body := mainBody(t, "fn main() {\n    HALT;\n}")
	in := body[0].(*InstrStmt).Instr
	if in.Pos.Line != 2 || in.Pos.Column != 5 {
		t.Errorf("Pos = %v, want 2:5", in.Pos)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input   string
		wantMsg string
		line    int
	}{
		{`fn other() { }`, "only `main` is supported, found function 'other'", 1},
		{`main() { }`, "expected 'fn' keyword", 1},
		{`fn () { }`, "expected identifier after fn", 1},
		{`fn main { }`, "expected '('", 1},
		{`fn main() HALT`, "expected '{'", 1},
		{`fn main() { HALT;`, "expected '}'", 1},
		{"fn main() {\n  push(R0);\n}", "register R0 used outside unsafe block", 2},
		{`fn main() { MOV(r1, 2) }`, "register r1 used outside unsafe block", 1},
		{`fn main() { unsafe { POP(R256) } }`, "register R256 out of range", 1},
		{`fn main() { unsafe { unsafe { } } }`, "nested unsafe block", 1},
		{`fn main() { PRINT(65 66) }`, "expected ',' or ')'", 1},
		{`fn main() { PRINT(,) }`, "unexpected operand", 1},
		{`fn main() { PRINT(65`, "expected ',' or ')', found EOF", 1},
		{`fn main() { 42 }`, "unsupported token in body", 1},
		{`fn main() { unsafe { 42 } }`, "unsupported token in unsafe body", 1},
		{`fn main() { unsafe HALT }`, "expected '{'", 1},
	}

	for _, tt := range tests {
		prog, err := Parse(tt.input)
		if err == nil {
			t.Errorf("Parse(%q): expected error", tt.input)
			continue
		}
		if prog != nil {
			t.Errorf("Parse(%q): expected nil program on error", tt.input)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): error %T is not *ParseError", tt.input, err)
			continue
		}
		if !strings.Contains(pe.Msg, tt.wantMsg) {
			t.Errorf("Parse(%q): msg = %q, want it to contain %q", tt.input, pe.Msg, tt.wantMsg)
		}
		if pe.Pos.Line != tt.line {
			t.Errorf("Parse(%q): line = %d, want %d", tt.input, pe.Pos.Line, tt.line)
		}
	}
}

func TestParseErrorString(t *testing.T) {
	_, err := Parse("fn main() {\n  push(R0);\n}")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "line 2:8: register R0 used outside unsafe block"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestParserStopsAtFirstFunctionError(t *testing.T) {
	_, err := Parse(`fn main() { } fn helper() { }`)
	if err == nil || !strings.Contains(err.Error(), "helper") {
		t.Errorf("err = %v, want error naming helper", err)
	}
}

func TestDump(t *testing.T) {
	prog := mustParse(t, `fn main() { ; PRINTLN("hi"); unsafe { MOV(R1, -0); PRINT('A') } }`)
	got := Dump(prog)
	want := "Program\n" +
		"  Function main (1:1)\n" +
		"    Empty\n" +
		"    Instr PRINTLN(\"hi\")\n" +
		"    Unsafe\n" +
		"      Instr MOV(R1, 0)\n" +
		"      Instr PRINT('A')\n"
	if got != want {
		t.Errorf("Dump =\n%s\nwant\n%s", got, want)
	}
}
