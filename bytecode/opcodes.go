package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Opcode represents a bcx instruction.
type Opcode byte

const (
	// ========================================================================
	// Console output (0x01-0x03)
	// ========================================================================

	OpWrite   Opcode = 0x01 // Write text to fd: OpWrite <fd:u8> <len:u8> <bytes>
	OpNewline Opcode = 0x02 // Write a newline
	OpPrint   Opcode = 0x03 // Write one byte: OpPrint <byte:u8>

	// ========================================================================
	// Stack (0x04-0x05, 0x12)
	// ========================================================================

	OpPushImm Opcode = 0x04 // Push immediate: OpPushImm <imm:i32>
	OpPop     Opcode = 0x05 // Pop into register: OpPop <reg:u8>
	OpPushReg Opcode = 0x12 // Push register: OpPushReg <reg:u8>

	// ========================================================================
	// Register arithmetic (0x06-0x0C, 0x10-0x11, 0x13, 0x2A-0x2C, 0x40)
	// ========================================================================

	OpAdd      Opcode = 0x06 // dst += src: OpAdd <dst:u8> <src:u8>
	OpSub      Opcode = 0x07 // dst -= src
	OpMul      Opcode = 0x08 // dst *= src
	OpDiv      Opcode = 0x09 // dst /= src
	OpPrintReg Opcode = 0x0A // Print register value: OpPrintReg <reg:u8>
	OpMovImm   Opcode = 0x0B // Load immediate: OpMovImm <dst:u8> <imm:i32>
	OpMovReg   Opcode = 0x0C // Copy register: OpMovReg <dst:u8> <src:u8>
	OpInc      Opcode = 0x10 // reg++
	OpDec      Opcode = 0x11 // reg--
	OpCmp      Opcode = 0x13 // Compare: OpCmp <a:u8> <b:u8>
	OpXor      Opcode = 0x2A // dst ^= src
	OpAnd      Opcode = 0x2B // dst &= src
	OpOr       Opcode = 0x2C // dst |= src
	OpMod      Opcode = 0x40 // dst %= src

	// ========================================================================
	// Control flow (0x0D-0x0F, 0x36-0x3B)
	// ========================================================================

	OpJmp  Opcode = 0x0D // Jump: OpJmp <addr:u32>
	OpJe   Opcode = 0x0E // Jump if equal: OpJe <reg:u8> <addr:u32>
	OpJne  Opcode = 0x0F // Jump if not equal: OpJne <reg:u8> <addr:u32>
	OpJl   Opcode = 0x36 // Jump if less: OpJl <addr:u32>
	OpJge  Opcode = 0x37 // Jump if greater or equal
	OpJb   Opcode = 0x38 // Jump if below (unsigned)
	OpJae  Opcode = 0x39 // Jump if above or equal (unsigned)
	OpCall Opcode = 0x3A // Call: OpCall <addr:u32> <frame_size:u32>
	OpRet  Opcode = 0x3B // Return from call

	// ========================================================================
	// Heap (0x14-0x17, 0x19, 0x20, 0x3C-0x3F, 0x41-0x42)
	// ========================================================================

	OpAlloc     Opcode = 0x14 // Allocate cells: OpAlloc <count:u32>
	OpLoad      Opcode = 0x15 // reg = heap[idx]: OpLoad <reg:u8> <idx:u32>
	OpStore     Opcode = 0x16 // heap[idx] = reg: OpStore <reg:u8> <idx:u32>
	OpGrow      Opcode = 0x17 // Grow heap: OpGrow <count:u32>
	OpResize    Opcode = 0x19 // Resize heap: OpResize <count:u32>
	OpFree      Opcode = 0x20 // Free cells: OpFree <count:u32>
	OpLoadByte  Opcode = 0x3C // Load 1 byte: OpLoadByte <reg:u8> <idx:u32>
	OpLoadWord  Opcode = 0x3D // Load 2 bytes
	OpLoadDword Opcode = 0x3E // Load 4 bytes
	OpLoadQword Opcode = 0x3F // Load 8 bytes
	OpLoadReg   Opcode = 0x41 // a = heap[b]: OpLoadReg <a:u8> <b:u8>
	OpStoreReg  Opcode = 0x42 // heap[b] = a: OpStoreReg <a:u8> <b:u8>

	// ========================================================================
	// Files (0x21-0x24, 0x27)
	// ========================================================================

	OpFopen     Opcode = 0x21 // Open file: OpFopen <fd:u8> <len:u8> <name bytes>
	OpFclose    Opcode = 0x22 // Close file: OpFclose <fd:u8>
	OpFread     Opcode = 0x23 // Read into register: OpFread <fd:u8> <reg:u8>
	OpFwriteReg Opcode = 0x24 // Write register: OpFwriteReg <fd:u8> <reg:u8>
	OpFwriteImm Opcode = 0x27 // Write immediate: OpFwriteImm <fd:u8> <imm:i32>

	// ========================================================================
	// Data table and terminal (0x28-0x29, 0x2F-0x35)
	// ========================================================================

	OpLoadStr  Opcode = 0x28 // r0 = data[idx]: OpLoadStr <idx:u32>
	OpPrintStr Opcode = 0x29 // Print string in register: OpPrintStr <reg:u8>
	OpSleep    Opcode = 0x2F // Sleep: OpSleep <ms:u32>
	OpClrScr   Opcode = 0x30 // Clear screen
	OpRand     Opcode = 0x31 // Random number
	OpGetKey   Opcode = 0x32 // Non-blocking key read: OpGetKey <reg:u8>
	OpRead     Opcode = 0x33 // Read number: OpRead <reg:u8>
	OpContinue Opcode = 0x34 // Resume after break
	OpReadChar Opcode = 0x35 // Read character: OpReadChar <reg:u8>

	OpHalt Opcode = 0xFF // Stop the machine
)

// OperandKind describes how one operand is laid out on the wire and how the
// disassembler renders it.
type OperandKind uint8

const (
	OperandReg       OperandKind = iota // u8 register index, "r3"
	OperandFd                           // u8 file descriptor, "fd=3"
	OperandByte                         // u8 character, "'A' (0x41)"
	OperandImm                          // i32 immediate, "-5"
	OperandAddr                         // u32 absolute address, "0x0000002a"
	OperandU32                          // u32 count or index, "16"
	OperandFrame                        // u32 call frame size, "frame=4"
	OperandText                         // u8 length + bytes, "\"hi\""
	OperandDataIndex                    // u32 data-table index loaded into r0
)

var operandKindNames = [...]string{
	OperandReg:       "reg:u8",
	OperandFd:        "fd:u8",
	OperandByte:      "byte:u8",
	OperandImm:       "imm:i32",
	OperandAddr:      "addr:u32",
	OperandU32:       "n:u32",
	OperandFrame:     "frame_size:u32",
	OperandText:      "len:u8 text",
	OperandDataIndex: "idx:u32",
}

func (k OperandKind) String() string {
	if int(k) < len(operandKindNames) {
		return operandKindNames[k]
	}
	return fmt.Sprintf("OperandKind(%d)", k)
}

// Width returns the fixed number of bytes the operand occupies. For
// OperandText this is the length prefix only.
func (k OperandKind) Width() int {
	switch k {
	case OperandReg, OperandFd, OperandByte, OperandText:
		return 1
	default:
		return 4
	}
}

// OpcodeInfo provides metadata about each opcode for decoding and display.
type OpcodeInfo struct {
	Name     string        // Mnemonic as printed by the disassembler
	Operands []OperandKind // Operand layout, in wire order
	Sep      string        // Separator between rendered operands
}

var (
	noOperands = []OperandKind{}
	regOnly    = []OperandKind{OperandReg}
	regReg     = []OperandKind{OperandReg, OperandReg}
	regIndex   = []OperandKind{OperandReg, OperandU32}
	addrOnly   = []OperandKind{OperandAddr}
	countOnly  = []OperandKind{OperandU32}
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Console output
	OpWrite:   {"WRITE", []OperandKind{OperandFd, OperandText}, " "},
	OpNewline: {"NEWLINE", noOperands, ""},
	OpPrint:   {"PRINT", []OperandKind{OperandByte}, ""},

	// Stack
	OpPushImm: {"PUSH_IMM", []OperandKind{OperandImm}, ""},
	OpPop:     {"POP", regOnly, ""},
	OpPushReg: {"PUSH_REG", regOnly, ""},

	// Register arithmetic
	OpAdd:      {"ADD", regReg, ", "},
	OpSub:      {"SUB", regReg, ", "},
	OpMul:      {"MUL", regReg, ", "},
	OpDiv:      {"DIV", regReg, ", "},
	OpPrintReg: {"PRINTREG", regOnly, ""},
	OpMovImm:   {"MOV_IMM", []OperandKind{OperandReg, OperandImm}, " "},
	OpMovReg:   {"MOV_REG", regReg, ", "},
	OpInc:      {"INC", regOnly, ""},
	OpDec:      {"DEC", regOnly, ""},
	OpCmp:      {"CMP", regReg, ", "},
	OpXor:      {"XOR", regReg, ", "},
	OpAnd:      {"AND", regReg, ", "},
	OpOr:       {"OR", regReg, ", "},
	OpMod:      {"MOD", regReg, ", "},

	// Control flow
	OpJmp:  {"JMP", addrOnly, ""},
	OpJe:   {"JE", []OperandKind{OperandReg, OperandAddr}, ", "},
	OpJne:  {"JNE", []OperandKind{OperandReg, OperandAddr}, ", "},
	OpJl:   {"JL", addrOnly, ""},
	OpJge:  {"JGE", addrOnly, ""},
	OpJb:   {"JB", addrOnly, ""},
	OpJae:  {"JAE", addrOnly, ""},
	OpCall: {"CALL", []OperandKind{OperandAddr, OperandFrame}, " "},
	OpRet:  {"RET", noOperands, ""},

	// Heap
	OpAlloc:     {"ALLOC", countOnly, ""},
	OpLoad:      {"LOAD", regIndex, ", "},
	OpStore:     {"STORE", regIndex, ", "},
	OpGrow:      {"GROW", countOnly, ""},
	OpResize:    {"RESIZE", countOnly, ""},
	OpFree:      {"FREE", countOnly, ""},
	OpLoadByte:  {"LOADBYTE", regIndex, ", "},
	OpLoadWord:  {"LOADWORD", regIndex, ", "},
	OpLoadDword: {"LOADDWORD", regIndex, ", "},
	OpLoadQword: {"LOADQWORD", regIndex, ", "},
	OpLoadReg:   {"LOAD_REG", regReg, ", "},
	OpStoreReg:  {"STORE_REG", regReg, ", "},

	// Files
	OpFopen:     {"FOPEN", []OperandKind{OperandFd, OperandText}, " "},
	OpFclose:    {"FCLOSE", []OperandKind{OperandFd}, ""},
	OpFread:     {"FREAD", []OperandKind{OperandFd, OperandReg}, ", "},
	OpFwriteReg: {"FWRITE_REG", []OperandKind{OperandFd, OperandReg}, ", "},
	OpFwriteImm: {"FWRITE_IMM", []OperandKind{OperandFd, OperandImm}, ", "},

	// Data table and terminal
	OpLoadStr:  {"LOADSTR", []OperandKind{OperandDataIndex}, ""},
	OpPrintStr: {"PRINTSTR", regOnly, ""},
	OpSleep:    {"SLEEP", countOnly, ""},
	OpClrScr:   {"CLRSCR", noOperands, ""},
	OpRand:     {"RAND", noOperands, ""},
	OpGetKey:   {"GETKEY", regOnly, ""},
	OpRead:     {"READ", regOnly, ""},
	OpContinue: {"CONTINUE", noOperands, ""},
	OpReadChar: {"READCHAR", regOnly, ""},

	OpHalt: {"HALT", noOperands, ""},
}

// mnemonicTable is the reverse of opcodeInfoTable, keyed by upper-case name.
var mnemonicTable = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN" with no operands if the opcode is not
// recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: "UNKNOWN", Operands: noOperands}
}

// LookupMnemonic returns the opcode whose disassembly name matches name,
// ignoring case.
func LookupMnemonic(name string) (Opcode, bool) {
	op, ok := mnemonicTable[strings.ToUpper(name)]
	return op, ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsDefined reports whether op is part of the instruction set.
func (op Opcode) IsDefined() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// OperandLen returns the fixed number of operand bytes for this opcode. For
// opcodes carrying text this excludes the text itself.
func (op Opcode) OperandLen() int {
	n := 0
	for _, k := range GetOpcodeInfo(op).Operands {
		n += k.Width()
	}
	return n
}

// HasText reports whether the opcode carries a length-prefixed text operand.
func (op Opcode) HasText() bool {
	for _, k := range GetOpcodeInfo(op).Operands {
		if k == OperandText {
			return true
		}
	}
	return false
}

// IsJump returns true if this opcode transfers control to an absolute address.
func (op Opcode) IsJump() bool {
	for _, k := range GetOpcodeInfo(op).Operands {
		if k == OperandAddr {
			return true
		}
	}
	return false
}

// Layout returns a short operand description, e.g. "reg:u8, addr:u32".
func (op Opcode) Layout() string {
	info := GetOpcodeInfo(op)
	if len(info.Operands) == 0 {
		return "-"
	}
	parts := make([]string, len(info.Operands))
	for i, k := range info.Operands {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// AllOpcodes returns all defined opcodes in ascending order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	sort.Slice(opcodes, func(i, j int) bool { return opcodes[i] < opcodes[j] })
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
