package bytecode

import (
	"encoding/binary"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"
)

// TruncatedMarker is printed in place of the operands of an instruction that
// runs past the end of the buffer.
const TruncatedMarker = "<truncated>"

// Instruction is one decoded instruction.
type Instruction struct {
	Offset    int      // Byte offset of the opcode within the file
	Op        Opcode   // Raw opcode byte
	Name      string   // Mnemonic, or "UNKNOWN"
	Operands  []string // Rendered operands
	Raw       []byte   // Bytes consumed, opcode included
	Truncated bool     // Operands ran past the end of the buffer
}

// Known reports whether the opcode is part of the instruction set.
func (in Instruction) Known() bool {
	return in.Op.IsDefined()
}

// Text returns the instruction without its offset, e.g. "ADD r1, r2".
func (in Instruction) Text() string {
	switch {
	case in.Truncated:
		return in.Name + " " + TruncatedMarker
	case !in.Known():
		return fmt.Sprintf("UNKNOWN 0x%02x", byte(in.Op))
	case len(in.Operands) == 0:
		return in.Name
	}
	return in.Name + " " + strings.Join(in.Operands, GetOpcodeInfo(in.Op).Sep)
}

// String returns the disassembly line, e.g. "0x0008: ADD r1, r2".
func (in Instruction) String() string {
	return fmt.Sprintf("0x%04x: %s", in.Offset, in.Text())
}

// Decoder walks the instruction stream of a container file. It is a
// single-pass cursor: once Next reports false it stays exhausted.
type Decoder struct {
	data      []byte
	pos       int
	container *Container
	done      bool
}

// NewDecoder prepares data for decoding. It fails only when the header
// declares a data table that does not fit in the file, in which case no
// instruction may be decoded.
func NewDecoder(data []byte) (*Decoder, error) {
	c, err := ReadContainer(data)
	if err != nil {
		return nil, err
	}
	return &Decoder{data: data, pos: c.CodeStart, container: c}, nil
}

// Header returns the container header, if the file has one.
func (d *Decoder) Header() (Header, bool) {
	return d.container.Header, d.container.HasHeader
}

// Container returns the parsed container.
func (d *Decoder) Container() *Container {
	return d.container
}

// Next decodes the instruction at the cursor. It returns false at the end of
// the buffer and after a truncated instruction.
func (d *Decoder) Next() (Instruction, bool) {
	if d.done || d.pos >= len(d.data) {
		d.done = true
		return Instruction{}, false
	}

	start := d.pos
	op := Opcode(d.data[d.pos])
	d.pos++

	in := Instruction{Offset: start, Op: op, Name: op.String()}
	info, ok := opcodeInfoTable[op]
	if ok && len(info.Operands) > 0 {
		in.Operands = make([]string, 0, len(info.Operands))
		for _, kind := range info.Operands {
			text, n, ok := d.readOperand(kind)
			if !ok {
				// Clamp to the buffer and stop for good.
				in.Truncated = true
				d.pos = len(d.data)
				d.done = true
				in.Operands = nil
				break
			}
			in.Operands = append(in.Operands, text)
			d.pos += n
		}
	}

	in.Raw = d.data[start:d.pos]
	return in, true
}

// All returns an iterator over the remaining instructions.
func (d *Decoder) All() iter.Seq[Instruction] {
	return func(yield func(Instruction) bool) {
		for {
			in, ok := d.Next()
			if !ok || !yield(in) {
				return
			}
		}
	}
}

// readOperand renders the operand at the cursor without advancing. It returns
// the number of bytes the operand occupies, or false if they are not all
// present.
func (d *Decoder) readOperand(kind OperandKind) (string, int, bool) {
	rest := d.data[d.pos:]
	if len(rest) < kind.Width() {
		return "", 0, false
	}

	switch kind {
	case OperandReg:
		return fmt.Sprintf("r%d", rest[0]), 1, true
	case OperandFd:
		return fmt.Sprintf("fd=%d", rest[0]), 1, true
	case OperandByte:
		return fmt.Sprintf("'%c' (0x%02x)", rune(rest[0]), rest[0]), 1, true
	case OperandImm:
		return fmt.Sprintf("%d", int32(binary.LittleEndian.Uint32(rest))), 4, true
	case OperandAddr:
		return fmt.Sprintf("0x%08x", binary.LittleEndian.Uint32(rest)), 4, true
	case OperandU32:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint32(rest)), 4, true
	case OperandFrame:
		return fmt.Sprintf("frame=%d", binary.LittleEndian.Uint32(rest)), 4, true
	case OperandDataIndex:
		// The target register is implicit; the reference VM always loads r0.
		return fmt.Sprintf("r0, idx=%d (data)", binary.LittleEndian.Uint32(rest)), 4, true
	case OperandText:
		n := int(rest[0])
		if len(rest) < 1+n {
			return "", 0, false
		}
		return `"` + lossyText(rest[1:1+n]) + `"`, 1 + n, true
	}

	return "", 0, false
}

// lossyText decodes b as UTF-8, writing one U+FFFD per invalid byte.
func lossyText(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// Disassemble decodes every instruction in data and returns one line per
// instruction. The header line is not included.
func Disassemble(data []byte) ([]string, error) {
	d, err := NewDecoder(data)
	if err != nil {
		return nil, err
	}
	var lines []string
	for in := range d.All() {
		lines = append(lines, in.String())
	}
	return lines, nil
}

// DisassembleToString returns a full listing: the header line when the file
// has a header, then one line per instruction.
func DisassembleToString(data []byte) (string, error) {
	d, err := NewDecoder(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if h, ok := d.Header(); ok {
		sb.WriteString(h.String())
		sb.WriteString("\n")
	}
	for in := range d.All() {
		sb.WriteString(in.String())
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// InstructionCount returns the number of instructions the decoder would
// produce for data, truncated ones included.
func InstructionCount(data []byte) (int, error) {
	d, err := NewDecoder(data)
	if err != nil {
		return 0, err
	}
	count := 0
	for range d.All() {
		count++
	}
	return count, nil
}
