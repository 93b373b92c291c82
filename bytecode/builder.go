package bytecode

import (
	"encoding/binary"
	"errors"
)

// MaxTextLen is the longest text a WRITE or FOPEN operand can carry.
const MaxTextLen = 255

// ErrTextTooLong is returned by EmitText when the text does not fit the
// one-byte length prefix.
var ErrTextTooLong = errors.New("string too long")

// Builder assembles an instruction stream.
type Builder struct {
	bytes []byte
}

// NewBuilder creates a new instruction stream builder.
func NewBuilder() *Builder {
	return &Builder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the instruction stream built so far.
func (b *Builder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *Builder) Len() int {
	return len(b.bytes)
}

// Container returns the instruction stream wrapped in a container file.
func (b *Builder) Container() []byte {
	return NewContainer(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *Builder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *Builder) EmitByte(op Opcode, operand byte) {
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitBytes appends an opcode with two byte operands.
func (b *Builder) EmitBytes(op Opcode, a, c byte) {
	b.bytes = append(b.bytes, byte(op), a, c)
}

// EmitInt32 appends an opcode with a little-endian i32 operand.
func (b *Builder) EmitInt32(op Opcode, operand int32) {
	b.bytes = append(b.bytes, byte(op))
	b.bytes = binary.LittleEndian.AppendUint32(b.bytes, uint32(operand))
}

// EmitByteInt32 appends an opcode with a byte operand followed by a
// little-endian i32.
func (b *Builder) EmitByteInt32(op Opcode, a byte, operand int32) {
	b.bytes = append(b.bytes, byte(op), a)
	b.bytes = binary.LittleEndian.AppendUint32(b.bytes, uint32(operand))
}

// EmitText appends an opcode with a byte operand and a length-prefixed text.
// Nothing is written if text is longer than MaxTextLen.
func (b *Builder) EmitText(op Opcode, a byte, text string) error {
	if len(text) > MaxTextLen {
		return ErrTextTooLong
	}
	b.bytes = append(b.bytes, byte(op), a, byte(len(text)))
	b.bytes = append(b.bytes, text...)
	return nil
}
