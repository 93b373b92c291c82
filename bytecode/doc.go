// Package bytecode defines the bcx instruction set and its on-disk container,
// and decodes container files back into readable mnemonics.
//
// The package is the single source of truth for the wire format. The
// compiler package emits opcodes from the table in opcodes.go, and the
// decoder in disasm.go reads them back through the same table, so the two
// codecs cannot drift apart.
//
// # Container layout
//
//	byte 0-2   magic "bcx"
//	byte 3     data_count (u8)
//	byte 4-7   data_table_size (u32, little-endian)
//	byte 8..   data table (data_table_size bytes, opaque)
//	remaining  instruction stream
//
// A file that is shorter than the header, or that does not start with the
// magic, has no header: the whole file is treated as instruction stream.
//
// # Instruction stream
//
// Every instruction is a one-byte opcode followed by zero or more operands.
// Multi-byte integers are little-endian. Operand layouts are described by
// OperandKind values in the opcode table; the text operand is a one-byte
// length followed by that many bytes.
//
// The encoder only produces a handful of opcodes. The decoder understands the
// whole table, including opcodes that exist only for forward compatibility
// with the reference VM.
//
// # Linear decoding
//
// The decoder walks the stream front to back without a control-flow model.
// An opcode that is not in the table is reported as UNKNOWN and assumed to
// carry no operands, so everything after it may be misaligned. An instruction
// whose operands run past the end of the buffer is reported with a
// "<truncated>" marker and decoding stops there.
package bytecode
