package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic bytes for container files: "bcx".
var Magic = [3]byte{'b', 'c', 'x'}

// HeaderSize is the size of the fixed container header in bytes.
const HeaderSize = 8

// ErrDataTableTruncated is returned when a container declares a data table
// larger than the bytes that follow the header.
var ErrDataTableTruncated = errors.New("file truncated")

// Header is the fixed part of a container file.
type Header struct {
	DataCount     uint8  // Number of entries in the data table
	DataTableSize uint32 // Size of the data table in bytes
}

// String renders the header the way the disassembler prints it.
func (h Header) String() string {
	return fmt.Sprintf("Header: MAGIC=%s data_count=%d data_table_size=%d",
		string(Magic[:]), h.DataCount, h.DataTableSize)
}

// AppendTo appends the encoded header to buf and returns the extended slice.
func (h Header) AppendTo(buf []byte) []byte {
	buf = append(buf, Magic[:]...)
	buf = append(buf, h.DataCount)
	return binary.LittleEndian.AppendUint32(buf, h.DataTableSize)
}

// ParseHeader decodes a header from the start of data. It reports false when
// data is shorter than HeaderSize or does not start with Magic; such files
// have no header at all.
func ParseHeader(data []byte) (Header, bool) {
	if len(data) < HeaderSize {
		return Header{}, false
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] {
		return Header{}, false
	}
	return Header{
		DataCount:     data[3],
		DataTableSize: binary.LittleEndian.Uint32(data[4:8]),
	}, true
}

// Container is a parsed view over a container file. All slices alias the
// input buffer.
type Container struct {
	Header    Header
	HasHeader bool
	DataTable []byte
	Code      []byte
	CodeStart int // Offset of Code within the file
}

// ReadContainer splits data into header, data table and instruction stream.
// Without a header the whole buffer is instruction stream starting at 0.
func ReadContainer(data []byte) (*Container, error) {
	h, ok := ParseHeader(data)
	if !ok {
		return &Container{Code: data}, nil
	}

	start := uint64(HeaderSize) + uint64(h.DataTableSize)
	if start > uint64(len(data)) {
		return nil, fmt.Errorf("%w: declared data_table_size=%d but file too small",
			ErrDataTableTruncated, h.DataTableSize)
	}

	return &Container{
		Header:    h,
		HasHeader: true,
		DataTable: data[HeaderSize:start],
		Code:      data[start:],
		CodeStart: int(start),
	}, nil
}

// NewContainer returns a container file holding code behind an empty header.
// The data table is part of the format but nothing produces one yet.
func NewContainer(code []byte) []byte {
	buf := make([]byte, 0, HeaderSize+len(code))
	buf = Header{}.AppendTo(buf)
	return append(buf, code...)
}
