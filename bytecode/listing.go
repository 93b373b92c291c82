package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Listing is the machine-readable form of a disassembly.
type Listing struct {
	HasHeader     bool           `cbor:"1,keyasint"`
	DataCount     uint8          `cbor:"2,keyasint"`
	DataTableSize uint32         `cbor:"3,keyasint"`
	Entries       []ListingEntry `cbor:"4,keyasint,omitempty"`
}

// ListingEntry is one decoded instruction.
type ListingEntry struct {
	Offset    uint32   `cbor:"1,keyasint"`
	Opcode    uint8    `cbor:"2,keyasint"`
	Mnemonic  string   `cbor:"3,keyasint"`
	Operands  []string `cbor:"4,keyasint,omitempty"`
	Raw       []byte   `cbor:"5,keyasint"`
	Truncated bool     `cbor:"6,keyasint,omitempty"`
}

// Line renders the entry the same way Instruction.String does.
func (e ListingEntry) Line() string {
	return e.instruction().String()
}

func (e ListingEntry) instruction() Instruction {
	return Instruction{
		Offset:    int(e.Offset),
		Op:        Opcode(e.Opcode),
		Name:      e.Mnemonic,
		Operands:  e.Operands,
		Raw:       e.Raw,
		Truncated: e.Truncated,
	}
}

// BuildListing decodes data into a Listing.
func BuildListing(data []byte) (*Listing, error) {
	d, err := NewDecoder(data)
	if err != nil {
		return nil, err
	}

	l := &Listing{}
	if h, ok := d.Header(); ok {
		l.HasHeader = true
		l.DataCount = h.DataCount
		l.DataTableSize = h.DataTableSize
	}
	for in := range d.All() {
		l.Entries = append(l.Entries, ListingEntry{
			Offset:    uint32(in.Offset),
			Opcode:    uint8(in.Op),
			Mnemonic:  in.Name,
			Operands:  in.Operands,
			Raw:       append([]byte(nil), in.Raw...),
			Truncated: in.Truncated,
		})
	}
	return l, nil
}

// Lines renders every entry as a disassembly line.
func (l *Listing) Lines() []string {
	lines := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		lines[i] = e.Line()
	}
	return lines
}

// MarshalListing serializes a Listing to canonical CBOR bytes.
func MarshalListing(l *Listing) ([]byte, error) {
	return cborEncMode.Marshal(l)
}

// UnmarshalListing deserializes a Listing from CBOR bytes.
func UnmarshalListing(data []byte) (*Listing, error) {
	var l Listing
	if err := cbor.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal listing: %w", err)
	}
	return &l, nil
}
