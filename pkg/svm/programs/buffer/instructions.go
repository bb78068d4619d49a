package buffer

import (
	"fmt"

	"github.com/deanmlittle/chadbuffer/pkg/types"
)

// Instruction discriminators (first byte of instruction data)
const (
	InstructionInit   byte = 0
	InstructionAssign byte = 1
	InstructionWrite  byte = 2
	InstructionClose  byte = 3
)

// InitInstruction creates the buffer: the signer becomes the authority and
// the payload becomes the buffer's initial contents.
type InitInstruction struct {
	Data []byte // Initial buffer contents
}

// Decode decodes an Init instruction payload.
func (inst *InitInstruction) Decode(payload []byte) error {
	// Any length is valid, including empty.
	inst.Data = payload
	return nil
}

// Encode encodes an Init instruction to bytes.
func (inst *InitInstruction) Encode() []byte {
	data := make([]byte, 1+len(inst.Data))
	data[0] = InstructionInit
	copy(data[1:], inst.Data)
	return data
}

// AssignInstruction hands the buffer to a new authority.
type AssignInstruction struct {
	Authority types.Pubkey // New authority
}

// Decode decodes an Assign instruction payload.
func (inst *AssignInstruction) Decode(payload []byte) error {
	// Data layout: new authority (32 bytes)
	if len(payload) < PubkeyLength {
		return fmt.Errorf("%w: Assign requires %d bytes, got %d",
			ErrInvalidInstructionData, PubkeyLength, len(payload))
	}
	copy(inst.Authority[:], payload[0:PubkeyLength])
	return nil
}

// Encode encodes an Assign instruction to bytes.
func (inst *AssignInstruction) Encode() []byte {
	data := make([]byte, 1+PubkeyLength)
	data[0] = InstructionAssign
	copy(data[1:], inst.Authority[:])
	return data
}

// WriteInstruction splices bytes into the buffer at a 24-bit offset.
type WriteInstruction struct {
	Offset uint32 // Destination offset into the buffer data, 24 bits
	Data   []byte // Bytes to write
}

// Decode decodes a Write instruction payload.
// Data layout: offset (3 bytes, little-endian) + data.
func (inst *WriteInstruction) Decode(payload []byte) error {
	if len(payload) < 3 {
		return fmt.Errorf("%w: Write requires a 3-byte offset, got %d bytes",
			ErrInvalidInstructionData, len(payload))
	}
	inst.Offset = (uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16) & u24Mask
	inst.Data = payload[3:]
	return nil
}

// Encode encodes a Write instruction to bytes.
func (inst *WriteInstruction) Encode() []byte {
	data := make([]byte, 1+3+len(inst.Data))
	data[0] = InstructionWrite
	data[1] = byte(inst.Offset)
	data[2] = byte(inst.Offset >> 8)
	data[3] = byte(inst.Offset >> 16)
	copy(data[4:], inst.Data)
	return data
}

// CloseInstruction drains the buffer's lamports to the signer and returns
// the account to the System Program.
type CloseInstruction struct{}

// Decode decodes a Close instruction payload.
func (inst *CloseInstruction) Decode(payload []byte) error {
	// Close carries no payload; trailing bytes are ignored.
	return nil
}

// Encode encodes a Close instruction to bytes.
func (inst *CloseInstruction) Encode() []byte {
	return []byte{InstructionClose}
}
