package buffer

import (
	"encoding/binary"
	"fmt"
)

// Input region layout. The host serializes the two accounts and the
// instruction into one contiguous region; every fixed offset below is a
// consequence of that serialization with a zero-data signer first and the
// buffer account second. All integers are little-endian.
const (
	// Alignment is the alignment of the instruction block within the
	// input region.
	Alignment = 8

	// PubkeyLength is the width of a public key field.
	PubkeyLength = 32

	// Signer account offsets.
	signerFlagsOffset    = 0x0008
	signerKeyOffset      = 0x0010
	signerLamportsOffset = 0x0050

	// Buffer account offsets.
	bufferOwnerOffset     = 0x2890
	bufferLamportsOffset  = 0x28b0
	bufferLenOffset       = 0x28b8
	bufferAuthorityOffset = 0x28c0
	bufferDataOffset      = 0x28e0

	// ixMinOffset is where the instruction block would start if the
	// buffer account carried no data. The actual start is this plus the
	// buffer's stored length, rounded up to Alignment.
	ixMinOffset = 0x50c8
)

// SigMutNoDup is the canonical packed encoding of the flags a valid signer
// account must carry: non-duplicate marker 0xff, is_signer 1, is_writable 1,
// executable 0. Kept as a named constant for wire compatibility; the guard
// compares the decoded fields rather than this raw value.
const SigMutNoDup uint32 = 0x0101ff

// nonDuplicateMarker is the first flag byte of an account that is not a
// duplicate of an earlier account in the same invocation.
const nonDuplicateMarker byte = 0xff

// u24Mask keeps the low 24 bits of a Write destination offset. The top
// byte of the encoded offset is unused.
const u24Mask = 0xffffff

// AccountFlags is the unpacked form of an account's packed flags scalar.
type AccountFlags struct {
	// DuplicateOf is the index of the earlier account this one duplicates,
	// or -1 if it is not a duplicate.
	DuplicateOf int
	Signer      bool
	Writable    bool
	Executable  bool
}

// decodeAccountFlags unpacks a little-endian flags scalar: byte 0 is the
// duplicate marker, bytes 1-3 are is_signer, is_writable, executable.
func decodeAccountFlags(raw uint32) AccountFlags {
	f := AccountFlags{
		DuplicateOf: -1,
		Signer:      byte(raw>>8) != 0,
		Writable:    byte(raw>>16) != 0,
		Executable:  byte(raw>>24) != 0,
	}
	if marker := byte(raw); marker != nonDuplicateMarker {
		f.DuplicateOf = int(marker)
	}
	return f
}

// IsDuplicate returns true if the account duplicates an earlier one.
func (f AccountFlags) IsDuplicate() bool {
	return f.DuplicateOf >= 0
}

// IsFreshWritableSigner returns true if the account is a non-duplicate,
// writable, non-executable transaction signer. On the canonical flag
// encoding this is exactly equivalent to comparing the packed scalar
// against SigMutNoDup.
func (f AccountFlags) IsFreshWritableSigner() bool {
	return !f.IsDuplicate() && f.Signer && f.Writable && !f.Executable
}

// Input is a typed view over the host-supplied input region. It borrows
// the region for the duration of one invocation; nothing is copied, and
// every mutation lands directly in the host's memory. Dynamic accessors
// are bounds-checked against the actual region length and fail with
// ErrInputTooShort instead of reading past the end.
type Input struct {
	raw []byte
}

// NewInput wraps a raw input region. Only the account-count scalar is
// required to be present; the rest of the layout is validated once the
// count has been checked, since the fixed offsets are meaningless for any
// other account count.
func NewInput(raw []byte) (*Input, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInputTooShort, len(raw))
	}
	return &Input{raw: raw}, nil
}

// Len returns the region length in bytes.
func (in *Input) Len() int {
	return len(in.raw)
}

// ensure verifies the region covers [off, off+n). The comparison is
// written against len-off so a huge off cannot wrap the sum negative.
func (in *Input) ensure(off, n int) error {
	if off < 0 || n < 0 || n > len(in.raw)-off {
		return fmt.Errorf("%w: need %d bytes at offset %#x, region is %d bytes",
			ErrInputTooShort, n, off, len(in.raw))
	}
	return nil
}

// CheckAccountLayout verifies the region is large enough to hold the two
// fixed-layout account records. Valid to call only after the account count
// has been confirmed to be 2.
func (in *Input) CheckAccountLayout() error {
	return in.ensure(0, bufferDataOffset)
}

// AccountCount returns the number of accounts the host serialized.
func (in *Input) AccountCount() uint64 {
	return binary.LittleEndian.Uint64(in.raw[0:8])
}

// SignerFlags returns the signer account's unpacked flags.
func (in *Input) SignerFlags() AccountFlags {
	return decodeAccountFlags(binary.LittleEndian.Uint32(in.raw[signerFlagsOffset:]))
}

// SignerKey returns the signer's public key field as a borrowed slice.
func (in *Input) SignerKey() []byte {
	return in.raw[signerKeyOffset : signerKeyOffset+PubkeyLength]
}

// SignerLamports returns the signer's lamport balance.
func (in *Input) SignerLamports() uint64 {
	return binary.LittleEndian.Uint64(in.raw[signerLamportsOffset:])
}

// SetSignerLamports overwrites the signer's lamport balance.
func (in *Input) SetSignerLamports(v uint64) {
	binary.LittleEndian.PutUint64(in.raw[signerLamportsOffset:], v)
}

// BufferOwner returns the buffer account's owner field as a borrowed slice.
func (in *Input) BufferOwner() []byte {
	return in.raw[bufferOwnerOffset : bufferOwnerOffset+PubkeyLength]
}

// BufferLamports returns the buffer account's lamport balance.
func (in *Input) BufferLamports() uint64 {
	return binary.LittleEndian.Uint64(in.raw[bufferLamportsOffset:])
}

// SetBufferLamports overwrites the buffer account's lamport balance.
func (in *Input) SetBufferLamports(v uint64) {
	binary.LittleEndian.PutUint64(in.raw[bufferLamportsOffset:], v)
}

// BufferLen returns the buffer account's stored data length. The stored
// length counts from the authority field, so it is 32 plus the size of the
// data region that follows it.
func (in *Input) BufferLen() uint64 {
	return binary.LittleEndian.Uint64(in.raw[bufferLenOffset:])
}

// SetBufferLen overwrites the buffer account's stored data length.
func (in *Input) SetBufferLen(v uint64) {
	binary.LittleEndian.PutUint64(in.raw[bufferLenOffset:], v)
}

// Authority returns the buffer's stored authority key as a borrowed slice.
// Undefined until Init has run once for this buffer account.
func (in *Input) Authority() []byte {
	return in.raw[bufferAuthorityOffset : bufferAuthorityOffset+PubkeyLength]
}

// WriteBufferData copies src into the buffer's data region starting at
// offset bytes past its base. The destination is checked against the
// region, not against the buffer's stored length: the host sized the
// account, and writes beyond the stored length land in the account's
// growth padding.
func (in *Input) WriteBufferData(offset uint64, src []byte) error {
	dst := bufferDataOffset + int(offset)
	if err := in.ensure(dst, len(src)); err != nil {
		return err
	}
	copy(in.raw[dst:], src)
	return nil
}

// BufferData returns n bytes of the buffer's data region as a borrowed
// slice.
func (in *Input) BufferData(n int) ([]byte, error) {
	if err := in.ensure(bufferDataOffset, n); err != nil {
		return nil, err
	}
	return in.raw[bufferDataOffset : bufferDataOffset+n], nil
}

// ClearBufferOwner zero-fills the buffer account's owner field, returning
// the account to the System Program. The write goes straight into the
// host's region so it is observable after return even though nothing in
// this invocation reads it back.
func (in *Input) ClearBufferOwner() {
	owner := in.BufferOwner()
	for i := range owner {
		owner[i] = 0
	}
}

// alignUp rounds off up to the next multiple of Alignment.
func alignUp(off uint64) uint64 {
	return (off + Alignment - 1) &^ (Alignment - 1)
}

// Instruction locates and decodes the instruction block. Its offset is
// dynamic: the block sits after the buffer account's variable-length data
// and growth padding, so the stored length has to be skipped and the
// result re-aligned before the length and discriminator fields are valid.
// Returns the discriminator and the payload bytes that follow it.
func (in *Input) Instruction() (byte, []byte, error) {
	// The stored length is untrusted. Reject anything larger than the
	// region itself before it goes into offset arithmetic, so the sum can
	// neither wrap uint64 nor exceed the int range after conversion.
	storedLen := in.BufferLen()
	if storedLen > uint64(len(in.raw)) {
		return 0, nil, fmt.Errorf("%w: stored length %d exceeds %d-byte region",
			ErrInputTooShort, storedLen, len(in.raw))
	}
	off := alignUp(ixMinOffset + storedLen)

	if err := in.ensure(int(off), 8); err != nil {
		return 0, nil, err
	}
	size := binary.LittleEndian.Uint64(in.raw[off:])
	off += 8

	// The encoded size counts the discriminator byte.
	if size == 0 {
		return 0, nil, fmt.Errorf("%w: zero-length instruction", ErrInvalidInstructionData)
	}
	if err := in.ensure(int(off), int(size)); err != nil {
		return 0, nil, err
	}

	discriminator := in.raw[off]
	payload := in.raw[off+1 : off+size]
	return discriminator, payload, nil
}
