// Package abi builds and re-reads the input region a program invocation
// operates on. It is the host side of the program's memory contract: one
// contiguous little-endian region holding the account count, a fixed-size
// record per account, and the instruction block.
//
// Region layout, offsets relative to the region base:
//
//	account count     u64
//	per account (first occurrence):
//	  dup marker      u8   0xff
//	  is_signer       u8
//	  is_writable     u8
//	  executable      u8
//	  reserved        4 bytes
//	  pubkey          32 bytes
//	  owner           32 bytes
//	  lamports        u64
//	  data length     u64
//	  data            data length bytes
//	  growth padding  10240 bytes
//	  (align to 8)
//	  rent epoch      u64
//	per account (repeat occurrence):
//	  dup marker      u8   index of the first occurrence
//	  reserved        7 bytes
//	instruction length u64
//	instruction        variable
//	program id         32 bytes
//
// Programs may mutate lamports, owner, the data length field, and data in
// place; Commit copies lamports, owner, and data back into the account
// structs. Account data capacity is fixed when the account is created:
// the serialized length field is visible to the program, but rewriting it
// does not resize the stored account, and writes into the growth padding
// are not persisted.
package abi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deanmlittle/chadbuffer/pkg/types"
)

// Layout constants.
const (
	// NonDuplicateMarker is the dup-marker byte of a first occurrence.
	NonDuplicateMarker byte = 0xff

	// MaxPermittedDataIncrease is the growth padding serialized after each
	// account's data. Programs may extend an account's data into it.
	MaxPermittedDataIncrease = 10240

	// Alignment is the alignment of the per-account rent-epoch field and
	// of the instruction block.
	Alignment = 8

	accountHeaderSize = 8 // dup marker + 3 flag bytes + 4 reserved
	duplicateSize     = 8 // dup marker + 7 reserved
)

var (
	// ErrNilAccount is returned when a parameter carries no account.
	ErrNilAccount = errors.New("nil account in serialization parameters")

	// ErrRegionTruncated is returned when a region is too small for the
	// layout its parameters describe.
	ErrRegionTruncated = errors.New("input region truncated")

	// ErrDataTooLarge is returned when a program grew an account's data
	// beyond its serialized capacity.
	ErrDataTooLarge = errors.New("account data exceeds serialized capacity")
)

// AccountParam describes one account passed to an invocation.
type AccountParam struct {
	Pubkey     types.Pubkey
	Account    *types.Account
	IsSigner   bool
	IsWritable bool
}

func alignUp(off int) int {
	return (off + Alignment - 1) &^ (Alignment - 1)
}

// duplicateIndex returns the index of the earlier parameter with the same
// pubkey, or -1 if params[i] is a first occurrence.
func duplicateIndex(params []AccountParam, i int) int {
	for j := 0; j < i; j++ {
		if params[j].Pubkey == params[i].Pubkey {
			return j
		}
	}
	return -1
}

// SerializedSize returns the size of the region Serialize would produce.
func SerializedSize(params []AccountParam, instruction []byte) int {
	size := 8
	for i, p := range params {
		if duplicateIndex(params, i) >= 0 {
			size += duplicateSize
			continue
		}
		size += accountHeaderSize + 32 + 32 + 8 + 8
		size += len(p.Account.Data) + MaxPermittedDataIncrease
		size = alignUp(size)
		size += 8 // rent epoch
	}
	size += 8 + len(instruction) + 32
	return size
}

// Serialize produces the input region for one invocation.
func Serialize(params []AccountParam, instruction []byte, programID types.Pubkey) ([]byte, error) {
	for _, p := range params {
		if p.Account == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilAccount, p.Pubkey)
		}
	}

	region := make([]byte, SerializedSize(params, instruction))
	binary.LittleEndian.PutUint64(region[0:8], uint64(len(params)))
	off := 8

	for i, p := range params {
		if dup := duplicateIndex(params, i); dup >= 0 {
			region[off] = byte(dup)
			off += duplicateSize
			continue
		}

		region[off] = NonDuplicateMarker
		region[off+1] = boolByte(p.IsSigner)
		region[off+2] = boolByte(p.IsWritable)
		region[off+3] = boolByte(p.Account.Executable)
		off += accountHeaderSize

		copy(region[off:], p.Pubkey[:])
		off += 32
		copy(region[off:], p.Account.Owner[:])
		off += 32
		binary.LittleEndian.PutUint64(region[off:], uint64(p.Account.Lamports))
		off += 8
		binary.LittleEndian.PutUint64(region[off:], uint64(len(p.Account.Data)))
		off += 8
		copy(region[off:], p.Account.Data)
		off += len(p.Account.Data) + MaxPermittedDataIncrease
		off = alignUp(off)
		binary.LittleEndian.PutUint64(region[off:], uint64(p.Account.RentEpoch))
		off += 8
	}

	binary.LittleEndian.PutUint64(region[off:], uint64(len(instruction)))
	off += 8
	copy(region[off:], instruction)
	off += len(instruction)
	copy(region[off:], programID[:])

	return region, nil
}

// Commit copies a program's in-place mutations back into the account
// structs. The region must have been produced by Serialize with the same
// parameters: the walk uses the accounts' data lengths, which fix the
// layout regardless of how the program rewrote the length fields.
// Writable accounts pick up lamports, owner, and data; read-only accounts
// and duplicates are skipped. A length field rewritten beyond the
// serialized capacity is rejected; anything else is program-visible
// metadata and does not resize the stored account.
//
// The whole region is validated before any account struct is touched: on
// error the accounts are exactly as passed, never partially updated.
func Commit(region []byte, params []AccountParam) error {
	if len(region) < 8 {
		return fmt.Errorf("%w: %d bytes", ErrRegionTruncated, len(region))
	}

	// First pass: locate every record and reject truncation or overgrown
	// length fields.
	const skipped = -1
	ownerOffs := make([]int, len(params))
	off := 8

	for i, p := range params {
		ownerOffs[i] = skipped
		if duplicateIndex(params, i) >= 0 {
			off += duplicateSize
			continue
		}

		capacity := len(p.Account.Data) + MaxPermittedDataIncrease
		recordEnd := alignUp(off+accountHeaderSize+32+32+8+8+capacity) + 8
		if len(region) < recordEnd {
			return fmt.Errorf("%w: account %s", ErrRegionTruncated, p.Pubkey)
		}

		ownerOff := off + accountHeaderSize + 32
		off = recordEnd

		if !p.IsWritable {
			continue
		}
		if newLen := binary.LittleEndian.Uint64(region[ownerOff+32+8:]); newLen > uint64(capacity) {
			return fmt.Errorf("%w: %s claims %d bytes, capacity %d",
				ErrDataTooLarge, p.Pubkey, newLen, capacity)
		}
		ownerOffs[i] = ownerOff
	}

	// Second pass: apply. Fields sit at fixed distances from the owner
	// field: lamports +32, length +40, data +48.
	for i, p := range params {
		ownerOff := ownerOffs[i]
		if ownerOff == skipped {
			continue
		}
		p.Account.Lamports = types.Lamports(binary.LittleEndian.Uint64(region[ownerOff+32:]))
		copy(p.Account.Owner[:], region[ownerOff:ownerOff+32])
		copy(p.Account.Data, region[ownerOff+48:])
	}

	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
