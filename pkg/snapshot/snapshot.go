// Package snapshot exports and imports the whole accounts database as a
// single zstd-compressed archive. Snapshots let a harness state be moved
// between machines or kept as a checkpoint before destructive operations.
package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/deanmlittle/chadbuffer/pkg/accounts"
	"github.com/deanmlittle/chadbuffer/pkg/types"
)

var (
	// ErrInvalidSnapshot is returned when the archive is malformed.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrUnsupportedVersion is returned for an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrHashMismatch is returned when the integrity hash does not match.
	ErrHashMismatch = errors.New("snapshot hash mismatch")
)

// Archive format, inside the zstd stream, all integers little-endian:
//
//	magic    4 bytes  "CSNP"
//	version  4 bytes
//	count    8 bytes
//	entries  count times: pubkey (32) + value length (4) + value
//	hash     32 bytes  SHA256 of everything from magic through entries
//
// Entry values use the accounts package's at-rest serialization.
const (
	magic   = "CSNP"
	version = uint32(1)
)

// Save writes a snapshot of db to path. The file is written atomically:
// a temporary file is renamed into place only after the stream is synced.
func Save(db accounts.AccountsDB, path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp)

	if err := Write(db, file); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// Load reads a snapshot from path into db. Existing accounts with the
// same pubkeys are overwritten; other accounts are left alone.
func Load(db accounts.AccountsDB, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	return Read(db, file)
}

// hashingWriter feeds everything written through it into a running hash.
type hashingWriter struct {
	w io.Writer
	h hash.Hash
}

func (hw *hashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	return n, err
}

// Write streams a snapshot of db to w.
func Write(db accounts.AccountsDB, w io.Writer) error {
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	hw := &hashingWriter{w: encoder, h: sha256.New()}

	header := make([]byte, 4+4+8)
	copy(header, magic)
	binary.LittleEndian.PutUint32(header[4:], version)
	binary.LittleEndian.PutUint64(header[8:], db.GetAccountsCount())
	if _, err := hw.Write(header); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}

	err = db.ForEachAccount(func(pubkey types.Pubkey, account *types.Account) error {
		value, err := accounts.SerializeAccount(account)
		if err != nil {
			return err
		}

		entry := make([]byte, 32+4+len(value))
		copy(entry, pubkey[:])
		binary.LittleEndian.PutUint32(entry[32:], uint32(len(value)))
		copy(entry[36:], value)

		_, err = hw.Write(entry)
		return err
	})
	if err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write snapshot entries: %w", err)
	}

	if _, err := encoder.Write(hw.h.Sum(nil)); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write snapshot hash: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

// Read streams a snapshot from r into db, verifying the integrity hash.
func Read(db accounts.AccountsDB, r io.Reader) error {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	h := sha256.New()

	header := make([]byte, 4+4+8)
	if _, err := io.ReadFull(decoder, header); err != nil {
		return fmt.Errorf("%w: short header: %v", ErrInvalidSnapshot, err)
	}
	h.Write(header)

	if string(header[:4]) != magic {
		return fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != version {
		return fmt.Errorf("%w: version %d", ErrUnsupportedVersion, v)
	}
	count := binary.LittleEndian.Uint64(header[8:])

	entryHeader := make([]byte, 32+4)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(decoder, entryHeader); err != nil {
			return fmt.Errorf("%w: short entry %d: %v", ErrInvalidSnapshot, i, err)
		}
		h.Write(entryHeader)

		pubkey, err := types.PubkeyFromBytes(entryHeader[:32])
		if err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrInvalidSnapshot, i, err)
		}

		valueLen := binary.LittleEndian.Uint32(entryHeader[32:])
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(decoder, value); err != nil {
			return fmt.Errorf("%w: short entry %d value: %v", ErrInvalidSnapshot, i, err)
		}
		h.Write(value)

		account, err := accounts.DeserializeAccount(value)
		if err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrInvalidSnapshot, i, err)
		}
		if err := db.SetAccount(pubkey, account); err != nil {
			return fmt.Errorf("failed to store account %s: %w", pubkey, err)
		}
	}

	var want types.Hash
	if _, err := io.ReadFull(decoder, want[:]); err != nil {
		return fmt.Errorf("%w: missing hash: %v", ErrInvalidSnapshot, err)
	}
	var got types.Hash
	copy(got[:], h.Sum(nil))
	if got != want {
		return ErrHashMismatch
	}
	return nil
}
