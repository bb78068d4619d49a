package buffer

import (
	"bytes"
	"testing"
)

func TestDecodeAccountFlags(t *testing.T) {
	flags := decodeAccountFlags(SigMutNoDup)
	if flags.IsDuplicate() {
		t.Error("canonical signer flags decoded as duplicate")
	}
	if !flags.Signer {
		t.Error("canonical signer flags decoded as non-signer")
	}
	if !flags.Writable {
		t.Error("canonical signer flags decoded as read-only")
	}
	if flags.Executable {
		t.Error("canonical signer flags decoded as executable")
	}
	if !flags.IsFreshWritableSigner() {
		t.Error("canonical signer flags rejected by IsFreshWritableSigner")
	}
}

func TestDecodeAccountFlagsDuplicate(t *testing.T) {
	// Marker byte 3 means "duplicate of account index 3".
	flags := decodeAccountFlags(0x010103)
	if !flags.IsDuplicate() {
		t.Fatal("duplicate marker not decoded")
	}
	if flags.DuplicateOf != 3 {
		t.Errorf("DuplicateOf = %d, want 3", flags.DuplicateOf)
	}
	if flags.IsFreshWritableSigner() {
		t.Error("duplicate account accepted as fresh signer")
	}
}

func TestDecodeAccountFlagsRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  uint32
	}{
		{"not a signer", 0x0100ff},
		{"not writable", 0x0001ff},
		{"executable", 0x010101ff},
		{"duplicate", 0x010100},
	}
	for _, tc := range cases {
		if decodeAccountFlags(tc.raw).IsFreshWritableSigner() {
			t.Errorf("%s (%#x) accepted as fresh writable signer", tc.name, tc.raw)
		}
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct {
		in, want uint64
	}{
		{0, 0},
		{1, 8},
		{7, 8},
		{8, 8},
		{9, 16},
		{0x50c8, 0x50c8},
		{0x50c8 + 3, 0x50d0},
	}
	for _, tc := range cases {
		if got := alignUp(tc.in); got != tc.want {
			t.Errorf("alignUp(%#x) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}

func TestWriteInstructionDecode(t *testing.T) {
	var inst WriteInstruction
	payload := []byte{0x02, 0x00, 0x00, 0xff, 0xee}
	if err := inst.Decode(payload); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if inst.Offset != 2 {
		t.Errorf("offset = %d, want 2", inst.Offset)
	}
	if !bytes.Equal(inst.Data, []byte{0xff, 0xee}) {
		t.Errorf("data = % x, want ff ee", inst.Data)
	}
}

func TestWriteInstructionDecodeMaxOffset(t *testing.T) {
	var inst WriteInstruction
	if err := inst.Decode([]byte{0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if inst.Offset != 0xffffff {
		t.Errorf("offset = %#x, want 0xffffff", inst.Offset)
	}
	if len(inst.Data) != 0 {
		t.Errorf("data length = %d, want 0", len(inst.Data))
	}
}

func TestWriteInstructionDecodeShort(t *testing.T) {
	var inst WriteInstruction
	if err := inst.Decode([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for 2-byte payload, got nil")
	}
}

func TestWriteInstructionEncodeRoundTrip(t *testing.T) {
	inst := WriteInstruction{Offset: 0x123456, Data: []byte{9, 8, 7}}
	encoded := inst.Encode()

	if encoded[0] != InstructionWrite {
		t.Errorf("discriminator = %d, want %d", encoded[0], InstructionWrite)
	}

	var decoded WriteInstruction
	if err := decoded.Decode(encoded[1:]); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Offset != inst.Offset {
		t.Errorf("offset = %#x, want %#x", decoded.Offset, inst.Offset)
	}
	if !bytes.Equal(decoded.Data, inst.Data) {
		t.Errorf("data = % x, want % x", decoded.Data, inst.Data)
	}
}

func TestAssignInstructionDecodeShort(t *testing.T) {
	var inst AssignInstruction
	if err := inst.Decode(make([]byte, 31)); err == nil {
		t.Error("expected error for 31-byte payload, got nil")
	}
}

func TestInitInstructionEncode(t *testing.T) {
	inst := InitInstruction{Data: []byte{0xaa, 0xbb}}
	if !bytes.Equal(inst.Encode(), []byte{0x00, 0xaa, 0xbb}) {
		t.Errorf("encoded = % x", inst.Encode())
	}

	empty := InitInstruction{}
	if !bytes.Equal(empty.Encode(), []byte{0x00}) {
		t.Errorf("empty encoded = % x", empty.Encode())
	}
}

func TestCloseInstructionEncode(t *testing.T) {
	inst := CloseInstruction{}
	if !bytes.Equal(inst.Encode(), []byte{0x03}) {
		t.Errorf("encoded = % x", inst.Encode())
	}
}

func TestNewInputTooShort(t *testing.T) {
	if _, err := NewInput(make([]byte, 7)); err == nil {
		t.Error("expected error for 7-byte region, got nil")
	}
}
