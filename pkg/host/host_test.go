package host_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/deanmlittle/chadbuffer/pkg/accounts"
	"github.com/deanmlittle/chadbuffer/pkg/host"
	"github.com/deanmlittle/chadbuffer/pkg/svm/programs/buffer"
	"github.com/deanmlittle/chadbuffer/pkg/types"
)

var (
	signerKey = types.PubkeyFromSeed("host-test/signer")
	bufferKey = types.PubkeyFromSeed("host-test/buffer")
)

// newTestDB seeds a funded signer and an empty buffer account owned by the
// program, with room for the authority plus size payload bytes.
func newTestDB(t *testing.T, size int) *accounts.MemoryDB {
	t.Helper()
	db := accounts.NewMemoryDB()

	signer := types.NewAccount(1_000_000, types.SystemProgramID)
	if err := db.SetAccount(signerKey, signer); err != nil {
		t.Fatalf("seeding signer: %v", err)
	}

	buf := types.NewAccountWithData(500_000, make([]byte, 32+size), buffer.ProgramID)
	if err := db.SetAccount(bufferKey, buf); err != nil {
		t.Fatalf("seeding buffer: %v", err)
	}
	return db
}

func mustSucceed(t *testing.T, result *host.Result, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("invocation failed, logs: %v", result.Logs)
	}
}

func TestInvokeMissingAccounts(t *testing.T) {
	db := accounts.NewMemoryDB()
	h := host.New(db)

	_, err := h.Invoke(signerKey, bufferKey, (&buffer.CloseInstruction{}).Encode())
	if !errors.Is(err, host.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}

	if err := db.SetAccount(signerKey, types.NewAccount(1, types.SystemProgramID)); err != nil {
		t.Fatal(err)
	}
	_, err = h.Invoke(signerKey, bufferKey, (&buffer.CloseInstruction{}).Encode())
	if !errors.Is(err, host.ErrAccountNotFound) {
		t.Errorf("missing buffer: err = %v, want ErrAccountNotFound", err)
	}
}

func TestInvokeLifecycle(t *testing.T) {
	db := newTestDB(t, 16)
	h := host.New(db)

	// Init writes the payload and takes authority for the signer.
	result, err := h.Invoke(signerKey, bufferKey,
		(&buffer.InitInstruction{Data: []byte{1, 2, 3, 4}}).Encode())
	mustSucceed(t, result, err)
	if len(result.Logs) != 1 || result.Logs[0] != "Program log: Init" {
		t.Errorf("logs = %v, want [Program log: Init]", result.Logs)
	}

	buf, err := db.GetAccount(bufferKey)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Data[:32], signerKey[:]) {
		t.Error("authority not persisted after Init")
	}
	if !bytes.Equal(buf.Data[32:36], []byte{1, 2, 3, 4}) {
		t.Errorf("payload = % x, want 01 02 03 04", buf.Data[32:36])
	}

	// Write splices into the payload region.
	result, err = h.Invoke(signerKey, bufferKey,
		(&buffer.WriteInstruction{Offset: 2, Data: []byte{0xaa, 0xbb}}).Encode())
	mustSucceed(t, result, err)

	buf, err = db.GetAccount(bufferKey)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Data[32:36], []byte{1, 2, 0xaa, 0xbb}) {
		t.Errorf("payload after write = % x, want 01 02 aa bb", buf.Data[32:36])
	}

	// Assign hands authority to a different key; the old signer is then
	// rejected.
	newAuthority := types.PubkeyFromSeed("host-test/new-authority")
	result, err = h.Invoke(signerKey, bufferKey,
		(&buffer.AssignInstruction{Authority: newAuthority}).Encode())
	mustSucceed(t, result, err)

	result, err = h.Invoke(signerKey, bufferKey,
		(&buffer.WriteInstruction{Offset: 0, Data: []byte{9}}).Encode())
	if err != nil {
		t.Fatal(err)
	}
	if result.Succeeded() {
		t.Error("write with stale authority succeeded")
	}
	if len(result.Logs) == 0 || result.Logs[len(result.Logs)-1] != "Program log: Invalid authority" {
		t.Errorf("logs = %v, want Invalid authority last", result.Logs)
	}

	// Hand authority back so the original signer can close.
	if err := db.SetAccount(signerKey, types.NewAccount(1_000_000, types.SystemProgramID)); err != nil {
		t.Fatal(err)
	}
	reassigned, err := db.GetAccount(bufferKey)
	if err != nil {
		t.Fatal(err)
	}
	copy(reassigned.Data[:32], signerKey[:])
	if err := db.SetAccount(bufferKey, reassigned); err != nil {
		t.Fatal(err)
	}

	result, err = h.Invoke(signerKey, bufferKey, (&buffer.CloseInstruction{}).Encode())
	mustSucceed(t, result, err)

	signer, err := db.GetAccount(signerKey)
	if err != nil {
		t.Fatal(err)
	}
	buf, err = db.GetAccount(bufferKey)
	if err != nil {
		t.Fatal(err)
	}
	if signer.Lamports != 1_500_000 {
		t.Errorf("signer lamports = %d, want 1500000", signer.Lamports)
	}
	if buf.Lamports != 0 {
		t.Errorf("buffer lamports = %d, want 0", buf.Lamports)
	}
	if !buf.Owner.IsZero() {
		t.Errorf("buffer owner = %s, want zero", buf.Owner)
	}
}

func TestFailedInvocationPersistsNothing(t *testing.T) {
	db := newTestDB(t, 8)
	h := host.New(db)

	result, err := firstInit(h)
	mustSucceed(t, result, err)

	signerBefore, _ := db.GetAccount(signerKey)
	bufBefore, _ := db.GetAccount(bufferKey)

	// Unknown discriminator fails after the guards.
	result, err = h.Invoke(signerKey, bufferKey, []byte{9})
	if err != nil {
		t.Fatal(err)
	}
	if result.Succeeded() {
		t.Fatal("unknown instruction succeeded")
	}

	signerAfter, _ := db.GetAccount(signerKey)
	bufAfter, _ := db.GetAccount(bufferKey)
	if signerAfter.Lamports != signerBefore.Lamports {
		t.Error("failed invocation changed signer lamports")
	}
	if !bytes.Equal(bufAfter.Data, bufBefore.Data) {
		t.Error("failed invocation changed buffer data")
	}
}

func firstInit(h *host.Host) (*host.Result, error) {
	return h.Invoke(signerKey, bufferKey, (&buffer.InitInstruction{}).Encode())
}

// Closing an already-closed buffer still passes the authority gate: Close
// drains lamports and zeroes the owner but leaves the stored authority in
// place, so a second Close from the same signer is a harmless no-op.
func TestCloseAfterClose(t *testing.T) {
	db := newTestDB(t, 8)
	h := host.New(db)

	result, err := firstInit(h)
	mustSucceed(t, result, err)
	result, err = h.Invoke(signerKey, bufferKey, (&buffer.CloseInstruction{}).Encode())
	mustSucceed(t, result, err)

	signerMid, _ := db.GetAccount(signerKey)

	result, err = h.Invoke(signerKey, bufferKey, (&buffer.CloseInstruction{}).Encode())
	mustSucceed(t, result, err)
	if result.Logs[len(result.Logs)-1] != "Program log: Close" {
		t.Errorf("logs = %v, want Close last", result.Logs)
	}

	signerAfter, _ := db.GetAccount(signerKey)
	bufAfter, _ := db.GetAccount(bufferKey)
	if signerAfter.Lamports != signerMid.Lamports {
		t.Errorf("second close moved lamports: %d -> %d", signerMid.Lamports, signerAfter.Lamports)
	}
	if bufAfter.Lamports != 0 {
		t.Errorf("buffer lamports = %d after second close", bufAfter.Lamports)
	}
	if !bytes.Equal(bufAfter.Data[:32], signerKey[:]) {
		t.Error("authority lost across close")
	}
}

func TestInvocationContextCaps(t *testing.T) {
	ctx := host.NewInvocationContext()

	long := strings.Repeat("x", host.MaxLogMessageLength+10)
	ctx.Log(long)
	logs := ctx.Logs()
	if len(logs) != 1 {
		t.Fatalf("log count = %d, want 1", len(logs))
	}
	if len(logs[0]) != len("Program log: ")+host.MaxLogMessageLength {
		t.Errorf("log length = %d, want %d", len(logs[0]), len("Program log: ")+host.MaxLogMessageLength)
	}

	for i := 0; i < host.MaxLogMessages*2; i++ {
		ctx.Log("line")
	}
	if got := len(ctx.Logs()); got != host.MaxLogMessages {
		t.Errorf("log count = %d, want cap %d", got, host.MaxLogMessages)
	}
}
