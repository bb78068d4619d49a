// Package host drives buffer program invocations the way the chain
// runtime would: it loads the signer and buffer accounts from storage,
// serializes them into an input region, runs the program entrypoint, and
// commits the mutated account state back on success. One call in, one
// Result out; a failed invocation commits nothing.
package host

import (
	"errors"
	"fmt"

	"github.com/deanmlittle/chadbuffer/pkg/svm/abi"
	"github.com/deanmlittle/chadbuffer/pkg/svm/programs/buffer"
	"github.com/deanmlittle/chadbuffer/pkg/types"
)

// Host errors
var (
	// ErrAccountNotFound indicates a referenced account does not exist in
	// storage. The runtime proves account existence before invocation;
	// this harness enforces the same contract.
	ErrAccountNotFound = errors.New("account not found")
)

// Log limits, matching the runtime's per-invocation caps.
const (
	MaxLogMessages      = 64
	MaxLogMessageLength = 10000
)

// AccountsDB is the interface for account storage.
// This allows the host to load and persist account state around a call.
type AccountsDB interface {
	// GetAccount retrieves an account by its public key.
	// Returns nil, nil if the account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// HasAccount checks if an account exists.
	HasAccount(pubkey types.Pubkey) bool
}

// InvocationContext collects the diagnostics of one invocation. It is the
// program's log sink; messages past the cap are dropped silently, matching
// the runtime's truncation behavior.
type InvocationContext struct {
	logs []string
}

// NewInvocationContext creates an empty invocation context.
func NewInvocationContext() *InvocationContext {
	return &InvocationContext{
		logs: make([]string, 0, 8),
	}
}

// Log implements buffer.LogSink.
func (ctx *InvocationContext) Log(msg string) {
	if len(ctx.logs) >= MaxLogMessages {
		return
	}
	if len(msg) > MaxLogMessageLength {
		msg = msg[:MaxLogMessageLength]
	}
	ctx.logs = append(ctx.logs, fmt.Sprintf("Program log: %s", msg))
}

// Logs returns the collected log lines.
func (ctx *InvocationContext) Logs() []string {
	logs := make([]string, len(ctx.logs))
	copy(logs, ctx.logs)
	return logs
}

// Result is the outcome of one invocation.
type Result struct {
	// Status is the program's host status scalar: 0 on success.
	Status uint64

	// Logs are the program's diagnostic lines, in emission order.
	Logs []string
}

// Succeeded returns true if the program did not signal failure.
func (r *Result) Succeeded() bool {
	return r.Status == buffer.StatusSuccess
}

// Host executes buffer program invocations against an accounts database.
type Host struct {
	db      AccountsDB
	program *buffer.Program
}

// New creates a Host bound to an accounts database.
func New(db AccountsDB) *Host {
	return &Host{
		db:      db,
		program: buffer.New(),
	}
}

// Invoke runs one instruction against stored accounts. The signer and
// buffer accounts must both exist; the signer is passed as a writable
// signer and the buffer as a plain writable account, exactly the shape the
// program's guard expects. On success both accounts are persisted with
// whatever the program left in the region.
func (h *Host) Invoke(signer, bufferKey types.Pubkey, instruction []byte) (*Result, error) {
	signerAcc, err := h.db.GetAccount(signer)
	if err != nil {
		return nil, fmt.Errorf("loading signer: %w", err)
	}
	if signerAcc == nil {
		return nil, fmt.Errorf("%w: signer %s", ErrAccountNotFound, signer)
	}

	bufferAcc, err := h.db.GetAccount(bufferKey)
	if err != nil {
		return nil, fmt.Errorf("loading buffer account: %w", err)
	}
	if bufferAcc == nil {
		return nil, fmt.Errorf("%w: buffer %s", ErrAccountNotFound, bufferKey)
	}

	params := []abi.AccountParam{
		{Pubkey: signer, Account: signerAcc, IsSigner: true, IsWritable: true},
		{Pubkey: bufferKey, Account: bufferAcc, IsWritable: true},
	}

	result, err := h.InvokeParams(params, instruction)
	if err != nil {
		return nil, err
	}
	if !result.Succeeded() {
		return result, nil
	}

	if err := h.db.SetAccount(signer, signerAcc); err != nil {
		return nil, fmt.Errorf("persisting signer: %w", err)
	}
	if err := h.db.SetAccount(bufferKey, bufferAcc); err != nil {
		return nil, fmt.Errorf("persisting buffer account: %w", err)
	}
	return result, nil
}

// InvokeParams runs one instruction against caller-supplied accounts
// without touching storage. The account structs are mutated in place when
// the program succeeds; on failure they are left as passed.
func (h *Host) InvokeParams(params []abi.AccountParam, instruction []byte) (*Result, error) {
	region, err := abi.Serialize(params, instruction, h.program.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("serializing input region: %w", err)
	}

	ctx := NewInvocationContext()
	status := h.program.Entrypoint(ctx, region)
	result := &Result{Status: status, Logs: ctx.Logs()}
	if status != buffer.StatusSuccess {
		return result, nil
	}

	if err := abi.Commit(region, params); err != nil {
		return nil, fmt.Errorf("committing account state: %w", err)
	}
	return result, nil
}
