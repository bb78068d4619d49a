// Package buffer implements the buffer account manager program.
//
// The program owns a single mutable byte buffer whose lifecycle is
// controlled by a designated authority key. It supports four instructions:
//
//	0 - Init:   set the authority to the signer and write the payload
//	1 - Assign: replace the authority
//	2 - Write:  splice bytes into the buffer at a 24-bit offset
//	3 - Close:  drain lamports to the signer and release the account
//
// Each invocation receives the host-serialized input region carrying
// exactly two accounts, the signer followed by the buffer account, and
// mutates it in place. The host persists the region's account state after
// a successful return; a nonzero status discards it.
package buffer

import (
	"bytes"
	"errors"

	"github.com/deanmlittle/chadbuffer/pkg/types"
)

// ProgramID is the buffer manager's program address. Derived from a fixed
// seed so the harness and tests agree on it without an on-chain deployment.
var ProgramID = types.PubkeyFromSeed("chadbuffer/buffer-manager/v1")

// Host status codes. Anything nonzero is a failure; the host treats a
// return that did not signal failure as success.
const (
	StatusSuccess uint64 = 0
	StatusFailure uint64 = 1
)

// LogSink receives the program's diagnostic lines.
type LogSink interface {
	Log(msg string)
}

// Program is the buffer account manager.
type Program struct {
	ProgramID types.Pubkey
}

// New creates a new buffer manager Program instance.
func New() *Program {
	return &Program{ProgramID: ProgramID}
}

// Entrypoint runs one invocation against a raw input region and returns
// the host status scalar.
func (p *Program) Entrypoint(log LogSink, region []byte) uint64 {
	if err := p.Execute(log, region); err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// Execute runs one invocation against a raw input region. Guards run
// strictly before any mutation: a returned error means the region is
// byte-for-byte as the host supplied it.
func (p *Program) Execute(log LogSink, region []byte) error {
	in, err := NewInput(region)
	if err != nil {
		log.Log("Input region too short")
		return err
	}

	// The fixed offsets are only meaningful for exactly two accounts.
	if in.AccountCount() != 2 {
		log.Log("Wrong number of accounts")
		return ErrWrongAccountCount
	}
	if err := in.CheckAccountLayout(); err != nil {
		log.Log("Input region too short")
		return err
	}

	// With two accounts and a fresh writable signer first, the buffer
	// account's own properties need no separate check: a read-only buffer
	// fails when the host refuses to commit the mutation.
	if !in.SignerFlags().IsFreshWritableSigner() {
		log.Log("Missing signer")
		return ErrMissingSigner
	}

	discriminator, payload, err := in.Instruction()
	if err != nil {
		if errors.Is(err, ErrInvalidInstructionData) {
			log.Log("Invalid IX")
		} else {
			log.Log("Input region too short")
		}
		return err
	}

	// Authority gate: every instruction except Init requires the signer
	// to match the stored authority. Unknown discriminators are gated
	// too; they fail on authority before they fail on dispatch.
	if discriminator != InstructionInit && !bytes.Equal(in.Authority(), in.SignerKey()) {
		log.Log("Invalid authority")
		return ErrInvalidAuthority
	}

	// Malformed payloads log the same line as unknown discriminators, so
	// every failure class leaves a diagnostic behind.
	switch discriminator {
	case InstructionInit:
		var inst InitInstruction
		if err := inst.Decode(payload); err != nil {
			log.Log("Invalid IX")
			return err
		}
		log.Log("Init")
		return handleInit(in, &inst)

	case InstructionAssign:
		var inst AssignInstruction
		if err := inst.Decode(payload); err != nil {
			log.Log("Invalid IX")
			return err
		}
		log.Log("Assign")
		return handleAssign(in, &inst)

	case InstructionWrite:
		var inst WriteInstruction
		if err := inst.Decode(payload); err != nil {
			log.Log("Invalid IX")
			return err
		}
		log.Log("Write")
		return handleWrite(in, &inst)

	case InstructionClose:
		var inst CloseInstruction
		if err := inst.Decode(payload); err != nil {
			log.Log("Invalid IX")
			return err
		}
		log.Log("Close")
		return handleClose(in)

	default:
		log.Log("Invalid IX")
		return ErrInvalidInstruction
	}
}
