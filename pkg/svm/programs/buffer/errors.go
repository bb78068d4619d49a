package buffer

import "errors"

// Program errors. Every failure maps to the same nonzero host status code;
// the distinct sentinels exist for callers and tests that need to know why.
var (
	// ErrWrongAccountCount indicates the invocation did not pass exactly
	// two accounts.
	ErrWrongAccountCount = errors.New("wrong number of accounts")

	// ErrMissingSigner indicates the first account is not a fresh,
	// writable transaction signer.
	ErrMissingSigner = errors.New("missing signer")

	// ErrInvalidAuthority indicates the signer does not match the buffer's
	// stored authority.
	ErrInvalidAuthority = errors.New("invalid authority")

	// ErrInvalidInstruction indicates an unknown discriminator.
	ErrInvalidInstruction = errors.New("invalid instruction")

	// ErrInvalidInstructionData indicates the instruction payload is
	// malformed for its discriminator.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrInputTooShort indicates the host-supplied input region is smaller
	// than its own layout claims. The layout accessors refuse to read past
	// the end of the region rather than trusting the host's sizing.
	ErrInputTooShort = errors.New("input region too short")
)
