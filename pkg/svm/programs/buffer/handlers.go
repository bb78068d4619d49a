package buffer

// handleInit handles the Init instruction.
// Sets the buffer's authority to the signer and overwrites the start of
// the buffer data with the instruction payload. The stored length is not
// touched: the host sized the account when it created it.
func handleInit(in *Input, inst *InitInstruction) error {
	copy(in.Authority(), in.SignerKey())
	return in.WriteBufferData(0, inst.Data)
}

// handleAssign handles the Assign instruction.
// Replaces the stored authority; the buffer contents are untouched.
func handleAssign(in *Input, inst *AssignInstruction) error {
	copy(in.Authority(), inst.Authority[:])
	return nil
}

// handleWrite handles the Write instruction.
// Splices the payload into the buffer data at the instruction's 24-bit
// offset. The destination is not checked against the buffer's stored
// length, only against the input region itself; keeping the account large
// enough is the host's contract.
func handleWrite(in *Input, inst *WriteInstruction) error {
	return in.WriteBufferData(uint64(inst.Offset), inst.Data)
}

// handleClose handles the Close instruction.
// Drains the buffer's lamports to the signer, zeroes the stored length,
// and hands the account back to the System Program by zero-filling the
// owner field. The stored authority is deliberately left in place, so a
// repeat Close from the same signer passes the authority gate and is a
// lamports no-op.
func handleClose(in *Input) error {
	in.SetSignerLamports(in.SignerLamports() + in.BufferLamports())
	in.SetBufferLamports(0)
	in.SetBufferLen(0)
	in.ClearBufferOwner()
	return nil
}
