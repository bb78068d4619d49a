// chadbuffer: local harness for the buffer account manager program.
//
// The harness plays the host runtime: it keeps accounts in a local
// database, builds instruction bytes with the program's own encoders, runs
// the program entrypoint against a serialized input region, and persists
// whatever the program left behind. Signature verification is out of
// scope; the harness trusts its caller the way the chain runtime proves
// signatures before a program ever runs.
//
// Usage:
//
//	chadbuffer [-data-dir DIR] COMMAND [ARGS]
//
// Commands:
//
//	keygen                            generate a keypair, print base58 pubkey
//	create  SIGNER BUFFER SIZE FUND   create and fund a buffer account
//	init    SIGNER BUFFER [HEXDATA]   Init: claim authority, write payload
//	assign  SIGNER BUFFER NEWAUTH     Assign: hand authority to NEWAUTH
//	write   SIGNER BUFFER OFF HEXDATA Write: splice bytes at offset
//	close   SIGNER BUFFER             Close: drain lamports, release account
//	show    PUBKEY                    print an account's stored state
//	snapshot PATH                     export all accounts to a zstd archive
//	restore  PATH                     import accounts from a zstd archive
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/deanmlittle/chadbuffer/pkg/accounts"
	"github.com/deanmlittle/chadbuffer/pkg/host"
	"github.com/deanmlittle/chadbuffer/pkg/snapshot"
	"github.com/deanmlittle/chadbuffer/pkg/svm/programs/buffer"
	"github.com/deanmlittle/chadbuffer/pkg/types"
)

var (
	dataDir = flag.String("data-dir", "", "Account database directory (in-memory when empty)")
	quiet   = flag.Bool("quiet", false, "Suppress program logs")
)

func main() {
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	db, err := openDB()
	if err != nil {
		log.Fatalf("chadbuffer: %v", err)
	}
	defer db.Close()

	if err := run(db, args[0], args[1:]); err != nil {
		log.Fatalf("chadbuffer: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: chadbuffer [-data-dir DIR] COMMAND [ARGS]\n\n")
	fmt.Fprintf(os.Stderr, "commands:\n")
	fmt.Fprintf(os.Stderr, "  keygen                             generate a keypair\n")
	fmt.Fprintf(os.Stderr, "  create  SIGNER BUFFER SIZE FUND    create a buffer account\n")
	fmt.Fprintf(os.Stderr, "  init    SIGNER BUFFER [HEXDATA]    claim authority, write payload\n")
	fmt.Fprintf(os.Stderr, "  assign  SIGNER BUFFER NEWAUTH      hand authority over\n")
	fmt.Fprintf(os.Stderr, "  write   SIGNER BUFFER OFF HEXDATA  splice bytes at offset\n")
	fmt.Fprintf(os.Stderr, "  close   SIGNER BUFFER              drain and release\n")
	fmt.Fprintf(os.Stderr, "  show    PUBKEY                     print account state\n")
	fmt.Fprintf(os.Stderr, "  snapshot PATH                      export accounts\n")
	fmt.Fprintf(os.Stderr, "  restore  PATH                      import accounts\n")
}

func openDB() (accounts.AccountsDB, error) {
	if *dataDir == "" {
		return accounts.NewMemoryDB(), nil
	}
	return accounts.NewBadgerDB(*dataDir)
}

func run(db accounts.AccountsDB, command string, args []string) error {
	switch command {
	case "keygen":
		return cmdKeygen()
	case "create":
		return cmdCreate(db, args)
	case "init":
		return cmdInit(db, args)
	case "assign":
		return cmdAssign(db, args)
	case "write":
		return cmdWrite(db, args)
	case "close":
		return cmdClose(db, args)
	case "show":
		return cmdShow(db, args)
	case "snapshot":
		return cmdSnapshot(db, args)
	case "restore":
		return cmdRestore(db, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdKeygen() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generating keypair: %w", err)
	}
	pubkey, err := types.PubkeyFromBytes(pub)
	if err != nil {
		return err
	}
	fmt.Printf("pubkey:  %s\n", pubkey)
	fmt.Printf("privkey: %s\n", hex.EncodeToString(priv.Seed()))
	return nil
}

// cmdCreate funds a signer (if new) and creates the buffer account sized
// for a 32-byte authority plus SIZE payload bytes, owned by the program.
func cmdCreate(db accounts.AccountsDB, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("create needs SIGNER BUFFER SIZE FUND")
	}
	signer, err := types.PubkeyFromBase58(args[0])
	if err != nil {
		return fmt.Errorf("bad signer: %w", err)
	}
	bufferKey, err := types.PubkeyFromBase58(args[1])
	if err != nil {
		return fmt.Errorf("bad buffer pubkey: %w", err)
	}
	size, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("bad size: %w", err)
	}
	fund, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("bad fund amount: %w", err)
	}

	if !db.HasAccount(signer) {
		signerAcc := types.NewAccount(types.RentExemptMinimum(0), types.SystemProgramID)
		if err := db.SetAccount(signer, signerAcc); err != nil {
			return err
		}
	}
	if db.HasAccount(bufferKey) {
		return fmt.Errorf("buffer account %s already exists", bufferKey)
	}

	// Authority field + payload capacity.
	data := make([]byte, buffer.PubkeyLength+int(size))
	bufferAcc := types.NewAccountWithData(types.Lamports(fund), data, buffer.ProgramID)
	if err := db.SetAccount(bufferKey, bufferAcc); err != nil {
		return err
	}
	fmt.Printf("created buffer %s: %d payload bytes, %d lamports\n", bufferKey, size, fund)
	return nil
}

func cmdInit(db accounts.AccountsDB, args []string) error {
	if len(args) != 2 && len(args) != 3 {
		return fmt.Errorf("init needs SIGNER BUFFER [HEXDATA]")
	}
	var data []byte
	if len(args) == 3 {
		var err error
		data, err = hex.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("bad hex data: %w", err)
		}
	}
	inst := buffer.InitInstruction{Data: data}
	return invoke(db, args[0], args[1], inst.Encode())
}

func cmdAssign(db accounts.AccountsDB, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("assign needs SIGNER BUFFER NEWAUTH")
	}
	newAuth, err := types.PubkeyFromBase58(args[2])
	if err != nil {
		return fmt.Errorf("bad new authority: %w", err)
	}
	inst := buffer.AssignInstruction{Authority: newAuth}
	return invoke(db, args[0], args[1], inst.Encode())
}

func cmdWrite(db accounts.AccountsDB, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("write needs SIGNER BUFFER OFF HEXDATA")
	}
	off, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("bad offset: %w", err)
	}
	if off > 0xffffff {
		return fmt.Errorf("offset %d does not fit in 24 bits", off)
	}
	data, err := hex.DecodeString(args[3])
	if err != nil {
		return fmt.Errorf("bad hex data: %w", err)
	}
	inst := buffer.WriteInstruction{Offset: uint32(off), Data: data}
	return invoke(db, args[0], args[1], inst.Encode())
}

func cmdClose(db accounts.AccountsDB, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("close needs SIGNER BUFFER")
	}
	inst := buffer.CloseInstruction{}
	return invoke(db, args[0], args[1], inst.Encode())
}

func invoke(db accounts.AccountsDB, signerArg, bufferArg string, instruction []byte) error {
	signer, err := types.PubkeyFromBase58(signerArg)
	if err != nil {
		return fmt.Errorf("bad signer: %w", err)
	}
	bufferKey, err := types.PubkeyFromBase58(bufferArg)
	if err != nil {
		return fmt.Errorf("bad buffer pubkey: %w", err)
	}

	h := host.New(db)
	result, err := h.Invoke(signer, bufferKey, instruction)
	if err != nil {
		return err
	}
	if !*quiet {
		for _, line := range result.Logs {
			fmt.Fprintln(os.Stderr, line)
		}
	}
	if !result.Succeeded() {
		return fmt.Errorf("invocation failed with status %d", result.Status)
	}
	return nil
}

func cmdShow(db accounts.AccountsDB, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show needs PUBKEY")
	}
	pubkey, err := types.PubkeyFromBase58(args[0])
	if err != nil {
		return fmt.Errorf("bad pubkey: %w", err)
	}
	account, err := db.GetAccount(pubkey)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account %s not found", pubkey)
	}

	fmt.Printf("pubkey:   %s\n", pubkey)
	fmt.Printf("owner:    %s\n", account.Owner)
	fmt.Printf("lamports: %d (%.9f SOL)\n", account.Lamports, account.Lamports.SOL())
	fmt.Printf("data len: %d\n", account.DataLen())
	if account.DataLen() >= buffer.PubkeyLength && account.Owner == buffer.ProgramID {
		authority, _ := types.PubkeyFromBytes(account.Data[:buffer.PubkeyLength])
		fmt.Printf("authority: %s\n", authority)
		fmt.Printf("payload:   %s\n", hex.EncodeToString(account.Data[buffer.PubkeyLength:]))
	} else if account.DataLen() > 0 {
		fmt.Printf("data:     %s\n", hex.EncodeToString(account.Data))
	}
	return nil
}

func cmdSnapshot(db accounts.AccountsDB, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("snapshot needs PATH")
	}
	if err := snapshot.Save(db, args[0]); err != nil {
		return err
	}
	fmt.Printf("saved %d accounts to %s\n", db.GetAccountsCount(), args[0])
	return nil
}

func cmdRestore(db accounts.AccountsDB, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("restore needs PATH")
	}
	if err := snapshot.Load(db, args[0]); err != nil {
		return err
	}
	fmt.Printf("restored, %d accounts in database\n", db.GetAccountsCount())
	return nil
}
