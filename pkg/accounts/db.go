// Package accounts provides account storage for the buffer manager host.
// It plays the persistence half of the host contract: the program mutates
// account state in memory during one invocation, and this package keeps
// that state alive between invocations.
package accounts

import (
	"github.com/deanmlittle/chadbuffer/pkg/types"
)

// AccountsDB defines the interface for account storage.
type AccountsDB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// GetAccountsCount returns the total number of accounts.
	GetAccountsCount() uint64

	// ForEachAccount calls fn for every stored account. Iteration stops at
	// the first error, which is returned.
	ForEachAccount(fn func(pubkey types.Pubkey, account *types.Account) error) error

	// Close closes the database.
	Close() error
}
