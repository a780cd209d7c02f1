/**
 * @description
 * This file defines the account-ledger collaborator that the contract transitions
 * run against. The ledger owns all persistent state: account balances in native
 * currency units (lamports) and the fixed-size data blobs holding campaign records.
 *
 * The Invoke method is the transaction envelope. It guarantees that the function it
 * runs observes no partial effects of any other concurrent invocation: writable
 * accounts are locked for the duration, and every state change inside the envelope
 * commits atomically or not at all. The contract itself holds no locks.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: Addresses, identities, and the invocation audit record.
 */

package store

import (
	"context"
	"errors"

	"github.com/lumenfund/campaign-service/internal/domain"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Ledger is the injected account store the contract operates on.
type Ledger interface {
	// MinimumReserve returns the balance an account of the given data size must
	// retain to remain valid in the store.
	MinimumReserve(dataLen int) uint64

	// Invoke runs fn inside one atomic envelope. The writable accounts are
	// locked in deterministic order before fn runs; a non-nil error from fn
	// aborts the envelope with no state change.
	Invoke(ctx context.Context, writable []domain.Address, fn func(Invocation) error) error
}

// Invocation exposes the state operations available inside one envelope.
type Invocation interface {
	// Load reads the account at addr. Returns ErrAccountNotFound if absent.
	Load(addr domain.Address) (*Account, error)

	// Store replaces the data blob of an existing account.
	Store(addr domain.Address, data []byte) error

	// Allocate creates the account at addr with dataLen zeroed bytes, funding
	// it with lamports debited from the funder's system account. Returns
	// ErrAccountExists if addr is already taken and ErrInsufficientFunds if the
	// funder cannot cover the allocation.
	Allocate(addr domain.Address, dataLen int, funder domain.Identity, lamports uint64) error

	// Transfer moves lamports between two existing accounts. Returns
	// ErrInsufficientFunds when the source balance is short.
	Transfer(from, to domain.Address, amount uint64) error

	// RecordInvocation appends an audit row committed with the envelope.
	RecordInvocation(rec domain.InvocationRecord) error
}

// Account is one row of the ledger: a balance plus an optional data blob.
type Account struct {
	Address  domain.Address
	Lamports uint64
	Data     []byte
}
