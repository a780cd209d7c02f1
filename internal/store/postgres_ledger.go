/**
 * @description
 * This file provides the PostgreSQL implementation of the Ledger collaborator.
 * Each Invoke call maps to one database transaction. Writable account rows are
 * locked with SELECT ... FOR UPDATE in ascending address order before the
 * contract function runs, which serializes concurrent invocations touching the
 * same accounts and makes every envelope all-or-nothing.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Addresses, identities, and the invocation audit record.
 */

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenfund/campaign-service/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresLedger is the pgx-backed account store.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger creates a ledger over the given connection pool.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// MinimumReserve delegates to the ledger's storage pricing model.
func (l *PostgresLedger) MinimumReserve(dataLen int) uint64 {
	return domain.MinimumReserve(dataLen)
}

// Invoke opens one transaction, locks the writable accounts, runs fn, and
// commits only if fn succeeds.
func (l *PostgresLedger) Invoke(ctx context.Context, writable []domain.Address, fn func(Invocation) error) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin invocation: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock in ascending address order so concurrent envelopes over the same
	// account set cannot deadlock. Rows that do not exist yet (pending
	// allocation) have nothing to lock; the unique constraint arbitrates.
	ordered := make([]domain.Address, len(writable))
	copy(ordered, writable)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})
	for _, addr := range ordered {
		if _, err := tx.Exec(ctx, "SELECT 1 FROM accounts WHERE address = $1 FOR UPDATE", addr[:]); err != nil {
			return fmt.Errorf("lock account %s: %w", addr, err)
		}
	}

	if err := fn(&pgxInvocation{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// pgxInvocation executes state operations inside one open transaction.
type pgxInvocation struct {
	ctx context.Context
	tx  pgx.Tx
}

func (inv *pgxInvocation) Load(addr domain.Address) (*Account, error) {
	acct := Account{Address: addr}
	err := inv.tx.QueryRow(inv.ctx, "SELECT balance, data FROM accounts WHERE address = $1", addr[:]).
		Scan(&acct.Lamports, &acct.Data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

func (inv *pgxInvocation) Store(addr domain.Address, data []byte) error {
	result, err := inv.tx.Exec(inv.ctx,
		"UPDATE accounts SET data = $1, updated_at = NOW() WHERE address = $2", data, addr[:])
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (inv *pgxInvocation) Allocate(addr domain.Address, dataLen int, funder domain.Identity, lamports uint64) error {
	funderAddr := funder.SystemAddress()

	var balance uint64
	err := inv.tx.QueryRow(inv.ctx, "SELECT balance FROM accounts WHERE address = $1", funderAddr[:]).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return err
	}
	if balance < lamports {
		return ErrInsufficientFunds
	}

	_, err = inv.tx.Exec(inv.ctx,
		"INSERT INTO accounts (address, balance, data) VALUES ($1, $2, $3)",
		addr[:], lamports, make([]byte, dataLen))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAccountExists
		}
		return err
	}

	_, err = inv.tx.Exec(inv.ctx,
		"UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE address = $2",
		lamports, funderAddr[:])
	return err
}

func (inv *pgxInvocation) Transfer(from, to domain.Address, amount uint64) error {
	var balance uint64
	err := inv.tx.QueryRow(inv.ctx, "SELECT balance FROM accounts WHERE address = $1", from[:]).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	_, err = inv.tx.Exec(inv.ctx,
		"UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE address = $2",
		amount, from[:])
	if err != nil {
		return err
	}

	result, err := inv.tx.Exec(inv.ctx,
		"UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE address = $2",
		amount, to[:])
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (inv *pgxInvocation) RecordInvocation(rec domain.InvocationRecord) error {
	// Text-format the amount into the NUMERIC column; an int64 cast would wrap
	// values above the signed 64-bit maximum.
	_, err := inv.tx.Exec(inv.ctx, `
		INSERT INTO invocations (id, entry_point, fee_payer, campaign, amount)
		VALUES ($1, $2, $3, $4, $5::numeric)
	`, rec.ID, rec.EntryPoint, rec.FeePayer[:], rec.Campaign[:], strconv.FormatUint(rec.Amount, 10))
	return err
}
