/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for users, accounts, and the credit ledger. It contains the SQL for the one
 * guarded mutation path every balance change flows through.
 *
 * @dependencies
 * - context, errors, fmt: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/velvetpages/credit-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// uniqueViolation reports whether err is a Postgres unique-constraint violation.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// FindUserIDByAuthUserID resolves the internal UUID from an auth-provider subject id.
// The users table carries an auth_user_id column managed by the auth provider's
// sync webhook during onboarding.
func (r *PostgresRepository) FindUserIDByAuthUserID(ctx context.Context, authUserID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, "SELECT id FROM users WHERE auth_user_id = $1", authUserID).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, auth_user_id, btrim(handle), display_name, role FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.AuthUserID, &user.Handle, &user.DisplayName, &user.Role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByHandle retrieves a user by their public handle, case-insensitively.
func (r *PostgresRepository) FindUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, auth_user_id, btrim(handle), display_name, role FROM users WHERE lower(btrim(handle)) = lower(btrim($1))`
	err := r.db.QueryRow(ctx, query, handle).Scan(&user.ID, &user.AuthUserID, &user.Handle, &user.DisplayName, &user.Role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetBalance returns the user's current credit balance.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, "SELECT balance FROM accounts WHERE user_id = $1", userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// ApplyCreditTransaction atomically adjusts the stored balance and appends one
// immutable ledger row. The conditional UPDATE is the zero floor: a debit that
// would drive the balance negative matches no row and nothing is written.
func (r *PostgresRepository) ApplyCreditTransaction(ctx context.Context, params ApplyTransactionParams) (*domain.CreditTransaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	record, err := applyCreditTransactionTx(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit credit transaction: %w", err)
	}
	return record, nil
}

// applyCreditTransactionTx runs the guarded balance mutation inside an existing
// database transaction. The gift and fan-post flows reuse it so their follow-up
// writes share the same commit.
func applyCreditTransactionTx(ctx context.Context, tx pgx.Tx, params ApplyTransactionParams) (*domain.CreditTransaction, error) {
	updateQuery := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance + $2 >= 0
		RETURNING balance
	`
	var newBalance int64
	err := tx.QueryRow(ctx, updateQuery, params.UserID, params.Amount).Scan(&newBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Distinguish a missing account from an insufficient balance.
			var exists bool
			checkErr := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)", params.UserID).Scan(&exists)
			if checkErr != nil {
				return nil, checkErr
			}
			if !exists {
				return nil, ErrAccountNotFound
			}
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	record := &domain.CreditTransaction{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Amount:      params.Amount,
		Kind:        params.Kind,
		Description: params.Description,
		ReferenceID: params.ReferenceID,
	}
	insertQuery := `
		INSERT INTO credit_transactions (id, user_id, amount, kind, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		record.ID, record.UserID, record.Amount, record.Kind, record.Description, record.ReferenceID,
	).Scan(&record.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			// Partial unique index on (user_id, kind, reference_id) WHERE
			// kind IN ('purchase', 'refund') makes both credit paths
			// idempotent per external reference.
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("failed to insert ledger row: %w", err)
	}

	return record, nil
}

// FindCreditTransactionByReference returns the ledger row previously applied
// for an external reference, or nil when none exists.
func (r *PostgresRepository) FindCreditTransactionByReference(ctx context.Context, userID uuid.UUID, kind, referenceID string) (*domain.CreditTransaction, error) {
	var t domain.CreditTransaction
	query := `
		SELECT id, user_id, amount, kind, description, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1 AND kind = $2 AND reference_id = $3
	`
	err := r.db.QueryRow(ctx, query, userID, kind, referenceID).Scan(
		&t.ID, &t.UserID, &t.Amount, &t.Kind, &t.Description, &t.ReferenceID, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListCreditTransactions returns a page of the user's ledger, newest first.
func (r *PostgresRepository) ListCreditTransactions(ctx context.Context, userID uuid.UUID, opts domain.ListOptions) ([]domain.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, kind, description, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.CreditTransaction, 0)
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Kind, &t.Description, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// SumCreditTransactions returns the signed sum of all the user's ledger rows.
// Used by the reconciliation report; must equal the stored balance.
func (r *PostgresRepository) SumCreditTransactions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1", userID,
	).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum, nil
}
