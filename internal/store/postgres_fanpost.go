/**
 * @description
 * PostgreSQL implementation of the fan-post methods. UnlockFanPostAtomic
 * combines the debit, the ledger row, and the unlock fact row in one database
 * transaction, and leans on the UNIQUE (client_id, fan_post_id) constraint to
 * reject duplicate unlocks without double-charging.
 */

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/velvetpages/credit-service/internal/domain"
)

// FindFanPostByID retrieves a fan post's pricing metadata.
func (r *PostgresRepository) FindFanPostByID(ctx context.Context, postID uuid.UUID) (*domain.FanPost, error) {
	var post domain.FanPost
	query := `SELECT id, owner_id, title, credits, created_at FROM fan_posts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, postID).Scan(&post.ID, &post.OwnerID, &post.Title, &post.Credits, &post.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrFanPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// UnlockFanPostAtomic charges the client and records the unlock in one
// database transaction. The unlock row is inserted first so a duplicate
// attempt trips the uniqueness constraint before any money moves.
func (r *PostgresRepository) UnlockFanPostAtomic(ctx context.Context, unlock *domain.FanPostUnlock) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO fan_post_unlocks (client_id, fan_post_id, credits)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insertQuery, unlock.ClientID, unlock.FanPostID, unlock.Credits).Scan(&unlock.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return ErrAlreadyUnlocked
		}
		return fmt.Errorf("failed to insert unlock record: %w", err)
	}

	if unlock.Credits > 0 {
		reference := unlock.FanPostID.String()
		_, err = applyCreditTransactionTx(ctx, tx, ApplyTransactionParams{
			UserID:      unlock.ClientID,
			Amount:      -unlock.Credits,
			Kind:        domain.TransactionKindFanPost,
			Description: "Fan post unlock",
			ReferenceID: &reference,
		})
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit unlock transaction: %w", err)
	}
	return nil
}

// HasUnlockedFanPost reports whether the client already holds an unlock for the post.
func (r *PostgresRepository) HasUnlockedFanPost(ctx context.Context, clientID, postID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM fan_post_unlocks WHERE client_id = $1 AND fan_post_id = $2)",
		clientID, postID,
	).Scan(&exists)
	return exists, err
}

// ListFanPostUnlocks returns a page of the client's unlocks, newest first.
func (r *PostgresRepository) ListFanPostUnlocks(ctx context.Context, clientID uuid.UUID, opts domain.ListOptions) ([]domain.FanPostUnlock, error) {
	query := `
		SELECT client_id, fan_post_id, credits, created_at
		FROM fan_post_unlocks
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, clientID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unlocks := make([]domain.FanPostUnlock, 0)
	for rows.Next() {
		var unlock domain.FanPostUnlock
		if err := rows.Scan(&unlock.ClientID, &unlock.FanPostID, &unlock.Credits, &unlock.CreatedAt); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return unlocks, rows.Err()
}
