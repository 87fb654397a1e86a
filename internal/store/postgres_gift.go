/**
 * @description
 * PostgreSQL implementation of the gift methods. CreateGiftAtomic is the
 * important one: the sender debit, the ledger row, and the gift insert all
 * commit or roll back together, so a sender can never be charged for a gift
 * that does not exist.
 */

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/velvetpages/credit-service/internal/domain"
)

// CreateGiftAtomic debits the sender and creates the gift record in one
// database transaction. The gift's ID must be set by the caller so the ledger
// row can reference it.
func (r *PostgresRepository) CreateGiftAtomic(ctx context.Context, gift *domain.Gift) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	reference := gift.ID.String()
	_, err = applyCreditTransactionTx(ctx, tx, ApplyTransactionParams{
		UserID:      gift.SenderID,
		Amount:      -gift.Credits,
		Kind:        domain.TransactionKindGift,
		Description: fmt.Sprintf("Gift (%s) to recipient", gift.Kind),
		ReferenceID: &reference,
	})
	if err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO gifts (id, sender_id, recipient_id, kind, credits, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		gift.ID, gift.SenderID, gift.RecipientID, gift.Kind, gift.Credits, gift.Message, domain.GiftStatusPending,
	).Scan(&gift.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert gift record: %w", err)
	}
	gift.Status = domain.GiftStatusPending

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit gift transaction: %w", err)
	}
	return nil
}

// FindGiftByID retrieves a gift by its ID.
func (r *PostgresRepository) FindGiftByID(ctx context.Context, giftID uuid.UUID) (*domain.Gift, error) {
	var gift domain.Gift
	query := `
		SELECT id, sender_id, recipient_id, kind, credits, message, status, collected_at, created_at
		FROM gifts
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, giftID).Scan(
		&gift.ID, &gift.SenderID, &gift.RecipientID, &gift.Kind, &gift.Credits,
		&gift.Message, &gift.Status, &gift.CollectedAt, &gift.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGiftNotFound
		}
		return nil, err
	}
	return &gift, nil
}

func (r *PostgresRepository) listGifts(ctx context.Context, column string, id uuid.UUID, opts domain.ListOptions) ([]domain.Gift, error) {
	query := fmt.Sprintf(`
		SELECT id, sender_id, recipient_id, kind, credits, message, status, collected_at, created_at
		FROM gifts
		WHERE %s = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, column)
	rows, err := r.db.Query(ctx, query, id, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gifts := make([]domain.Gift, 0)
	for rows.Next() {
		var gift domain.Gift
		if err := rows.Scan(
			&gift.ID, &gift.SenderID, &gift.RecipientID, &gift.Kind, &gift.Credits,
			&gift.Message, &gift.Status, &gift.CollectedAt, &gift.CreatedAt,
		); err != nil {
			return nil, err
		}
		gifts = append(gifts, gift)
	}
	return gifts, rows.Err()
}

// ListGiftsByRecipient returns a page of gifts addressed to the recipient, newest first.
func (r *PostgresRepository) ListGiftsByRecipient(ctx context.Context, recipientID uuid.UUID, opts domain.ListOptions) ([]domain.Gift, error) {
	return r.listGifts(ctx, "recipient_id", recipientID, opts)
}

// ListGiftsBySender returns a page of gifts sent by the sender, newest first.
func (r *PostgresRepository) ListGiftsBySender(ctx context.Context, senderID uuid.UUID, opts domain.ListOptions) ([]domain.Gift, error) {
	return r.listGifts(ctx, "sender_id", senderID, opts)
}

// CollectGift transitions a gift from pending to collected. The WHERE clause
// carries the recipient identity and the pending status, so only the addressed
// recipient can collect and only once.
func (r *PostgresRepository) CollectGift(ctx context.Context, giftID, recipientID uuid.UUID) (*domain.Gift, error) {
	var gift domain.Gift
	query := `
		UPDATE gifts
		SET status = $3, collected_at = NOW()
		WHERE id = $1 AND recipient_id = $2 AND status = $4
		RETURNING id, sender_id, recipient_id, kind, credits, message, status, collected_at, created_at
	`
	err := r.db.QueryRow(ctx, query, giftID, recipientID, domain.GiftStatusCollected, domain.GiftStatusPending).Scan(
		&gift.ID, &gift.SenderID, &gift.RecipientID, &gift.Kind, &gift.Credits,
		&gift.Message, &gift.Status, &gift.CollectedAt, &gift.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Work out which precondition failed for a precise error.
			existing, findErr := r.FindGiftByID(ctx, giftID)
			if findErr != nil {
				return nil, findErr
			}
			if existing.RecipientID != recipientID {
				return nil, ErrGiftNotFound
			}
			return nil, ErrGiftAlreadyCollected
		}
		return nil, err
	}
	return &gift, nil
}

// CreateGiftReply appends a reply to a gift's thread.
func (r *PostgresRepository) CreateGiftReply(ctx context.Context, reply *domain.GiftReply) error {
	query := `
		INSERT INTO gift_replies (id, gift_id, sender_id, message)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query, reply.ID, reply.GiftID, reply.SenderID, reply.Message).Scan(&reply.CreatedAt)
}

// ListGiftReplies returns a gift's reply thread in chronological order.
func (r *PostgresRepository) ListGiftReplies(ctx context.Context, giftID uuid.UUID) ([]domain.GiftReply, error) {
	query := `
		SELECT id, gift_id, sender_id, message, created_at
		FROM gift_replies
		WHERE gift_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, giftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	replies := make([]domain.GiftReply, 0)
	for rows.Next() {
		var reply domain.GiftReply
		if err := rows.Scan(&reply.ID, &reply.GiftID, &reply.SenderID, &reply.Message, &reply.CreatedAt); err != nil {
			return nil, err
		}
		replies = append(replies, reply)
	}
	return replies, rows.Err()
}

// HasGiftReplies reports whether the gift's thread has been opened.
func (r *PostgresRepository) HasGiftReplies(ctx context.Context, giftID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM gift_replies WHERE gift_id = $1)", giftID).Scan(&exists)
	return exists, err
}
