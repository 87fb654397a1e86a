/**
 * @description
 * PostgreSQL implementation of the review methods. SetReviewInteractionAtomic
 * uses delete-then-insert semantics for the per-user interaction row and
 * recomputes both denormalized counters from the interaction set inside the
 * same transaction, so the counters can never drift from the rows they
 * summarize.
 */

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/velvetpages/credit-service/internal/domain"
)

// CreateReview inserts a new review. UNIQUE (author_id, subject_id) rejects a
// second review of the same subject by the same author.
func (r *PostgresRepository) CreateReview(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, author_id, subject_id, rating, positive_points, negative_points)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		review.ID, review.AuthorID, review.SubjectID, review.Rating,
		review.PositivePoints, review.NegativePoints,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return ErrAlreadyReviewed
		}
		return err
	}
	return nil
}

// FindReviewByID retrieves a review with its current counters.
func (r *PostgresRepository) FindReviewByID(ctx context.Context, reviewID uuid.UUID) (*domain.Review, error) {
	var review domain.Review
	query := `
		SELECT id, author_id, subject_id, rating, positive_points, negative_points,
		       likes, dislikes, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, reviewID).Scan(
		&review.ID, &review.AuthorID, &review.SubjectID, &review.Rating,
		&review.PositivePoints, &review.NegativePoints,
		&review.Likes, &review.Dislikes, &review.CreatedAt, &review.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &review, nil
}

// SetReviewInteractionAtomic replaces the user's interaction on the review and
// recomputes the like/dislike counters, all in one database transaction. The
// review row is locked first so concurrent interactions serialize.
func (r *PostgresRepository) SetReviewInteractionAtomic(ctx context.Context, reviewID, userID uuid.UUID, kind string) (*domain.Review, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	err = tx.QueryRow(ctx, "SELECT id FROM reviews WHERE id = $1 FOR UPDATE", reviewID).Scan(&lockedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to lock review: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM review_interactions WHERE review_id = $1 AND user_id = $2", reviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear prior interaction: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO review_interactions (review_id, user_id, kind) VALUES ($1, $2, $3)",
		reviewID, userID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert interaction: %w", err)
	}

	var review domain.Review
	recountQuery := `
		UPDATE reviews
		SET likes = (SELECT COUNT(*) FROM review_interactions WHERE review_id = $1 AND kind = $2),
		    dislikes = (SELECT COUNT(*) FROM review_interactions WHERE review_id = $1 AND kind = $3),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, author_id, subject_id, rating, positive_points, negative_points,
		          likes, dislikes, created_at, updated_at
	`
	err = tx.QueryRow(ctx, recountQuery, reviewID, domain.InteractionKindLike, domain.InteractionKindDislike).Scan(
		&review.ID, &review.AuthorID, &review.SubjectID, &review.Rating,
		&review.PositivePoints, &review.NegativePoints,
		&review.Likes, &review.Dislikes, &review.CreatedAt, &review.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit interaction: %w", err)
	}
	return &review, nil
}

// HasCompletedBooking reports whether the client has a completed booking with
// the subject. This backs the authorization rule for review interactions.
func (r *PostgresRepository) HasCompletedBooking(ctx context.Context, clientID, subjectID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM bookings WHERE client_id = $1 AND lady_id = $2 AND status = 'completed')",
		clientID, subjectID,
	).Scan(&exists)
	return exists, err
}
