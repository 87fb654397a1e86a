/**
 * @description
 * Review flows: creating a review and setting a like/dislike interaction.
 * The interaction mutation and the counter recompute are one atomic store
 * operation; the authorization rule (a completed booking with the review's
 * subject) lives here, in front of it.
 */

package app

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/domain"
)

// CreateReview posts a new review of a subject profile. Requires a completed
// booking with the subject; one review per (author, subject) is enforced by
// the database.
func (s *Service) CreateReview(ctx context.Context, authorID uuid.UUID, req domain.CreateReviewRequest) (*domain.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	subject, err := s.repo.FindUserByHandle(ctx, req.SubjectHandle)
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.HasCompletedBooking(ctx, authorID, subject.ID)
	if err != nil {
		return nil, err
	}
	if !booked {
		return nil, ErrNotBooked
	}

	review := &domain.Review{
		ID:             uuid.New(),
		AuthorID:       authorID,
		SubjectID:      subject.ID,
		Rating:         req.Rating,
		PositivePoints: trimPoints(req.PositivePoints),
		NegativePoints: trimPoints(req.NegativePoints),
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// SetReviewInteraction records the user's like or dislike on a review,
// replacing any prior interaction, and returns the review with recomputed
// counters. The acting user must have a completed booking with the review's
// subject.
func (s *Service) SetReviewInteraction(ctx context.Context, userID, reviewID uuid.UUID, kind string) (*domain.Review, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != domain.InteractionKindLike && kind != domain.InteractionKindDislike {
		return nil, ErrInvalidInteraction
	}

	review, err := s.repo.FindReviewByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.HasCompletedBooking(ctx, userID, review.SubjectID)
	if err != nil {
		return nil, err
	}
	if !booked {
		return nil, ErrNotBooked
	}

	return s.repo.SetReviewInteractionAtomic(ctx, reviewID, userID, kind)
}

func trimPoints(points []string) []string {
	cleaned := make([]string, 0, len(points))
	for _, p := range points {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
