package domain

import (
	"time"

	"github.com/google/uuid"
)

// Review interaction kinds.
const (
	InteractionKindLike    = "like"
	InteractionKindDislike = "dislike"
)

// Review is a client's review of a lady profile. Likes and Dislikes are
// denormalized counters recomputed from the interaction rows inside the same
// database transaction that mutates an interaction, so they never drift.
type Review struct {
	ID             uuid.UUID `json:"id"`
	AuthorID       uuid.UUID `json:"author_id"`
	SubjectID      uuid.UUID `json:"subject_id"`
	Rating         int       `json:"rating"`
	PositivePoints []string  `json:"positive_points"`
	NegativePoints []string  `json:"negative_points"`
	Likes          int       `json:"likes"`
	Dislikes       int       `json:"dislikes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ReviewInteraction is one user's like or dislike on one review. At most one
// row exists per (review, user); setting a new kind replaces the old row.
type ReviewInteraction struct {
	ReviewID  uuid.UUID `json:"review_id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateReviewRequest is the DTO for posting a new review.
type CreateReviewRequest struct {
	SubjectHandle  string   `json:"subject_handle"`
	Rating         int      `json:"rating"`
	PositivePoints []string `json:"positive_points"`
	NegativePoints []string `json:"negative_points"`
}

// SetInteractionRequest is the DTO for liking or disliking a review.
type SetInteractionRequest struct {
	Kind string `json:"kind"`
}
