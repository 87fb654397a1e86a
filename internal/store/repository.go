/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the credit-service. By defining an interface,
 * we decouple the application's business logic from the specific database
 * implementation (PostgreSQL), making the code more modular and easier to test.
 *
 * The ledger-affecting operations (ApplyCreditTransaction, CreateGiftAtomic,
 * UnlockFanPostAtomic, SetReviewInteractionAtomic) are deliberately coarse: each
 * one is a single database transaction on the Postgres side, so a balance debit
 * and the record it pays for can never be split.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrGiftNotFound         = errors.New("gift not found")
	ErrGiftAlreadyCollected = errors.New("gift already collected")
	ErrFanPostNotFound      = errors.New("fan post not found")
	ErrAlreadyUnlocked      = errors.New("fan post already unlocked")
	ErrReviewNotFound       = errors.New("review not found")
	ErrAlreadyReviewed      = errors.New("subject already reviewed by this author")
	ErrDuplicateReference   = errors.New("transaction reference already applied")
)

// ApplyTransactionParams carries one ledger mutation: adjust the balance by
// Amount and append one immutable transaction row, atomically.
type ApplyTransactionParams struct {
	UserID      uuid.UUID
	Amount      int64
	Kind        string
	Description string
	ReferenceID *string
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User and account methods
	FindUserIDByAuthUserID(ctx context.Context, authUserID string) (uuid.UUID, error)
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByHandle(ctx context.Context, handle string) (*domain.User, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)

	// Ledger methods
	ApplyCreditTransaction(ctx context.Context, params ApplyTransactionParams) (*domain.CreditTransaction, error)
	FindCreditTransactionByReference(ctx context.Context, userID uuid.UUID, kind, referenceID string) (*domain.CreditTransaction, error)
	ListCreditTransactions(ctx context.Context, userID uuid.UUID, opts domain.ListOptions) ([]domain.CreditTransaction, error)
	SumCreditTransactions(ctx context.Context, userID uuid.UUID) (int64, error)

	// Gift methods
	CreateGiftAtomic(ctx context.Context, gift *domain.Gift) error
	FindGiftByID(ctx context.Context, giftID uuid.UUID) (*domain.Gift, error)
	ListGiftsByRecipient(ctx context.Context, recipientID uuid.UUID, opts domain.ListOptions) ([]domain.Gift, error)
	ListGiftsBySender(ctx context.Context, senderID uuid.UUID, opts domain.ListOptions) ([]domain.Gift, error)
	CollectGift(ctx context.Context, giftID, recipientID uuid.UUID) (*domain.Gift, error)
	CreateGiftReply(ctx context.Context, reply *domain.GiftReply) error
	ListGiftReplies(ctx context.Context, giftID uuid.UUID) ([]domain.GiftReply, error)
	HasGiftReplies(ctx context.Context, giftID uuid.UUID) (bool, error)

	// Fan-post methods
	FindFanPostByID(ctx context.Context, postID uuid.UUID) (*domain.FanPost, error)
	UnlockFanPostAtomic(ctx context.Context, unlock *domain.FanPostUnlock) error
	HasUnlockedFanPost(ctx context.Context, clientID, postID uuid.UUID) (bool, error)
	ListFanPostUnlocks(ctx context.Context, clientID uuid.UUID, opts domain.ListOptions) ([]domain.FanPostUnlock, error)

	// Review methods
	CreateReview(ctx context.Context, review *domain.Review) error
	FindReviewByID(ctx context.Context, reviewID uuid.UUID) (*domain.Review, error)
	SetReviewInteractionAtomic(ctx context.Context, reviewID, userID uuid.UUID, kind string) (*domain.Review, error)
	HasCompletedBooking(ctx context.Context, clientID, subjectID uuid.UUID) (bool, error)
}
