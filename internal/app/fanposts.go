/**
 * @description
 * Fan-post unlock orchestration. The unlock is one atomic store operation:
 * the unlock fact row, the debit, and the ledger row commit together, and the
 * UNIQUE (client_id, fan_post_id) constraint guarantees a client is charged
 * at most once per post.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/domain"
	"github.com/velvetpages/credit-service/internal/store"
	"github.com/velvetpages/credit-service/pkg/rabbitmq"
)

// UnlockFanPost charges the client the post's credit cost and records the
// access grant. A repeat call surfaces store.ErrAlreadyUnlocked and charges
// nothing.
func (s *Service) UnlockFanPost(ctx context.Context, clientID, postID uuid.UUID) (*domain.FanPostUnlock, error) {
	post, err := s.repo.FindFanPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	// Advisory pre-check; the conditional debit inside the store transaction
	// is the authoritative one.
	balance, err := s.repo.GetBalance(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if balance < post.Credits {
		creditsDenied.WithLabelValues(domain.TransactionKindFanPost).Inc()
		return nil, store.ErrInsufficientCredits
	}

	unlock := &domain.FanPostUnlock{
		ClientID:  clientID,
		FanPostID: postID,
		Credits:   post.Credits,
	}
	if err := s.repo.UnlockFanPostAtomic(ctx, unlock); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyUnlocked):
			fanPostUnlocks.WithLabelValues("duplicate").Inc()
		case errors.Is(err, store.ErrInsufficientCredits):
			creditsDenied.WithLabelValues(domain.TransactionKindFanPost).Inc()
			fanPostUnlocks.WithLabelValues("denied").Inc()
		default:
			fanPostUnlocks.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	creditsApplied.WithLabelValues(domain.TransactionKindFanPost).Inc()
	fanPostUnlocks.WithLabelValues("succeeded").Inc()

	if s.eventProducer != nil {
		event := rabbitmq.FanPostUnlockEvent{
			ClientID:  clientID,
			OwnerID:   post.OwnerID,
			FanPostID: postID,
			Credits:   post.Credits,
			Timestamp: time.Now().UTC(),
		}
		if err := s.eventProducer.Publish(ctx, s.notificationExchange, "fanpost.unlocked", event); err != nil {
			log.Printf("level=warn component=fanposts op=notify outcome=publish_failed fan_post_id=%s err=%v", postID, err)
		}
	}

	return unlock, nil
}

// HasUnlockedFanPost reports whether the client already holds access to the post.
func (s *Service) HasUnlockedFanPost(ctx context.Context, clientID, postID uuid.UUID) (bool, error) {
	return s.repo.HasUnlockedFanPost(ctx, clientID, postID)
}

// ListFanPostUnlocks returns a page of the client's unlock history.
func (s *Service) ListFanPostUnlocks(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]domain.FanPostUnlock, error) {
	return s.repo.ListFanPostUnlocks(ctx, clientID, s.normalizeListOptions(limit, offset))
}
