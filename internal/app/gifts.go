/**
 * @description
 * Gift orchestration: sending gift batches, collecting a pending gift, and the
 * reply thread. Each gift line is one atomic store operation (debit + ledger
 * row + gift insert in a single database transaction); lines are independent,
 * so a batch may partially succeed and the caller gets a per-line result.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/domain"
	"github.com/velvetpages/credit-service/internal/store"
	"github.com/velvetpages/credit-service/pkg/rabbitmq"
)

// SendGift delivers a batch of gift lines to one recipient. The advisory
// balance pre-check fails the whole batch early; the authoritative check is the
// conditional debit inside each line's store transaction.
func (s *Service) SendGift(ctx context.Context, senderID uuid.UUID, req domain.SendGiftRequest) (*domain.SendGiftResult, error) {
	if len(req.Lines) == 0 {
		return nil, ErrNoGiftLines
	}
	if len(req.Lines) > s.maxGiftLines {
		return nil, ErrTooManyGiftLines
	}
	for _, line := range req.Lines {
		if strings.TrimSpace(line.Kind) == "" || line.Credits <= 0 {
			return nil, ErrInvalidGiftLine
		}
	}

	recipient, err := s.repo.FindUserByHandle(ctx, req.RecipientHandle)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if recipient.ID == senderID {
		return nil, ErrSelfGift
	}

	// Advisory pre-check against the cheapest line: when not even that can be
	// afforded the batch is rejected outright. Everything above it is decided
	// line by line, so a batch costing more than the balance still delivers
	// the lines the balance covers.
	cheapest := req.Lines[0].Credits
	for _, line := range req.Lines[1:] {
		if line.Credits < cheapest {
			cheapest = line.Credits
		}
	}
	balance, err := s.repo.GetBalance(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if balance < cheapest {
		return nil, store.ErrInsufficientCredits
	}

	var message *string
	if trimmed := strings.TrimSpace(req.Message); trimmed != "" {
		message = &trimmed
	}

	result := &domain.SendGiftResult{}
	for _, line := range req.Lines {
		gift := &domain.Gift{
			ID:          uuid.New(),
			SenderID:    senderID,
			RecipientID: recipient.ID,
			Kind:        line.Kind,
			Credits:     line.Credits,
			Message:     message,
		}
		if err := s.repo.CreateGiftAtomic(ctx, gift); err != nil {
			if errors.Is(err, store.ErrInsufficientCredits) {
				creditsDenied.WithLabelValues(domain.TransactionKindGift).Inc()
			}
			giftLines.WithLabelValues("failed").Inc()
			log.Printf("level=warn component=gifts op=send outcome=line_failed sender_id=%s recipient_id=%s kind=%s credits=%d err=%v",
				senderID, recipient.ID, line.Kind, line.Credits, err)
			result.Failed = append(result.Failed, domain.GiftLineFailure{
				Kind:    line.Kind,
				Credits: line.Credits,
				Error:   giftLineErrorMessage(err),
			})
			continue
		}

		creditsApplied.WithLabelValues(domain.TransactionKindGift).Inc()
		giftLines.WithLabelValues("succeeded").Inc()
		result.Succeeded = append(result.Succeeded, gift)
		s.publishGiftEvent(ctx, gift)
	}

	return result, nil
}

// giftLineErrorMessage maps a store error to the per-line failure string the
// client sees. Unexpected storage failures are reported as such, never hidden.
func giftLineErrorMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientCredits):
		return "insufficient credits"
	case errors.Is(err, store.ErrAccountNotFound):
		return "sender account not found"
	default:
		return "storage failure; the line was not charged"
	}
}

// publishGiftEvent notifies the recipient. Best effort: a publish failure is
// logged and never affects the committed gift.
func (s *Service) publishGiftEvent(ctx context.Context, gift *domain.Gift) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.GiftEvent{
		GiftID:      gift.ID,
		SenderID:    gift.SenderID,
		RecipientID: gift.RecipientID,
		Kind:        gift.Kind,
		Credits:     gift.Credits,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, s.notificationExchange, "gift.received", event); err != nil {
		log.Printf("level=warn component=gifts op=notify outcome=publish_failed gift_id=%s err=%v", gift.ID, err)
	}
}

// CollectGift transitions a pending gift to collected on behalf of its recipient.
func (s *Service) CollectGift(ctx context.Context, recipientID, giftID uuid.UUID) (*domain.Gift, error) {
	return s.repo.CollectGift(ctx, giftID, recipientID)
}

// ListReceivedGifts returns a page of gifts addressed to the user.
func (s *Service) ListReceivedGifts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Gift, error) {
	return s.repo.ListGiftsByRecipient(ctx, userID, s.normalizeListOptions(limit, offset))
}

// ListSentGifts returns a page of gifts the user has sent.
func (s *Service) ListSentGifts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Gift, error) {
	return s.repo.ListGiftsBySender(ctx, userID, s.normalizeListOptions(limit, offset))
}

// ReplyToGift appends a message to a gift's reply thread. The recipient opens
// the thread; until then the sender cannot post.
func (s *Service) ReplyToGift(ctx context.Context, userID, giftID uuid.UUID, message string) (*domain.GiftReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	gift, err := s.repo.FindGiftByID(ctx, giftID)
	if err != nil {
		return nil, err
	}
	if userID != gift.SenderID && userID != gift.RecipientID {
		return nil, ErrNotThreadMember
	}
	if userID == gift.SenderID {
		opened, err := s.repo.HasGiftReplies(ctx, giftID)
		if err != nil {
			return nil, err
		}
		if !opened {
			return nil, ErrThreadNotOpened
		}
	}

	reply := &domain.GiftReply{
		ID:       uuid.New(),
		GiftID:   giftID,
		SenderID: userID,
		Message:  message,
	}
	if err := s.repo.CreateGiftReply(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// ListGiftReplies returns a gift's reply thread. Only the two participants may read it.
func (s *Service) ListGiftReplies(ctx context.Context, userID, giftID uuid.UUID) ([]domain.GiftReply, error) {
	gift, err := s.repo.FindGiftByID(ctx, giftID)
	if err != nil {
		return nil, err
	}
	if userID != gift.SenderID && userID != gift.RecipientID {
		return nil, ErrNotThreadMember
	}
	return s.repo.ListGiftReplies(ctx, giftID)
}

func (s *Service) normalizeListOptions(limit, offset int) domain.ListOptions {
	if limit <= 0 {
		limit = s.statementPageSize
	}
	if limit > MaxStatementPageSize {
		limit = MaxStatementPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return domain.ListOptions{Limit: limit, Offset: offset}
}
