/**
 * @description
 * This file contains the core business logic for the credit-service. The `Service`
 * struct orchestrates all credit movement on the platform, coordinating between
 * the database repository and the message broker.
 *
 * Key features:
 * - The ledger accessor: balance reads, statements, reconciliation.
 * - Idempotent crediting for purchases (per payment reference) and refunds.
 * - Gift, fan-post and review flows live in sibling files in this package.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For notification event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/domain"
	"github.com/velvetpages/credit-service/internal/store"
	"github.com/velvetpages/credit-service/pkg/rabbitmq"
)

const (
	DefaultStatementPageSize = 50
	MaxStatementPageSize     = 200

	// NotificationExchange is the default topic exchange notification events
	// go to; ServiceOptions can override it.
	NotificationExchange = "platform.notifications"
)

var (
	ErrInvalidAmount      = errors.New("amount must be a positive number of credits")
	ErrInvalidReference   = errors.New("a payment reference is required")
	ErrRecipientNotFound  = errors.New("recipient not found")
	ErrSelfGift           = errors.New("a gift cannot be addressed to its sender")
	ErrNoGiftLines        = errors.New("a gift request needs at least one line")
	ErrTooManyGiftLines   = errors.New("too many gift lines in one request")
	ErrInvalidGiftLine    = errors.New("gift line must name a kind and a positive credit cost")
	ErrNotBooked          = errors.New("a completed booking with the subject is required")
	ErrInvalidInteraction = errors.New("interaction kind must be like or dislike")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrNotThreadMember    = errors.New("only the gift's sender and recipient may reply")
	ErrThreadNotOpened    = errors.New("the recipient has not opened the reply thread yet")
	ErrEmptyMessage       = errors.New("message must not be empty")
)

// RateLimiter is the slice of the Redis limiter the spend endpoints use.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// ServiceOptions carries the operator-tunable settings. Zero values fall back
// to the package defaults.
type ServiceOptions struct {
	MaxGiftLines         int
	NotificationExchange string
	StatementPageSize    int
}

// Service provides the core business logic for the credit ledger.
type Service struct {
	repo                 store.Repository
	eventProducer        rabbitmq.Publisher
	maxGiftLines         int
	notificationExchange string
	statementPageSize    int
}

// NewService creates a new credit service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, opts ServiceOptions) *Service {
	if opts.MaxGiftLines <= 0 {
		opts.MaxGiftLines = 10
	}
	if strings.TrimSpace(opts.NotificationExchange) == "" {
		opts.NotificationExchange = NotificationExchange
	}
	if opts.StatementPageSize <= 0 || opts.StatementPageSize > MaxStatementPageSize {
		opts.StatementPageSize = DefaultStatementPageSize
	}
	return &Service{
		repo:                 repo,
		eventProducer:        producer,
		maxGiftLines:         opts.MaxGiftLines,
		notificationExchange: opts.NotificationExchange,
		statementPageSize:    opts.StatementPageSize,
	}
}

// ResolveInternalUserID converts an auth-provider subject id into the internal
// UUID used by our database. This allows handlers to accept subject ids from
// validated JWTs while the repositories continue to operate on UUIDs.
func (s *Service) ResolveInternalUserID(ctx context.Context, authUserID string) (uuid.UUID, error) {
	return s.repo.FindUserIDByAuthUserID(ctx, authUserID)
}

// GetBalance returns the user's current credit balance.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// PurchaseCredits credits an account after an external payment. The payment
// reference makes the operation idempotent: replaying the same reference
// returns the original ledger row and credits nothing.
func (s *Service) PurchaseCredits(ctx context.Context, userID uuid.UUID, amount int64, reference string) (*domain.CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidReference
	}

	record, err := s.repo.ApplyCreditTransaction(ctx, store.ApplyTransactionParams{
		UserID:      userID,
		Amount:      amount,
		Kind:        domain.TransactionKindPurchase,
		Description: "Credit purchase",
		ReferenceID: &reference,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateReference) {
			existing, findErr := s.repo.FindCreditTransactionByReference(ctx, userID, domain.TransactionKindPurchase, reference)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				log.Printf("level=info component=ledger op=purchase outcome=replay user_id=%s reference=%s", userID, reference)
				return existing, nil
			}
		}
		return nil, err
	}

	creditsApplied.WithLabelValues(domain.TransactionKindPurchase).Inc()
	return record, nil
}

// RefundCredits credits an account with kind refund. Idempotent per reference,
// same as purchases.
func (s *Service) RefundCredits(ctx context.Context, req domain.RefundCreditsRequest) (*domain.CreditTransaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, ErrInvalidReference
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Credit refund"
	}

	record, err := s.repo.ApplyCreditTransaction(ctx, store.ApplyTransactionParams{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Kind:        domain.TransactionKindRefund,
		Description: description,
		ReferenceID: &reference,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateReference) {
			existing, findErr := s.repo.FindCreditTransactionByReference(ctx, req.UserID, domain.TransactionKindRefund, reference)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	creditsApplied.WithLabelValues(domain.TransactionKindRefund).Inc()
	return record, nil
}

// GetStatement returns a page of the user's credit transaction history.
func (s *Service) GetStatement(ctx context.Context, userID uuid.UUID, limit, offset int) (*domain.StatementPage, error) {
	if limit <= 0 {
		limit = s.statementPageSize
	}
	if limit > MaxStatementPageSize {
		limit = MaxStatementPageSize
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.repo.ListCreditTransactions(ctx, userID, domain.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return &domain.StatementPage{Transactions: transactions, Limit: limit, Offset: offset}, nil
}

// ReconcileBalance compares the stored balance with the sum of the user's
// ledger rows. Drift is reported, never auto-corrected; a non-zero drift means
// something wrote the balance outside the guarded mutation path.
func (s *Service) ReconcileBalance(ctx context.Context, userID uuid.UUID) (*domain.ReconciliationReport, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.SumCreditTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &domain.ReconciliationReport{
		UserID:    userID,
		Balance:   balance,
		LedgerSum: sum,
		Drift:     balance - sum,
	}
	if report.Drift != 0 {
		log.Printf("level=warn component=ledger op=reconcile outcome=drift user_id=%s balance=%d ledger_sum=%d drift=%d",
			userID, balance, sum, report.Drift)
		reconciliationDrift.Inc()
	}
	return report, nil
}
