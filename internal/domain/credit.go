/**
 * @description
 * This file defines the core ledger domain models for the credit-service.
 * These structs represent the account balance and the append-only credit
 * transaction log that every balance change flows through.
 *
 * @notes
 * - Credit amounts are `int64` whole credits. There are no fractional credits
 *   on the platform, so no fixed-point scaling is needed.
 * - CreditTransaction rows are immutable: they are inserted exactly once and
 *   never updated or deleted. The sum of a user's transaction amounts must
 *   reconcile with their current account balance.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds. Negative amounts carry spend-like kinds, positive amounts
// carry credit-like kinds; the store enforces the sign convention.
const (
	TransactionKindPurchase = "purchase"
	TransactionKindSpend    = "spend"
	TransactionKindGift     = "gift"
	TransactionKindFanPost  = "fanpost"
	TransactionKindRefund   = "refund"
)

// ValidTransactionKind reports whether kind is one of the ledger's known kinds.
func ValidTransactionKind(kind string) bool {
	switch kind {
	case TransactionKindPurchase, TransactionKindSpend, TransactionKindGift,
		TransactionKindFanPost, TransactionKindRefund:
		return true
	}
	return false
}

// Account holds a user's current credit balance. The balance is only ever
// mutated through the store's atomic apply-transaction operation; no other
// code path writes this field.
type Account struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditTransaction is one immutable entry in a user's credit ledger.
// Amount is signed: positive for purchase/refund, negative for spend-like kinds.
type CreditTransaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Amount      int64     `json:"amount"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	ReferenceID *string   `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StatementPage is one page of a user's transaction history, newest first.
type StatementPage struct {
	Transactions []CreditTransaction `json:"transactions"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
}

// ReconciliationReport compares a user's stored balance against the sum of
// their ledger entries. Drift is balance minus ledger sum; anything non-zero
// indicates a write outside the guarded mutation path.
type ReconciliationReport struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	LedgerSum int64     `json:"ledger_sum"`
	Drift     int64     `json:"drift"`
}

// PurchaseCreditsRequest is the DTO for crediting an account after an external
// payment. Reference is the payment provider's id and makes the credit idempotent.
type PurchaseCreditsRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// RefundCreditsRequest is the DTO for the internal refund endpoint.
type RefundCreditsRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	Amount      int64     `json:"amount"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
}

// ListOptions carries pagination parameters for history listings.
type ListOptions struct {
	Limit  int
	Offset int
}
