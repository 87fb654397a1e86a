package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/domain"
	"github.com/velvetpages/credit-service/internal/store"
)

// ledgerRepoFake is an in-memory ledger with the same conditional-update
// semantics as the Postgres repository: the balance mutation and the ledger
// append are all-or-nothing, and a debit past zero writes nothing.
type ledgerRepoFake struct {
	store.Repository

	balances     map[uuid.UUID]int64
	transactions []domain.CreditTransaction
	lastListOpts domain.ListOptions
}

func newLedgerRepoFake() *ledgerRepoFake {
	return &ledgerRepoFake{balances: make(map[uuid.UUID]int64)}
}

func (f *ledgerRepoFake) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return 0, store.ErrAccountNotFound
	}
	return balance, nil
}

func (f *ledgerRepoFake) ApplyCreditTransaction(ctx context.Context, params store.ApplyTransactionParams) (*domain.CreditTransaction, error) {
	balance, ok := f.balances[params.UserID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if balance+params.Amount < 0 {
		return nil, store.ErrInsufficientCredits
	}
	if params.ReferenceID != nil {
		for _, t := range f.transactions {
			if t.UserID == params.UserID && t.Kind == params.Kind && t.ReferenceID != nil && *t.ReferenceID == *params.ReferenceID {
				return nil, store.ErrDuplicateReference
			}
		}
	}

	f.balances[params.UserID] = balance + params.Amount
	record := domain.CreditTransaction{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Amount:      params.Amount,
		Kind:        params.Kind,
		Description: params.Description,
		ReferenceID: params.ReferenceID,
	}
	f.transactions = append(f.transactions, record)
	return &record, nil
}

func (f *ledgerRepoFake) FindCreditTransactionByReference(ctx context.Context, userID uuid.UUID, kind, referenceID string) (*domain.CreditTransaction, error) {
	for i := range f.transactions {
		t := f.transactions[i]
		if t.UserID == userID && t.Kind == kind && t.ReferenceID != nil && *t.ReferenceID == referenceID {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *ledgerRepoFake) SumCreditTransactions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	for _, t := range f.transactions {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (f *ledgerRepoFake) ListCreditTransactions(ctx context.Context, userID uuid.UUID, opts domain.ListOptions) ([]domain.CreditTransaction, error) {
	f.lastListOpts = opts
	out := make([]domain.CreditTransaction, 0)
	for _, t := range f.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestPurchaseCredits_IdempotentPerReference(t *testing.T) {
	repo := newLedgerRepoFake()
	userID := uuid.New()
	repo.balances[userID] = 0

	svc := NewService(repo, nil, ServiceOptions{MaxGiftLines: 10})

	first, err := svc.PurchaseCredits(context.Background(), userID, 100, "pay_abc123")
	if err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	replay, err := svc.PurchaseCredits(context.Background(), userID, 100, "pay_abc123")
	if err != nil {
		t.Fatalf("replayed purchase returned error: %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("expected replay to return the original transaction, got %s vs %s", replay.ID, first.ID)
	}

	balance, _ := repo.GetBalance(context.Background(), userID)
	if balance != 100 {
		t.Fatalf("expected balance 100 after replay, got %d", balance)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(repo.transactions))
	}
}

func TestRefundCredits_IdempotentPerReference(t *testing.T) {
	repo := newLedgerRepoFake()
	userID := uuid.New()
	repo.balances[userID] = 0

	svc := NewService(repo, nil, ServiceOptions{MaxGiftLines: 10})
	req := domain.RefundCreditsRequest{UserID: userID, Amount: 40, Reference: "ref_abc", Description: "cancelled booking"}

	first, err := svc.RefundCredits(context.Background(), req)
	if err != nil {
		t.Fatalf("first refund failed: %v", err)
	}

	replay, err := svc.RefundCredits(context.Background(), req)
	if err != nil {
		t.Fatalf("replayed refund returned error: %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("expected replay to return the original transaction, got %s vs %s", replay.ID, first.ID)
	}

	balance, _ := repo.GetBalance(context.Background(), userID)
	if balance != 40 {
		t.Fatalf("expected balance 40 after replayed refund, got %d", balance)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(repo.transactions))
	}
}

func TestGetStatement_UsesConfiguredPageSize(t *testing.T) {
	repo := newLedgerRepoFake()
	userID := uuid.New()
	repo.balances[userID] = 0

	svc := NewService(repo, nil, ServiceOptions{MaxGiftLines: 10, StatementPageSize: 25})

	page, err := svc.GetStatement(context.Background(), userID, 0, 0)
	if err != nil {
		t.Fatalf("GetStatement returned error: %v", err)
	}
	if repo.lastListOpts.Limit != 25 {
		t.Fatalf("expected the configured page size 25, got %d", repo.lastListOpts.Limit)
	}
	if page.Limit != 25 {
		t.Fatalf("expected the reported page limit 25, got %d", page.Limit)
	}

	// An explicit limit still wins, clamped to the maximum.
	if _, err := svc.GetStatement(context.Background(), userID, MaxStatementPageSize+1, 0); err != nil {
		t.Fatalf("GetStatement returned error: %v", err)
	}
	if repo.lastListOpts.Limit != MaxStatementPageSize {
		t.Fatalf("expected limit clamped to %d, got %d", MaxStatementPageSize, repo.lastListOpts.Limit)
	}
}

func TestPurchaseCredits_ValidatesInput(t *testing.T) {
	repo := newLedgerRepoFake()
	userID := uuid.New()
	repo.balances[userID] = 0
	svc := NewService(repo, nil, ServiceOptions{MaxGiftLines: 10})

	if _, err := svc.PurchaseCredits(context.Background(), userID, 0, "pay_x"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if _, err := svc.PurchaseCredits(context.Background(), userID, -5, "pay_x"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative amount, got %v", err)
	}
	if _, err := svc.PurchaseCredits(context.Background(), userID, 10, "   "); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for blank reference, got %v", err)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("expected no ledger rows after rejected purchases, got %d", len(repo.transactions))
	}
}

func TestLedger_BalanceNeverGoesNegative(t *testing.T) {
	repo := newLedgerRepoFake()
	userID := uuid.New()
	repo.balances[userID] = 0
	svc := NewService(repo, nil, ServiceOptions{MaxGiftLines: 10})
	ctx := context.Background()

	if _, err := svc.PurchaseCredits(ctx, userID, 50, "pay_1"); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// An overdraft attempt must leave both the balance and the log unchanged.
	_, err := repo.ApplyCreditTransaction(ctx, store.ApplyTransactionParams{
		UserID: userID, Amount: -80, Kind: domain.TransactionKindSpend, Description: "overdraft",
	})
	if !errors.Is(err, store.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	balance, _ := repo.GetBalance(ctx, userID)
	if balance != 50 {
		t.Fatalf("expected balance 50 after rejected overdraft, got %d", balance)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected ledger log unchanged, got %d rows", len(repo.transactions))
	}

	// Spending down to exactly zero is allowed.
	if _, err := repo.ApplyCreditTransaction(ctx, store.ApplyTransactionParams{
		UserID: userID, Amount: -50, Kind: domain.TransactionKindSpend, Description: "drain",
	}); err != nil {
		t.Fatalf("spend to zero failed: %v", err)
	}
	balance, _ = repo.GetBalance(ctx, userID)
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestReconcileBalance_LedgerSumMatchesBalance(t *testing.T) {
	repo := newLedgerRepoFake()
	userID := uuid.New()
	repo.balances[userID] = 0
	svc := NewService(repo, nil, ServiceOptions{MaxGiftLines: 10})
	ctx := context.Background()

	if _, err := svc.PurchaseCredits(ctx, userID, 200, "pay_1"); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if _, err := repo.ApplyCreditTransaction(ctx, store.ApplyTransactionParams{
		UserID: userID, Amount: -70, Kind: domain.TransactionKindGift, Description: "gift",
	}); err != nil {
		t.Fatalf("gift debit failed: %v", err)
	}
	if _, err := svc.RefundCredits(ctx, domain.RefundCreditsRequest{
		UserID: userID, Amount: 30, Reference: "ref_1", Description: "goodwill",
	}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	report, err := svc.ReconcileBalance(ctx, userID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Balance != 160 {
		t.Fatalf("expected balance 160, got %d", report.Balance)
	}
	if report.Drift != 0 {
		t.Fatalf("expected zero drift, got %d (ledger sum %d)", report.Drift, report.LedgerSum)
	}
}

func TestReconcileBalance_ReportsDrift(t *testing.T) {
	repo := newLedgerRepoFake()
	userID := uuid.New()
	repo.balances[userID] = 0
	svc := NewService(repo, nil, ServiceOptions{MaxGiftLines: 10})
	ctx := context.Background()

	if _, err := svc.PurchaseCredits(ctx, userID, 100, "pay_1"); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// Simulate a write outside the guarded mutation path.
	repo.balances[userID] = 120

	report, err := svc.ReconcileBalance(ctx, userID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Drift != 20 {
		t.Fatalf("expected drift 20, got %d", report.Drift)
	}
}
