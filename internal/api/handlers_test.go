package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/app"
	"github.com/velvetpages/credit-service/internal/domain"
	"github.com/velvetpages/credit-service/internal/store"
)

// handlerRepoStub backs the handler tests with in-memory ledger semantics.
// Only the methods the tested endpoints reach are implemented; anything else
// panics through the embedded nil interface.
type handlerRepoStub struct {
	store.Repository
	users    map[string]uuid.UUID
	balances map[uuid.UUID]int64
	posts    map[uuid.UUID]*domain.FanPost
	unlocked map[string]bool
	ledger   []domain.CreditTransaction
}

func newHandlerRepoStub() *handlerRepoStub {
	return &handlerRepoStub{
		users:    make(map[string]uuid.UUID),
		balances: make(map[uuid.UUID]int64),
		posts:    make(map[uuid.UUID]*domain.FanPost),
		unlocked: make(map[string]bool),
	}
}

func (r *handlerRepoStub) FindUserIDByAuthUserID(_ context.Context, authUserID string) (uuid.UUID, error) {
	id, ok := r.users[authUserID]
	if !ok {
		return uuid.Nil, store.ErrUserNotFound
	}
	return id, nil
}

func (r *handlerRepoStub) GetBalance(_ context.Context, userID uuid.UUID) (int64, error) {
	balance, ok := r.balances[userID]
	if !ok {
		return 0, store.ErrAccountNotFound
	}
	return balance, nil
}

func (r *handlerRepoStub) ApplyCreditTransaction(_ context.Context, params store.ApplyTransactionParams) (*domain.CreditTransaction, error) {
	balance, ok := r.balances[params.UserID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if balance+params.Amount < 0 {
		return nil, store.ErrInsufficientCredits
	}
	r.balances[params.UserID] = balance + params.Amount

	record := domain.CreditTransaction{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Amount:      params.Amount,
		Kind:        params.Kind,
		Description: params.Description,
		ReferenceID: params.ReferenceID,
		CreatedAt:   time.Now().UTC(),
	}
	r.ledger = append(r.ledger, record)
	return &record, nil
}

func (r *handlerRepoStub) FindFanPostByID(_ context.Context, postID uuid.UUID) (*domain.FanPost, error) {
	post, ok := r.posts[postID]
	if !ok {
		return nil, store.ErrFanPostNotFound
	}
	return post, nil
}

func (r *handlerRepoStub) UnlockFanPostAtomic(_ context.Context, unlock *domain.FanPostUnlock) error {
	key := unlock.ClientID.String() + "|" + unlock.FanPostID.String()
	if r.unlocked[key] {
		return store.ErrAlreadyUnlocked
	}
	balance, ok := r.balances[unlock.ClientID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if balance < unlock.Credits {
		return store.ErrInsufficientCredits
	}
	r.balances[unlock.ClientID] = balance - unlock.Credits
	r.unlocked[key] = true
	unlock.CreatedAt = time.Now().UTC()
	return nil
}

// limiterStub counts calls per test; err simulates a limiter outage.
type limiterStub struct {
	count int
	err   error
}

func (l *limiterStub) ConsumeRateLimit(_ context.Context, _, _ string, _ int, _ time.Duration) (int, int, error) {
	if l.err != nil {
		return 0, 0, l.err
	}
	l.count++
	return l.count, 42, nil
}

// newAuthedRouter mounts the tested routes behind a middleware that injects a
// fixed authenticated subject, standing in for the JWT middleware.
func newAuthedRouter(h *CreditHandlers, subject string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), authUserIDKey, subject)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/balance", h.GetBalanceHandler)
	r.Post("/credits/purchase", h.PurchaseCreditsHandler)
	r.Post("/fan-posts/{postID}/unlock", h.UnlockFanPostHandler)
	return r
}

func TestGetBalanceHandler_ReturnsBalance(t *testing.T) {
	repo := newHandlerRepoStub()
	userID := uuid.New()
	repo.users["sub_abc"] = userID
	repo.balances[userID] = 120

	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), nil, 0, 0)
	router := newAuthedRouter(h, "sub_abc")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balance", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["balance"] != 120 {
		t.Fatalf("expected balance 120, got %d", body["balance"])
	}
}

func TestGetBalanceHandler_RejectsMissingIdentity(t *testing.T) {
	repo := newHandlerRepoStub()
	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), nil, 0, 0)

	rec := httptest.NewRecorder()
	h.GetBalanceHandler(rec, httptest.NewRequest(http.MethodGet, "/balance", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an authenticated identity, got %d", rec.Code)
	}
}

func TestGetBalanceHandler_RejectsUnknownSubject(t *testing.T) {
	repo := newHandlerRepoStub()
	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), nil, 0, 0)
	router := newAuthedRouter(h, "sub_attacker")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balance", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unknown subject, got %d", rec.Code)
	}
}

func TestPurchaseCreditsHandler_CreditsAccount(t *testing.T) {
	repo := newHandlerRepoStub()
	userID := uuid.New()
	repo.users["sub_abc"] = userID
	repo.balances[userID] = 5

	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), nil, 0, 0)
	router := newAuthedRouter(h, "sub_abc")

	body := strings.NewReader(`{"amount": 50, "reference": "pay_123"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/credits/purchase", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.balances[userID] != 55 {
		t.Fatalf("expected balance 55 after purchase, got %d", repo.balances[userID])
	}
	var record domain.CreditTransaction
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if record.Amount != 50 || record.Kind != domain.TransactionKindPurchase {
		t.Fatalf("unexpected ledger row in response: %+v", record)
	}
}

func TestPurchaseCreditsHandler_RejectsNonPositiveAmount(t *testing.T) {
	repo := newHandlerRepoStub()
	userID := uuid.New()
	repo.users["sub_abc"] = userID
	repo.balances[userID] = 5

	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), nil, 0, 0)
	router := newAuthedRouter(h, "sub_abc")

	for _, payload := range []string{
		`{"amount": 0, "reference": "pay_1"}`,
		`{"amount": -20, "reference": "pay_2"}`,
		`{"amount": 10, "reference": "   "}`,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/credits/purchase", strings.NewReader(payload)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: expected 400, got %d", payload, rec.Code)
		}
	}
	if repo.balances[userID] != 5 {
		t.Fatalf("expected balance unchanged after rejected purchases, got %d", repo.balances[userID])
	}
}

func TestUnlockFanPostHandler_DuplicateIsConflict(t *testing.T) {
	repo := newHandlerRepoStub()
	userID := uuid.New()
	repo.users["sub_abc"] = userID
	repo.balances[userID] = 100
	post := &domain.FanPost{ID: uuid.New(), OwnerID: uuid.New(), Title: "backstage", Credits: 25}
	repo.posts[post.ID] = post

	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), nil, 0, 0)
	router := newAuthedRouter(h, "sub_abc")
	target := "/fan-posts/" + post.ID.String() + "/unlock"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first unlock, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.balances[userID] != 75 {
		t.Fatalf("expected balance 75 after unlock, got %d", repo.balances[userID])
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeat unlock, got %d", rec.Code)
	}
	if repo.balances[userID] != 75 {
		t.Fatalf("expected repeat unlock to charge nothing, balance is %d", repo.balances[userID])
	}
}

func TestUnlockFanPostHandler_InsufficientCredits(t *testing.T) {
	repo := newHandlerRepoStub()
	userID := uuid.New()
	repo.users["sub_abc"] = userID
	repo.balances[userID] = 10
	post := &domain.FanPost{ID: uuid.New(), OwnerID: uuid.New(), Credits: 25}
	repo.posts[post.ID] = post

	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), nil, 0, 0)
	router := newAuthedRouter(h, "sub_abc")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fan-posts/"+post.ID.String()+"/unlock", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.balances[userID] != 10 {
		t.Fatalf("expected balance unchanged, got %d", repo.balances[userID])
	}
}

func TestUnlockFanPostHandler_UnknownPostIs404(t *testing.T) {
	repo := newHandlerRepoStub()
	userID := uuid.New()
	repo.users["sub_abc"] = userID
	repo.balances[userID] = 100

	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), nil, 0, 0)
	router := newAuthedRouter(h, "sub_abc")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fan-posts/"+uuid.NewString()+"/unlock", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUnlockFanPostHandler_EnforcesRateLimit(t *testing.T) {
	repo := newHandlerRepoStub()
	userID := uuid.New()
	repo.users["sub_abc"] = userID
	repo.balances[userID] = 100
	post := &domain.FanPost{ID: uuid.New(), OwnerID: uuid.New(), Credits: 1}
	repo.posts[post.ID] = post

	limiter := &limiterStub{}
	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), limiter, 0, 1)
	router := newAuthedRouter(h, "sub_abc")
	target := "/fan-posts/" + post.ID.String() + "/unlock"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected first request to pass the limiter, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once over the limit, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "42" {
		t.Fatalf("expected Retry-After header from the limiter, got %q", got)
	}
}

func TestUnlockFanPostHandler_LimiterOutageFailsOpen(t *testing.T) {
	repo := newHandlerRepoStub()
	userID := uuid.New()
	repo.users["sub_abc"] = userID
	repo.balances[userID] = 100
	post := &domain.FanPost{ID: uuid.New(), OwnerID: uuid.New(), Credits: 5}
	repo.posts[post.ID] = post

	limiter := &limiterStub{err: errors.New("redis: connection refused")}
	h := NewCreditHandlers(app.NewService(repo, nil, app.ServiceOptions{MaxGiftLines: 10}), limiter, 0, 1)
	router := newAuthedRouter(h, "sub_abc")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fan-posts/"+post.ID.String()+"/unlock", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected a limiter outage to fail open, got %d", rec.Code)
	}
}
