/**
 * @description
 * This file contains the HTTP handlers for the credit-service's ledger
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/app"
	"github.com/velvetpages/credit-service/internal/domain"
	"github.com/velvetpages/credit-service/internal/store"
)

// CreditHandlers holds the application service and rate limiter that handlers use.
type CreditHandlers struct {
	service        *app.Service
	limiter        app.RateLimiter
	giftSendPerMin int
	unlockPerMin   int
}

// NewCreditHandlers creates a new instance of CreditHandlers. limiter may be
// nil, in which case the spend endpoints are not rate limited.
func NewCreditHandlers(service *app.Service, limiter app.RateLimiter, giftSendPerMin, unlockPerMin int) *CreditHandlers {
	return &CreditHandlers{
		service:        service,
		limiter:        limiter,
		giftSendPerMin: giftSendPerMin,
		unlockPerMin:   unlockPerMin,
	}
}

func (h *CreditHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *CreditHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// authedUserID resolves the authenticated auth-provider subject to the internal
// user UUID, writing the appropriate error response on failure.
func (h *CreditHandlers) authedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	authUserID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "No authenticated identity")
		return uuid.Nil, false
	}
	userID, err := h.service.ResolveInternalUserID(r.Context(), authUserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusUnauthorized, "Unknown user")
			return uuid.Nil, false
		}
		log.Printf("level=error component=api msg=\"user resolution failed\" auth_user_id=%s err=%v", authUserID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to resolve user")
		return uuid.Nil, false
	}
	return userID, true
}

// consumeRateLimit applies the per-user limit for a spend endpoint. Returns
// false when the caller is over the limit and the response has been written.
func (h *CreditHandlers) consumeRateLimit(w http.ResponseWriter, r *http.Request, scope string, userID uuid.UUID, limit int) bool {
	if h.limiter == nil || limit <= 0 {
		return true
	}
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), scope, userID.String(), limit, time.Minute)
	if err != nil {
		// Fail open: a limiter outage must not block spends.
		log.Printf("level=warn component=api msg=\"rate limiter unavailable\" scope=%s err=%v", scope, err)
		return true
	}
	if count > limit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many requests; slow down")
		return false
	}
	return true
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// GetBalanceHandler returns the authenticated user's credit balance.
func (h *CreditHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("level=error component=api endpoint=balance user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to read balance")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// GetStatementHandler returns a page of the user's credit transaction history.
func (h *CreditHandlers) GetStatementHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	// A zero limit defers to the service's configured page size.
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	page, err := h.service.GetStatement(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("level=error component=api endpoint=statement user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load statement")
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// PurchaseCreditsHandler credits the authenticated user's account after an
// external payment. Replaying a payment reference is a no-op that returns the
// original transaction.
func (h *CreditHandlers) PurchaseCreditsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var req domain.PurchaseCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.service.PurchaseCredits(r.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrInvalidReference):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Account not found")
		default:
			log.Printf("level=error component=api endpoint=purchase user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Purchase failed; balance unchanged")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

// RefundCreditsHandler is the internal endpoint for crediting refunds.
func (h *CreditHandlers) RefundCreditsHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RefundCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.service.RefundCredits(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrInvalidReference):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Account not found")
		default:
			log.Printf("level=error component=api endpoint=refund user_id=%s err=%v", req.UserID, err)
			h.writeError(w, http.StatusInternalServerError, "Refund failed; balance unchanged")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

// ReconcileHandler is the internal endpoint that compares a user's balance
// with the sum of their ledger rows.
func (h *CreditHandlers) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("user_id")
	userID, err := uuid.Parse(rawID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a UUID")
		return
	}

	report, err := h.service.ReconcileBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("level=error component=api endpoint=reconcile user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Reconciliation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
