/**
 * @description
 * HTTP handlers for the fan-post endpoints: unlocking gated content, checking
 * access, and listing a client's unlock history.
 */

package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/store"
)

func (h *CreditHandlers) fanPostIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	postID, err := uuid.Parse(chi.URLParam(r, "postID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "post id must be a UUID")
		return uuid.Nil, false
	}
	return postID, true
}

// UnlockFanPostHandler charges the client for one-time access to a fan post.
func (h *CreditHandlers) UnlockFanPostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	postID, ok := h.fanPostIDParam(w, r)
	if !ok {
		return
	}
	if !h.consumeRateLimit(w, r, "fanpost_unlock", userID, h.unlockPerMin) {
		return
	}

	unlock, err := h.service.UnlockFanPost(r.Context(), userID, postID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrFanPostNotFound):
			h.writeError(w, http.StatusNotFound, "Fan post not found")
		case errors.Is(err, store.ErrAlreadyUnlocked):
			h.writeError(w, http.StatusConflict, "Already unlocked; no credits were charged")
		case errors.Is(err, store.ErrInsufficientCredits):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient credits; balance unchanged")
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Account not found")
		default:
			log.Printf("level=error component=api endpoint=unlock user_id=%s post_id=%s err=%v", userID, postID, err)
			h.writeError(w, http.StatusInternalServerError, "Unlock failed; balance unchanged")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, unlock)
}

// GetFanPostAccessHandler reports whether the client has unlocked a post.
func (h *CreditHandlers) GetFanPostAccessHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	postID, ok := h.fanPostIDParam(w, r)
	if !ok {
		return
	}

	unlocked, err := h.service.HasUnlockedFanPost(r.Context(), userID, postID)
	if err != nil {
		log.Printf("level=error component=api endpoint=unlock_access user_id=%s post_id=%s err=%v", userID, postID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to check access")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"unlocked": unlocked})
}

// ListFanPostUnlocksHandler lists the client's unlock history.
func (h *CreditHandlers) ListFanPostUnlocksHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	unlocks, err := h.service.ListFanPostUnlocks(r.Context(), userID, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		log.Printf("level=error component=api endpoint=unlock_history user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list unlocks")
		return
	}
	h.writeJSON(w, http.StatusOK, unlocks)
}
