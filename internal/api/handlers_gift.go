/**
 * @description
 * HTTP handlers for the gift endpoints: sending a batch, listing sent and
 * received gifts, collecting a pending gift, and the reply thread.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/velvetpages/credit-service/internal/app"
	"github.com/velvetpages/credit-service/internal/domain"
	"github.com/velvetpages/credit-service/internal/store"
)

type giftReplyRequest struct {
	Message string `json:"message"`
}

// giftIDParam parses the {giftID} URL parameter.
func (h *CreditHandlers) giftIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	giftID, err := uuid.Parse(chi.URLParam(r, "giftID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "gift id must be a UUID")
		return uuid.Nil, false
	}
	return giftID, true
}

// SendGiftHandler handles requests to send a gift batch to a recipient.
func (h *CreditHandlers) SendGiftHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	if !h.consumeRateLimit(w, r, "gift_send", userID, h.giftSendPerMin) {
		return
	}

	var req domain.SendGiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.SendGift(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrRecipientNotFound):
			h.writeError(w, http.StatusNotFound, "Recipient not found")
		case errors.Is(err, app.ErrSelfGift),
			errors.Is(err, app.ErrNoGiftLines),
			errors.Is(err, app.ErrTooManyGiftLines),
			errors.Is(err, app.ErrInvalidGiftLine):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrInsufficientCredits):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient credits; balance unchanged")
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Account not found")
		default:
			log.Printf("level=error component=api endpoint=send_gift user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Gift send failed; balance unchanged")
		}
		return
	}

	// Partial success is reported as 207-style detail in a 200 body: each line
	// carries its own terminal state.
	status := http.StatusCreated
	if len(result.Succeeded) == 0 {
		status = http.StatusPaymentRequired
	}
	h.writeJSON(w, status, result)
}

// ListReceivedGiftsHandler lists gifts addressed to the authenticated user.
func (h *CreditHandlers) ListReceivedGiftsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	gifts, err := h.service.ListReceivedGifts(r.Context(), userID, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		log.Printf("level=error component=api endpoint=received_gifts user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list gifts")
		return
	}
	h.writeJSON(w, http.StatusOK, gifts)
}

// ListSentGiftsHandler lists gifts the authenticated user has sent.
func (h *CreditHandlers) ListSentGiftsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	gifts, err := h.service.ListSentGifts(r.Context(), userID, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		log.Printf("level=error component=api endpoint=sent_gifts user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list gifts")
		return
	}
	h.writeJSON(w, http.StatusOK, gifts)
}

// CollectGiftHandler moves a pending gift to collected for its recipient.
func (h *CreditHandlers) CollectGiftHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	giftID, ok := h.giftIDParam(w, r)
	if !ok {
		return
	}

	gift, err := h.service.CollectGift(r.Context(), userID, giftID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrGiftNotFound):
			h.writeError(w, http.StatusNotFound, "Gift not found")
		case errors.Is(err, store.ErrGiftAlreadyCollected):
			h.writeError(w, http.StatusConflict, "Gift already collected")
		default:
			log.Printf("level=error component=api endpoint=collect_gift gift_id=%s err=%v", giftID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to collect gift")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, gift)
}

// ReplyToGiftHandler appends a message to a gift's reply thread.
func (h *CreditHandlers) ReplyToGiftHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	giftID, ok := h.giftIDParam(w, r)
	if !ok {
		return
	}

	var req giftReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.service.ReplyToGift(r.Context(), userID, giftID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrGiftNotFound):
			h.writeError(w, http.StatusNotFound, "Gift not found")
		case errors.Is(err, app.ErrEmptyMessage):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrNotThreadMember), errors.Is(err, app.ErrThreadNotOpened):
			h.writeError(w, http.StatusForbidden, err.Error())
		default:
			log.Printf("level=error component=api endpoint=gift_reply gift_id=%s err=%v", giftID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to post reply")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, reply)
}

// ListGiftRepliesHandler returns a gift's reply thread to one of its participants.
func (h *CreditHandlers) ListGiftRepliesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	giftID, ok := h.giftIDParam(w, r)
	if !ok {
		return
	}

	replies, err := h.service.ListGiftReplies(r.Context(), userID, giftID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrGiftNotFound):
			h.writeError(w, http.StatusNotFound, "Gift not found")
		case errors.Is(err, app.ErrNotThreadMember):
			h.writeError(w, http.StatusForbidden, err.Error())
		default:
			log.Printf("level=error component=api endpoint=gift_replies gift_id=%s err=%v", giftID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to list replies")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, replies)
}
