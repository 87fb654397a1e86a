/**
 * @description
 * HTTP handlers for the review endpoints: posting a review and setting a
 * like/dislike interaction on one.
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

// CreateReviewHandler posts a new review of a subject profile.
func (h *CreditHandlers) CreateReviewHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var req domain.CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	review, err := h.service.CreateReview(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "Subject not found")
		case errors.Is(err, app.ErrInvalidRating):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrNotBooked):
			h.writeError(w, http.StatusForbidden, "A completed booking with the subject is required")
		case errors.Is(err, store.ErrAlreadyReviewed):
			h.writeError(w, http.StatusConflict, "You have already reviewed this profile")
		default:
			log.Printf("level=error component=api endpoint=create_review user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to create review")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, review)
}

// SetReviewInteractionHandler sets the authenticated user's like or dislike on
// a review and returns the review with recomputed counters.
func (h *CreditHandlers) SetReviewInteractionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	reviewID, err := uuid.Parse(chi.URLParam(r, "reviewID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "review id must be a UUID")
		return
	}

	var req domain.SetInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	review, err := h.service.SetReviewInteraction(r.Context(), userID, reviewID, req.Kind)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrReviewNotFound):
			h.writeError(w, http.StatusNotFound, "Review not found")
		case errors.Is(err, app.ErrInvalidInteraction):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrNotBooked):
			h.writeError(w, http.StatusForbidden, "A completed booking with the subject is required")
		default:
			log.Printf("level=error component=api endpoint=review_interaction review_id=%s err=%v", reviewID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to record interaction")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, review)
}
