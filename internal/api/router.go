/**
 * @description
 * This file sets up the HTTP router for the credit-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CreditRoutes creates and returns a new router for the credit service.
func CreditRoutes(h *CreditHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(PlatformAuthMiddleware(jwksURL))

		// Ledger
		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/statement", h.GetStatementHandler)
		r.Post("/credits/purchase", h.PurchaseCreditsHandler)

		// Gifts
		r.Post("/gifts", h.SendGiftHandler)
		r.Get("/gifts/received", h.ListReceivedGiftsHandler)
		r.Get("/gifts/sent", h.ListSentGiftsHandler)
		r.Post("/gifts/{giftID}/collect", h.CollectGiftHandler)
		r.Post("/gifts/{giftID}/replies", h.ReplyToGiftHandler)
		r.Get("/gifts/{giftID}/replies", h.ListGiftRepliesHandler)

		// Fan posts
		r.Post("/fan-posts/{postID}/unlock", h.UnlockFanPostHandler)
		r.Get("/fan-posts/{postID}/access", h.GetFanPostAccessHandler)
		r.Get("/fan-posts/unlocks", h.ListFanPostUnlocksHandler)

		// Reviews
		r.Post("/reviews", h.CreateReviewHandler)
		r.Put("/reviews/{reviewID}/interaction", h.SetReviewInteractionHandler)
	})

	// Internal endpoints guarded by the shared service key.
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalAPIKey))

		r.Post("/internal/credits/refund", h.RefundCreditsHandler)
		r.Get("/internal/ledger/reconcile", h.ReconcileHandler)
	})

	return r
}
