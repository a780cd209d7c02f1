/**
 * @description
 * This file defines the API routes for the campaign ledger. It wires the three
 * externally invocable entry points (create, donate, withdraw) plus the
 * record lookup into a chi router behind the signer auth middleware.
 *
 * @dependencies
 * - net/http, time: Standard Go libraries.
 * - github.com/go-chi/chi/v5: HTTP routing and standard middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CampaignRoutes assembles the ledger's HTTP surface.
func CampaignRoutes(h *CampaignHandlers) http.Handler {
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

	// Record lookup needs no signer; the address is self-authenticating.
	r.Get("/{address}", h.GetCampaignHandler)

	// Group routes that require a verified signer identity.
	r.Group(func(r chi.Router) {
		r.Use(SignerAuthMiddleware)

		r.Post("/", h.CreateCampaignHandler)
		r.Post("/{address}/donations", h.DonateHandler)
		r.Post("/{address}/withdrawals", h.WithdrawHandler)
	})

	return r
}
