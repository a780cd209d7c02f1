/**
 * @description
 * This file contains the HTTP handlers for the campaign ledger's entry points.
 * Handlers are responsible for parsing incoming requests, calling the contract
 * transitions on the application service, and mapping ledger errors onto HTTP
 * status codes. They act as the bridge between the web layer and the contract.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumenfund/campaign-service/internal/app"
	"github.com/lumenfund/campaign-service/internal/domain"
	"github.com/lumenfund/campaign-service/internal/store"
)

// CampaignHandlers holds the application service that handlers will use.
type CampaignHandlers struct {
	service *app.Service
}

// NewCampaignHandlers creates the handler set over the given service.
func NewCampaignHandlers(service *app.Service) *CampaignHandlers {
	return &CampaignHandlers{service: service}
}

type createCampaignRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

// campaignResponse mirrors the persisted record plus its derived address and,
// where known, the account's live balance (distinct from the lifetime counter).
type campaignResponse struct {
	Address       string  `json:"address"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	AmountDonated uint64  `json:"amount_donated"`
	Admin         string  `json:"admin"`
	Balance       *uint64 `json:"balance,omitempty"`
}

func buildCampaignResponse(addr domain.Address, c *domain.Campaign, balance *uint64) campaignResponse {
	return campaignResponse{
		Address:       addr.String(),
		Name:          c.Name,
		Description:   c.Description,
		AmountDonated: c.AmountDonated,
		Admin:         c.Admin.String(),
		Balance:       balance,
	}
}

// CreateCampaignHandler handles POST /campaigns.
func (h *CampaignHandlers) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := GetSignerIdentity(r.Context())
	if !ok {
		http.Error(w, "Could not get signer identity from context", http.StatusInternalServerError)
		return
	}

	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	campaign, addr, err := h.service.CreateCampaign(r.Context(), requester, req.Name, req.Description)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create outcome=failed requester=%s err=%v", requester, err)
		h.writeLedgerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, buildCampaignResponse(addr, campaign, nil))
}

// DonateHandler handles POST /campaigns/{address}/donations.
func (h *CampaignHandlers) DonateHandler(w http.ResponseWriter, r *http.Request) {
	donor, ok := GetSignerIdentity(r.Context())
	if !ok {
		http.Error(w, "Could not get signer identity from context", http.StatusInternalServerError)
		return
	}

	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "Invalid campaign address", http.StatusBadRequest)
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=donate outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	campaign, err := h.service.Donate(r.Context(), donor, addr, req.Amount)
	if err != nil {
		log.Printf("level=warn component=api endpoint=donate outcome=failed donor=%s campaign=%s err=%v", donor, addr, err)
		h.writeLedgerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildCampaignResponse(addr, campaign, nil))
}

// WithdrawHandler handles POST /campaigns/{address}/withdrawals.
func (h *CampaignHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := GetSignerIdentity(r.Context())
	if !ok {
		http.Error(w, "Could not get signer identity from context", http.StatusInternalServerError)
		return
	}

	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "Invalid campaign address", http.StatusBadRequest)
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=withdraw outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.service.Withdraw(r.Context(), requester, addr, req.Amount); err != nil {
		log.Printf("level=warn component=api endpoint=withdraw outcome=failed requester=%s campaign=%s err=%v", requester, addr, err)
		h.writeLedgerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign": addr.String(),
		"amount":   req.Amount,
		"status":   "withdrawn",
	})
}

// GetCampaignHandler handles GET /campaigns/{address}.
func (h *CampaignHandlers) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "Invalid campaign address", http.StatusBadRequest)
		return
	}

	// Lookups are unauthenticated; the rate-limit subject is the client address.
	campaign, balance, err := h.service.GetCampaign(r.Context(), addr, r.RemoteAddr)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildCampaignResponse(addr, campaign, &balance))
}

// writeLedgerError maps ledger and contract errors onto HTTP status codes.
func (h *CampaignHandlers) writeLedgerError(w http.ResponseWriter, err error) {
	var rateErr *app.RateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	switch {
	case errors.Is(err, store.ErrUnauthorized):
		http.Error(w, "You are not authorized to perform this action.", http.StatusForbidden)
	case errors.Is(err, store.ErrInsufficientFunds):
		http.Error(w, "Not enough funds in the campaign account.", http.StatusPaymentRequired)
	case errors.Is(err, store.ErrAccountExists):
		http.Error(w, "Campaign already exists for this creator", http.StatusConflict)
	case errors.Is(err, store.ErrAccountNotFound):
		http.Error(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrLayoutOverflow), errors.Is(err, domain.ErrBadRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *CampaignHandlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}
