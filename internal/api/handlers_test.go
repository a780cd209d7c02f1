package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumenfund/campaign-service/internal/app"
	"github.com/lumenfund/campaign-service/internal/domain"
	"github.com/lumenfund/campaign-service/internal/store"
)

// testLedger is a minimal in-memory account store for exercising the HTTP
// surface end to end without Postgres.
type testLedger struct {
	accounts map[domain.Address]*store.Account
}

func newTestLedger() *testLedger {
	return &testLedger{accounts: make(map[domain.Address]*store.Account)}
}

func (l *testLedger) fund(id domain.Identity, lamports uint64) {
	addr := id.SystemAddress()
	l.accounts[addr] = &store.Account{Address: addr, Lamports: lamports}
}

func (l *testLedger) MinimumReserve(dataLen int) uint64 {
	return domain.MinimumReserve(dataLen)
}

func (l *testLedger) Invoke(_ context.Context, _ []domain.Address, fn func(store.Invocation) error) error {
	snapshot := make(map[domain.Address]*store.Account, len(l.accounts))
	for addr, acct := range l.accounts {
		copied := *acct
		copied.Data = append([]byte(nil), acct.Data...)
		snapshot[addr] = &copied
	}
	if err := fn(&testInvocation{ledger: l}); err != nil {
		l.accounts = snapshot
		return err
	}
	return nil
}

type testInvocation struct {
	ledger *testLedger
}

func (inv *testInvocation) Load(addr domain.Address) (*store.Account, error) {
	acct, ok := inv.ledger.accounts[addr]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *acct
	copied.Data = append([]byte(nil), acct.Data...)
	return &copied, nil
}

func (inv *testInvocation) Store(addr domain.Address, data []byte) error {
	acct, ok := inv.ledger.accounts[addr]
	if !ok {
		return store.ErrAccountNotFound
	}
	acct.Data = append([]byte(nil), data...)
	return nil
}

func (inv *testInvocation) Allocate(addr domain.Address, dataLen int, funder domain.Identity, lamports uint64) error {
	if _, exists := inv.ledger.accounts[addr]; exists {
		return store.ErrAccountExists
	}
	funderAcct, ok := inv.ledger.accounts[funder.SystemAddress()]
	if !ok {
		return store.ErrAccountNotFound
	}
	if funderAcct.Lamports < lamports {
		return store.ErrInsufficientFunds
	}
	funderAcct.Lamports -= lamports
	inv.ledger.accounts[addr] = &store.Account{Address: addr, Lamports: lamports, Data: make([]byte, dataLen)}
	return nil
}

func (inv *testInvocation) Transfer(from, to domain.Address, amount uint64) error {
	fromAcct, ok := inv.ledger.accounts[from]
	if !ok {
		return store.ErrAccountNotFound
	}
	toAcct, ok := inv.ledger.accounts[to]
	if !ok {
		return store.ErrAccountNotFound
	}
	if fromAcct.Lamports < amount {
		return store.ErrInsufficientFunds
	}
	fromAcct.Lamports -= amount
	toAcct.Lamports += amount
	return nil
}

func (inv *testInvocation) RecordInvocation(domain.InvocationRecord) error { return nil }

type testSigner struct {
	identity domain.Identity
	token    string
}

func newTestSigner(t *testing.T) testSigner {
	t.Helper()
	pub, priv := newSigner(t)
	var id domain.Identity
	copy(id[:], pub)
	return testSigner{
		identity: id,
		token:    signedToken(t, priv, base64.RawURLEncoding.EncodeToString(ed25519.PublicKey(pub))),
	}
}

func newTestServer(ledger *testLedger) http.Handler {
	service := app.NewService(ledger, nil)
	return CampaignRoutes(NewCampaignHandlers(service))
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

var testReserve = domain.MinimumReserve(domain.CampaignAccountSize)

func TestCreateCampaignEndpoint(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	creator := newTestSigner(t)
	ledger.fund(creator.identity, testReserve)

	rec := doJSON(t, server, http.MethodPost, "/", creator.token, map[string]string{
		"name":        "Build a well",
		"description": "Clean water",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Address       string `json:"address"`
		Name          string `json:"name"`
		AmountDonated uint64 `json:"amount_donated"`
		Admin         string `json:"admin"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "Build a well" || resp.AmountDonated != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Admin != creator.identity.String() {
		t.Fatalf("expected admin %s, got %s", creator.identity, resp.Admin)
	}
	if resp.Address != domain.DeriveCampaignAddress(creator.identity).String() {
		t.Fatalf("unexpected derived address %s", resp.Address)
	}
}

func TestCreateCampaignEndpoint_DuplicateConflicts(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	creator := newTestSigner(t)
	ledger.fund(creator.identity, 3*testReserve)

	body := map[string]string{"name": "first", "description": ""}
	if rec := doJSON(t, server, http.MethodPost, "/", creator.token, body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, server, http.MethodPost, "/", creator.token, body); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCampaignEndpoint_RequiresAuth(t *testing.T) {
	server := newTestServer(newTestLedger())
	rec := doJSON(t, server, http.MethodPost, "/", "", map[string]string{"name": "x"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestDonateEndpoint(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	creator := newTestSigner(t)
	donor := newTestSigner(t)
	ledger.fund(creator.identity, testReserve)
	ledger.fund(donor.identity, 1_000_000)

	if rec := doJSON(t, server, http.MethodPost, "/", creator.token, map[string]string{"name": "well"}); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	addr := domain.DeriveCampaignAddress(creator.identity)

	rec := doJSON(t, server, http.MethodPost, fmt.Sprintf("/%s/donations", addr), donor.token, map[string]uint64{"amount": 1_000_000})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AmountDonated uint64 `json:"amount_donated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AmountDonated != 1_000_000 {
		t.Fatalf("expected counter 1000000, got %d", resp.AmountDonated)
	}
}

func TestDonateEndpoint_MissingCampaignNotFound(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	donor := newTestSigner(t)
	ledger.fund(donor.identity, 1000)

	var missing domain.Address
	missing[0] = 0xEE

	rec := doJSON(t, server, http.MethodPost, fmt.Sprintf("/%s/donations", missing), donor.token, map[string]uint64{"amount": 10})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWithdrawEndpoint_AdminSucceeds(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	creator := newTestSigner(t)
	donor := newTestSigner(t)
	ledger.fund(creator.identity, testReserve)
	ledger.fund(donor.identity, 1_000_000)

	if rec := doJSON(t, server, http.MethodPost, "/", creator.token, map[string]string{"name": "well"}); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	addr := domain.DeriveCampaignAddress(creator.identity)
	if rec := doJSON(t, server, http.MethodPost, fmt.Sprintf("/%s/donations", addr), donor.token, map[string]uint64{"amount": 1_000_000}); rec.Code != http.StatusOK {
		t.Fatalf("donate failed: %d %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, server, http.MethodPost, fmt.Sprintf("/%s/withdrawals", addr), creator.token, map[string]uint64{"amount": 900_000})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Amount uint64 `json:"amount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "withdrawn" || resp.Amount != 900_000 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestWithdrawEndpoint_NonAdminForbidden(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	creator := newTestSigner(t)
	outsider := newTestSigner(t)
	ledger.fund(creator.identity, testReserve)
	ledger.fund(outsider.identity, 0)

	if rec := doJSON(t, server, http.MethodPost, "/", creator.token, map[string]string{"name": "well"}); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	addr := domain.DeriveCampaignAddress(creator.identity)

	rec := doJSON(t, server, http.MethodPost, fmt.Sprintf("/%s/withdrawals", addr), outsider.token, map[string]uint64{"amount": 1})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "You are not authorized to perform this action.\n" {
		t.Fatalf("unexpected error body: %q", got)
	}
}

func TestWithdrawEndpoint_OverReservePaymentRequired(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	creator := newTestSigner(t)
	ledger.fund(creator.identity, testReserve)

	if rec := doJSON(t, server, http.MethodPost, "/", creator.token, map[string]string{"name": "well"}); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	addr := domain.DeriveCampaignAddress(creator.identity)

	// The account holds exactly the reserve, so nothing is withdrawable.
	rec := doJSON(t, server, http.MethodPost, fmt.Sprintf("/%s/withdrawals", addr), creator.token, map[string]uint64{"amount": 1})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "Not enough funds in the campaign account.\n" {
		t.Fatalf("unexpected error body: %q", got)
	}
}

func TestGetCampaignEndpoint(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	creator := newTestSigner(t)
	ledger.fund(creator.identity, testReserve)

	if rec := doJSON(t, server, http.MethodPost, "/", creator.token, map[string]string{"name": "well", "description": "water"}); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	addr := domain.DeriveCampaignAddress(creator.identity)

	// Lookups work without a token.
	rec := doJSON(t, server, http.MethodGet, "/"+addr.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Name    string  `json:"name"`
		Balance *uint64 `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "well" {
		t.Fatalf("unexpected name %q", resp.Name)
	}
	if resp.Balance == nil || *resp.Balance != testReserve {
		t.Fatalf("expected balance %d, got %v", testReserve, resp.Balance)
	}
}

func TestEndpoints_InvalidAddressRejected(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	signer := newTestSigner(t)
	ledger.fund(signer.identity, 1000)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
	}{
		{"lookup", http.MethodGet, "/not-an-address", "", nil},
		{"donate", http.MethodPost, "/not-an-address/donations", signer.token, map[string]uint64{"amount": 1}},
		{"withdraw", http.MethodPost, "/not-an-address/withdrawals", signer.token, map[string]uint64{"amount": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, server, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateCampaignEndpoint_MalformedBodyRejected(t *testing.T) {
	ledger := newTestLedger()
	server := newTestServer(ledger)

	creator := newTestSigner(t)
	ledger.fund(creator.identity, testReserve)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+creator.token)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(newTestLedger())
	rec := doJSON(t, server, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
