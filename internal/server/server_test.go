package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/faucet"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/models"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubArbiter struct {
	submitRes faucet.ClaimResult
	submitErr error
	checkDec  faucet.Decision
	checkErr  error
}

func (s *stubArbiter) SubmitClaim(context.Context, string, string) (faucet.ClaimResult, error) {
	return s.submitRes, s.submitErr
}

func (s *stubArbiter) Check(context.Context, string) (faucet.Decision, error) {
	return s.checkDec, s.checkErr
}

func (s *stubArbiter) Enabled() bool            { return true }
func (s *stubArbiter) FaucetAddress() string    { return "0xffffffffffffffffffffffffffffffffffffffff" }
func (s *stubArbiter) ReconciliationGap() int64 { return 0 }

type stubClaimStore struct {
	stats    store.Stats
	statsErr error
}

func (s *stubClaimStore) LatestClaim(context.Context, string, string) (*models.FaucetClaim, error) {
	return nil, nil
}
func (s *stubClaimStore) RecordClaim(context.Context, *models.FaucetClaim) error { return nil }
func (s *stubClaimStore) Stats(context.Context) (store.Stats, error)             { return s.stats, s.statsErr }

type stubInvoiceStore struct {
	created *models.Invoice
	invoice *models.Invoice
	payErr  error
}

func (s *stubInvoiceStore) Create(_ context.Context, inv *models.Invoice) error {
	s.created = inv
	return nil
}
func (s *stubInvoiceStore) Get(context.Context, string) (*models.Invoice, error) {
	return s.invoice, nil
}
func (s *stubInvoiceStore) ListByCreator(context.Context, string) ([]models.Invoice, error) {
	return nil, nil
}
func (s *stubInvoiceStore) MarkPaid(context.Context, string, string) error { return s.payErr }
func (s *stubInvoiceStore) MarkExpired(context.Context, string) error      { return s.payErr }

func newTestServer(arb ClaimArbiter, claims store.ClaimStore, invoices store.InvoiceStore) *gin.Engine {
	logger := log.New(os.Stderr, "test: ", 0)
	hub := NewHub(logger, nil)
	return New(logger, arb, claims, invoices, hub).Router(nil)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestFaucetClaimSuccess(t *testing.T) {
	arb := &stubArbiter{submitRes: faucet.ClaimResult{TxHash: "0x111", Amount: "50"}}
	router := newTestServer(arb, &stubClaimStore{}, &stubInvoiceStore{})

	w := doJSON(t, router, http.MethodPost, "/api/faucet",
		gin.H{"address": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool   `json:"success"`
		TxHash  string `json:"txHash"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "0x111", resp.TxHash)
	require.NotEmpty(t, resp.Message)
}

func TestFaucetClaimMissingAddress(t *testing.T) {
	router := newTestServer(&stubArbiter{}, &stubClaimStore{}, &stubInvoiceStore{})
	w := doJSON(t, router, http.MethodPost, "/api/faucet", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFaucetClaimInvalidAddress(t *testing.T) {
	arb := &stubArbiter{submitErr: faucet.ErrInvalidAddress}
	router := newTestServer(arb, &stubClaimStore{}, &stubInvoiceStore{})
	w := doJSON(t, router, http.MethodPost, "/api/faucet", gin.H{"address": "0x123"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFaucetClaimCooldown(t *testing.T) {
	arb := &stubArbiter{submitErr: &faucet.CooldownError{RetryAfter: 23 * time.Hour}}
	router := newTestServer(arb, &stubClaimStore{}, &stubInvoiceStore{})

	w := doJSON(t, router, http.MethodPost, "/api/faucet",
		gin.H{"address": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp struct {
		Error      string `json:"error"`
		WaitTimeMs int64  `json:"waitTimeMs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp.Error, "23 hour")
	require.Equal(t, (23 * time.Hour).Milliseconds(), resp.WaitTimeMs)
}

func TestFaucetClaimUnavailable(t *testing.T) {
	for _, stubErr := range []error{faucet.ErrServiceUnavailable, faucet.ErrInsufficientFunds} {
		arb := &stubArbiter{submitErr: stubErr}
		router := newTestServer(arb, &stubClaimStore{}, &stubInvoiceStore{})
		w := doJSON(t, router, http.MethodPost, "/api/faucet",
			gin.H{"address": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	}
}

func TestFaucetClaimTransferFailure(t *testing.T) {
	arb := &stubArbiter{submitErr: &faucet.TransferError{Cause: errors.New("rpc down")}}
	router := newTestServer(arb, &stubClaimStore{}, &stubInvoiceStore{})
	w := doJSON(t, router, http.MethodPost, "/api/faucet",
		gin.H{"address": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestFaucetCheck(t *testing.T) {
	arb := &stubArbiter{checkDec: faucet.Decision{Eligible: false, RetryAfter: 82800 * time.Second}}
	router := newTestServer(arb, &stubClaimStore{}, &stubInvoiceStore{})

	w := doJSON(t, router, http.MethodGet, "/api/faucet/check?address=0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		CanClaim   bool  `json:"canClaim"`
		WaitTimeMs int64 `json:"waitTimeMs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.CanClaim)
	require.Equal(t, int64(82800000), resp.WaitTimeMs)
}

func TestFaucetCheckEligible(t *testing.T) {
	arb := &stubArbiter{checkDec: faucet.Decision{Eligible: true}}
	router := newTestServer(arb, &stubClaimStore{}, &stubInvoiceStore{})

	w := doJSON(t, router, http.MethodGet, "/api/faucet/check?address=0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"canClaim":true,"waitTimeMs":0}`, w.Body.String())
}

func TestFaucetCheckMissingAddress(t *testing.T) {
	router := newTestServer(&stubArbiter{}, &stubClaimStore{}, &stubInvoiceStore{})
	w := doJSON(t, router, http.MethodGet, "/api/faucet/check", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFaucetStatsNeverErrors(t *testing.T) {
	claims := &stubClaimStore{statsErr: errors.New("db down")}
	router := newTestServer(&stubArbiter{}, claims, &stubInvoiceStore{})

	w := doJSON(t, router, http.MethodGet, "/api/faucet/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"claims":0,"totalDistributed":0,"uniqueWallets":0}`, w.Body.String())
}

func TestCreateInvoice(t *testing.T) {
	invoices := &stubInvoiceStore{}
	router := newTestServer(&stubArbiter{}, &stubClaimStore{}, invoices)

	w := doJSON(t, router, http.MethodPost, "/api/invoices", gin.H{
		"creator":   "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"recipient": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"amount":    "100",
		"token":     "USDC",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, invoices.created)
	require.NotEmpty(t, invoices.created.ID)
	require.Equal(t, models.InvoiceStatusPending, invoices.created.Status)
}

func TestGetInvoiceNotFound(t *testing.T) {
	router := newTestServer(&stubArbiter{}, &stubClaimStore{}, &stubInvoiceStore{})
	w := doJSON(t, router, http.MethodGet, "/api/invoices/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPayInvoiceAlreadySettled(t *testing.T) {
	invoices := &stubInvoiceStore{payErr: store.ErrInvoiceNotFound}
	router := newTestServer(&stubArbiter{}, &stubClaimStore{}, invoices)
	w := doJSON(t, router, http.MethodPost, "/api/invoices/inv-1/pay", gin.H{"txHash": "0x222"})
	require.Equal(t, http.StatusConflict, w.Code)
}
