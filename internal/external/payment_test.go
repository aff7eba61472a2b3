package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *PaymentClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPaymentClient(PaymentConfig{
		BaseURL:       srv.URL,
		StoreID:       "store",
		StorePassword: "secret",
		Timeout:       2 * time.Second,
	})
}

func TestCreateSessionSendsForm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/session", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "store", r.PostForm.Get("store_id"))
		assert.Equal(t, "secret", r.PostForm.Get("store_passwd"))
		assert.Equal(t, "1250.50", r.PostForm.Get("total_amount"))
		assert.Equal(t, "BDT", r.PostForm.Get("currency"))
		assert.Equal(t, "TRIP-1-USER-2-DEADBEEF", r.PostForm.Get("tran_id"))
		assert.Equal(t, "https://app/ipn", r.PostForm.Get("ipn_url"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"SUCCESS","sessionkey":"S1","GatewayPageURL":"https://pay/S1"}`))
	})

	resp := client.CreateSession(context.Background(), SessionRequest{
		Amount:        decimal.RequireFromString("1250.5"),
		TransactionID: "TRIP-1-USER-2-DEADBEEF",
		IPNURL:        "https://app/ipn",
	})

	assert.True(t, resp.OK())
	assert.Equal(t, "S1", resp.SessionKey)
	assert.Equal(t, "https://pay/S1", resp.GatewayPageURL)
}

func TestCreateSessionGatewayRejects(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"FAILED","failedreason":"Store Credential Error"}`))
	})

	resp := client.CreateSession(context.Background(), SessionRequest{Amount: decimal.NewFromInt(10)})

	assert.False(t, resp.OK())
	assert.Equal(t, "Store Credential Error", resp.FailedReason)
}

func TestTransportErrorsDegradeToFailed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	ctx := context.Background()

	session := client.CreateSession(ctx, SessionRequest{Amount: decimal.NewFromInt(10)})
	assert.Equal(t, StatusFailed, session.Status)
	assert.Contains(t, session.FailedReason, "502")

	validation := client.ValidateTransaction(ctx, "val", "tran")
	assert.Equal(t, StatusFailed, validation.Status)
	assert.False(t, validation.Valid())

	refund := client.InitiateRefund(ctx, "bank", decimal.NewFromInt(10), "")
	assert.Equal(t, StatusFailed, refund.Status)
	assert.NotEmpty(t, refund.ErrorReason)

	query := client.QueryTransaction(ctx, "tran")
	assert.Equal(t, StatusFailed, query.Status)
	assert.False(t, query.Valid())
}

func TestUnreachableGateway(t *testing.T) {
	client := NewPaymentClient(PaymentConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	resp := client.ValidateTransaction(context.Background(), "val", "tran")

	assert.Equal(t, StatusFailed, resp.Status)
	assert.NotEmpty(t, resp.FailedReason)
}

func TestMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	resp := client.QueryTransaction(context.Background(), "tran")

	assert.Equal(t, StatusFailed, resp.Status)
	assert.Contains(t, resp.ErrorReason, "decode")
}

func TestValidateQueryAndRefund(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "store", q.Get("store_id"))
		switch r.URL.Path {
		case "/validate":
			assert.Equal(t, "VAL1", q.Get("val_id"))
			w.Write([]byte(`{"status":"VALID","tran_id":"T1","amount":"100.00","card_type":"VISA-Dutch Bangla"}`))
		case "/query":
			assert.Equal(t, "T1", q.Get("tran_id"))
			w.Write([]byte(`{"status":"VALID","tran_id":"T1","bank_tran_id":"B77"}`))
		case "/refund":
			assert.Equal(t, "B77", q.Get("bank_tran_id"))
			assert.Equal(t, "100.00", q.Get("refund_amount"))
			assert.Equal(t, "Customer requested refund", q.Get("refund_remarks"))
			w.Write([]byte(`{"status":"success","refund_ref_id":"R1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	validation := client.ValidateTransaction(ctx, "VAL1", "T1")
	require.True(t, validation.Valid())
	assert.Equal(t, "VISA-Dutch Bangla", validation.CardType)

	query := client.QueryTransaction(ctx, "T1")
	require.True(t, query.Valid())
	assert.Equal(t, "B77", query.BankTranID)

	refund := client.InitiateRefund(ctx, query.BankTranID, decimal.NewFromInt(100), "")
	assert.True(t, refund.OK())
	assert.Equal(t, "R1", refund.RefundRefID)
}
