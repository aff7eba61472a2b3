package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/tracing"
)

// Gateway statuses
const (
	StatusSuccess   = "SUCCESS"
	StatusFailed    = "FAILED"
	StatusValid     = "VALID"
	StatusValidated = "VALIDATED"
)

// PaymentClient talks to the hosted payment page gateway. It keeps no state
// and never returns transport errors: every failure is folded into a result
// with Status FAILED and a reason.
type PaymentClient struct {
	baseURL       string
	storeID       string
	storePassword string
	currency      string
	httpClient    *http.Client
}

type PaymentConfig struct {
	BaseURL       string
	StoreID       string
	StorePassword string
	Currency      string
	Timeout       time.Duration
}

// SessionRequest is everything the gateway needs to open a hosted payment page
type SessionRequest struct {
	Amount          decimal.Decimal
	Currency        string
	TransactionID   string
	SuccessURL      string
	FailURL         string
	CancelURL       string
	IPNURL          string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	ProductName     string
	ProductCategory string
}

type SessionResponse struct {
	Status         string `json:"status"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
	FailedReason   string `json:"failedreason"`
}

// OK reports whether the hosted page can be used.
func (r *SessionResponse) OK() bool {
	return strings.EqualFold(r.Status, StatusSuccess) && r.GatewayPageURL != ""
}

type ValidationResponse struct {
	Status       string `json:"status"`
	TranID       string `json:"tran_id"`
	ValID        string `json:"val_id"`
	Amount       string `json:"amount"`
	CardType     string `json:"card_type"`
	BankTranID   string `json:"bank_tran_id"`
	FailedReason string `json:"failedreason"`
}

// Valid accepts VALIDATED too: the gateway answers that to a second
// validation of the same transaction.
func (r *ValidationResponse) Valid() bool {
	return r.Status == StatusValid || r.Status == StatusValidated
}

type RefundResponse struct {
	Status      string `json:"status"`
	BankTranID  string `json:"bank_tran_id"`
	RefundRefID string `json:"refund_ref_id"`
	ErrorReason string `json:"errorReason"`
}

func (r *RefundResponse) OK() bool {
	return strings.EqualFold(r.Status, "success")
}

type QueryResponse struct {
	Status      string `json:"status"`
	TranID      string `json:"tran_id"`
	BankTranID  string `json:"bank_tran_id"`
	Amount      string `json:"amount"`
	ErrorReason string `json:"errorReason"`
}

func (r *QueryResponse) Valid() bool {
	return (r.Status == StatusValid || r.Status == StatusValidated) && r.BankTranID != ""
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "BDT"
	}

	return &PaymentClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		storeID:       cfg.StoreID,
		storePassword: cfg.StorePassword,
		currency:      cfg.Currency,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Currency is the deployment-wide currency code.
func (pc *PaymentClient) Currency() string {
	return pc.currency
}

func (pc *PaymentClient) credentials() url.Values {
	v := url.Values{}
	v.Set("store_id", pc.storeID)
	v.Set("store_passwd", pc.storePassword)
	v.Set("format", "json")
	return v
}

// CreateSession requests a hosted payment page.
func (pc *PaymentClient) CreateSession(ctx context.Context, req SessionRequest) *SessionResponse {
	ctx, end := tracing.StartGatewaySpan(ctx, "session", req.TransactionID)

	currency := req.Currency
	if currency == "" {
		currency = pc.currency
	}

	form := pc.credentials()
	form.Set("total_amount", req.Amount.StringFixed(2))
	form.Set("currency", currency)
	form.Set("tran_id", req.TransactionID)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("ipn_url", req.IPNURL)
	form.Set("cus_name", req.CustomerName)
	form.Set("cus_email", req.CustomerEmail)
	form.Set("cus_phone", req.CustomerPhone)
	form.Set("cus_add1", req.CustomerAddress)
	form.Set("product_name", req.ProductName)
	form.Set("product_category", req.ProductCategory)
	form.Set("product_profile", "general")
	form.Set("shipping_method", "NO")
	form.Set("num_of_item", "1")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+"/session", strings.NewReader(form.Encode()))
	if err != nil {
		end(err)
		return &SessionResponse{Status: StatusFailed, FailedReason: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result SessionResponse
	if err := pc.do(httpReq, &result); err != nil {
		end(err)
		return &SessionResponse{Status: StatusFailed, FailedReason: err.Error()}
	}
	if !result.OK() {
		end(&apperrors.GatewayError{Operation: "session", Reason: result.FailedReason})
		return &result
	}
	end(nil)
	return &result
}

// ValidateTransaction checks a val_id received on a callback.
func (pc *PaymentClient) ValidateTransaction(ctx context.Context, valID, tranID string) *ValidationResponse {
	ctx, end := tracing.StartGatewaySpan(ctx, "validate", tranID)

	params := pc.credentials()
	params.Set("val_id", valID)

	var result ValidationResponse
	if err := pc.get(ctx, "/validate", params, &result); err != nil {
		end(err)
		return &ValidationResponse{Status: StatusFailed, FailedReason: err.Error()}
	}
	end(nil)
	return &result
}

// InitiateRefund asks the gateway to return amount for a bank transaction.
func (pc *PaymentClient) InitiateRefund(ctx context.Context, bankTranID string, amount decimal.Decimal, remarks string) *RefundResponse {
	ctx, end := tracing.StartGatewaySpan(ctx, "refund", bankTranID)

	if remarks == "" {
		remarks = "Customer requested refund"
	}
	params := pc.credentials()
	params.Set("bank_tran_id", bankTranID)
	params.Set("refund_amount", amount.StringFixed(2))
	params.Set("refund_remarks", remarks)

	var result RefundResponse
	if err := pc.get(ctx, "/refund", params, &result); err != nil {
		end(err)
		return &RefundResponse{Status: StatusFailed, ErrorReason: err.Error()}
	}
	end(nil)
	return &result
}

// QueryTransaction fetches gateway-side details, including the bank transaction id.
func (pc *PaymentClient) QueryTransaction(ctx context.Context, tranID string) *QueryResponse {
	ctx, end := tracing.StartGatewaySpan(ctx, "query", tranID)

	params := pc.credentials()
	params.Set("tran_id", tranID)

	var result QueryResponse
	if err := pc.get(ctx, "/query", params, &result); err != nil {
		end(err)
		return &QueryResponse{Status: StatusFailed, ErrorReason: err.Error()}
	}
	end(nil)
	return &result
}

func (pc *PaymentClient) get(ctx context.Context, path string, params url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pc.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	return pc.do(httpReq, out)
}

func (pc *PaymentClient) do(req *http.Request, out any) error {
	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
