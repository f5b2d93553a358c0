// Package midtrans is a thin HTTP client for the Midtrans payment gateway.
// It covers the three calls the clinic needs: creating a Snap checkout
// transaction, charging a bank transfer directly, and polling transaction
// status. Retries are deliberately left to the caller; a payment stays
// pending until a later status check or notification settles it.
package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/platform/apperr"
)

const maxResponseBytes = 1 << 20 // 1 MB

// Client calls the Midtrans HTTP API using server-key basic auth.
type Client struct {
	baseURL    string
	snapURL    string
	authHeader string
	httpClient *http.Client
}

// NewClient builds a Client. baseURL is the core API host (e.g. the sandbox
// api.sandbox.midtrans.com), snapURL the Snap host. The server key is sent as
// basic auth with an empty password, per the Midtrans API convention.
func NewClient(baseURL, snapURL, serverKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		snapURL:    snapURL,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(serverKey+":")),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SnapResponse is the result of creating a Snap transaction: a token the
// frontend feeds to the Snap widget, and a standalone redirect URL.
type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// VANumber is one virtual account number issued for a bank transfer charge.
type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// TransactionResponse is the common shape of charge and status responses.
// Midtrans sends numeric-looking fields (status_code, gross_amount) as JSON
// strings, so they stay strings here.
type TransactionResponse struct {
	TransactionID     string     `json:"transaction_id"`
	OrderID           string     `json:"order_id"`
	GrossAmount       string     `json:"gross_amount"`
	PaymentType       string     `json:"payment_type"`
	TransactionStatus string     `json:"transaction_status"`
	FraudStatus       string     `json:"fraud_status"`
	StatusCode        string     `json:"status_code"`
	StatusMessage     string     `json:"status_message"`
	SignatureKey      string     `json:"signature_key"`
	VANumbers         []VANumber `json:"va_numbers"`
}

type transactionDetails struct {
	OrderID     string      `json:"order_id"`
	GrossAmount json.Number `json:"gross_amount"`
}

type customerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// ItemDetail is one checkout line item shown on the Snap payment page.
// Midtrans wants an integer price here (whole rupiah).
type ItemDetail struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type snapRequest struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
	CustomerDetails    *customerDetails   `json:"customer_details,omitempty"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
}

type chargeRequest struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
	BankTransfer       bankTransfer       `json:"bank_transfer"`
}

type bankTransfer struct {
	Bank string `json:"bank"`
}

// CreateSnapTransaction creates a Snap checkout session for the given order.
// items may be nil; when present they are shown on the hosted payment page.
func (c *Client) CreateSnapTransaction(ctx context.Context, orderID string, grossAmount decimal.Decimal, customerName, customerEmail string, items []ItemDetail) (*SnapResponse, error) {
	req := snapRequest{
		TransactionDetails: transactionDetails{
			OrderID:     orderID,
			GrossAmount: json.Number(grossAmount.StringFixed(2)),
		},
		ItemDetails: items,
	}
	if customerName != "" || customerEmail != "" {
		req.CustomerDetails = &customerDetails{FirstName: customerName, Email: customerEmail}
	}

	var resp SnapResponse
	if err := c.do(ctx, http.MethodPost, c.snapURL+"/snap/v1/transactions", "snap transaction", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChargeBankTransfer creates a bank transfer charge and returns the issued
// virtual account details along with the gateway's transaction identifiers.
func (c *Client) ChargeBankTransfer(ctx context.Context, orderID, bank string, grossAmount decimal.Decimal) (*TransactionResponse, error) {
	req := chargeRequest{
		PaymentType: "bank_transfer",
		TransactionDetails: transactionDetails{
			OrderID:     orderID,
			GrossAmount: json.Number(grossAmount.StringFixed(2)),
		},
		BankTransfer: bankTransfer{Bank: bank},
	}

	var resp TransactionResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/charge", "bank transfer charge", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TransactionStatus polls the gateway for the current state of an order.
func (c *Client) TransactionStatus(ctx context.Context, orderID string) (*TransactionResponse, error) {
	var resp TransactionResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/"+orderID+"/status", "transaction status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one API call. Transport failures and non-2xx responses both
// come back as gateway errors so callers can treat the gateway as a single
// failure domain.
func (c *Client) do(ctx context.Context, method, url, op string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Gateway(op, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Gateway(op, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Gateway(op, resp.StatusCode, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(data, 200)))
	}

	// The Core API reports some rejections (duplicate order_id among them)
	// with HTTP 200 and the error only in the body's status_code.
	if err := bodyError(op, data); err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Gateway(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// bodyError surfaces a gateway rejection carried inside a 2xx response body.
func bodyError(op string, data []byte) error {
	var envelope struct {
		StatusCode    string `json:"status_code"`
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.StatusCode == "" {
		return nil
	}
	code, err := strconv.Atoi(envelope.StatusCode)
	if err != nil || code < 400 {
		return nil
	}
	return apperr.Gateway(op, code, fmt.Errorf("gateway rejected request: %s", envelope.StatusMessage))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
