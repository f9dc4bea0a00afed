package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// protocolVersion is the gateway wire protocol version we speak.
const protocolVersion = 3

// PaymentPayload is what the client posts to the gateway's hosted checkout
// form: a base64 JSON request plus its signature.
type PaymentPayload struct {
	Data        string `json:"data"`
	Signature   string `json:"signature"`
	CheckoutURL string `json:"checkout_url"`
}

// CallbackPayload is the decoded server-to-server notification body.
type CallbackPayload struct {
	Status         string `json:"status"`
	OrderID        string `json:"order_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	TransactionID  int64  `json:"transaction_id"`
	ErrDescription string `json:"err_description,omitempty"`
}

type paymentRequest struct {
	PublicKey     string `json:"public_key"`
	Version       int    `json:"version"`
	Action        string `json:"action"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	OrderID       string `json:"order_id"`
	TransactionID int64  `json:"transaction_id,omitempty"`
}

type refundResponse struct {
	Result   string `json:"result"`
	RefundID int64  `json:"refund_id"`
	ErrDesc  string `json:"err_description"`
}

// Client builds signed requests for the payment gateway and verifies
// its callbacks. The signature scheme is
// base64(SHA3-256(privateKey || data || privateKey)) over the base64 payload.
type Client struct {
	publicKey   string
	privateKey  string
	currency    string
	checkoutURL string
	apiURL      string
	httpClient  *http.Client
	timeout     time.Duration
}

func NewClient(publicKey, privateKey, currency, checkoutURL, apiURL string, client *http.Client, timeout time.Duration) *Client {
	return &Client{
		publicKey:   publicKey,
		privateKey:  privateKey,
		currency:    currency,
		checkoutURL: checkoutURL,
		apiURL:      apiURL,
		httpClient:  client,
		timeout:     timeout,
	}
}

// BuildPaymentRequest encodes a pay request for the given order. The amount is
// rendered as a plain fixed-point string; scientific notation would be
// rejected by the gateway.
func (g *Client) BuildPaymentRequest(amount decimal.Decimal, description, orderID string) (*PaymentPayload, error) {
	req := paymentRequest{
		PublicKey:   g.publicKey,
		Version:     protocolVersion,
		Action:      "pay",
		Amount:      amount.StringFixed(2),
		Currency:    g.currency,
		Description: description,
		OrderID:     orderID,
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	data := base64.StdEncoding.EncodeToString(raw)
	return &PaymentPayload{
		Data:        data,
		Signature:   g.Sign(data),
		CheckoutURL: g.checkoutURL,
	}, nil
}

// Sign computes base64(SHA3-256(privateKey || data || privateKey)).
func (g *Client) Sign(data string) string {
	h := sha3.New256()
	h.Write([]byte(g.privateKey))
	h.Write([]byte(data))
	h.Write([]byte(g.privateKey))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyCallback recomputes the signature over data and compares it against
// the one the gateway sent, in constant time.
func (g *Client) VerifyCallback(data, signature string) bool {
	expected := g.Sign(data)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// DecodePayload unpacks the base64 JSON callback body.
func (g *Client) DecodePayload(data string) (*CallbackPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	payload := &CallbackPayload{}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	return payload, nil
}

// Refund asks the gateway to reverse a captured payment, identified by the
// transaction id the gateway assigned in its callback. Any transport failure,
// timeout or non-ok result code is surfaced as ErrGatewayUnavailable so
// callers know no money moved.
func (g *Client) Refund(ctx context.Context, orderID string, transactionID int64, amount decimal.Decimal) (int64, error) {
	req := paymentRequest{
		PublicKey:     g.publicKey,
		Version:       protocolVersion,
		Action:        "refund",
		Amount:        amount.StringFixed(2),
		Currency:      g.currency,
		OrderID:       orderID,
		TransactionID: transactionID,
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal refund request: %w", err)
	}

	data := base64.StdEncoding.EncodeToString(raw)
	body, err := json.Marshal(map[string]string{
		"data":      data,
		"signature": g.Sign(data),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal refund body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/request", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create refund request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: gateway returned status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var result refundResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("%w: decode refund response: %v", domain.ErrGatewayUnavailable, err)
	}

	if result.Result != "ok" {
		return 0, fmt.Errorf("%w: refund rejected: %s", domain.ErrGatewayUnavailable, result.ErrDesc)
	}

	return result.RefundID, nil
}
