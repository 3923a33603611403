// internal/domain/payment/pse_gateway.go
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// PSEGateway processes PSE bank-redirect payments through ePayco
type PSEGateway struct {
	provider      string
	mode          string
	baseURL       string
	publicKey     string
	privateKey    string
	webhookSecret string
	httpClient    *http.Client
}

// NewPSEGateway creates the ePayco-backed PSE gateway
func NewPSEGateway(provider, baseURL, publicKey, privateKey, webhookSecret, mode string, timeout time.Duration) *PSEGateway {
	return &PSEGateway{
		provider:      provider,
		mode:          mode,
		baseURL:       strings.TrimRight(baseURL, "/"),
		publicKey:     publicKey,
		privateKey:    privateKey,
		webhookSecret: webhookSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Info identifies this gateway
func (g *PSEGateway) Info() GatewayInfo {
	return GatewayInfo{Provider: g.provider, Mode: g.mode}
}

// Supports reports the capabilities the PSE gateway is wired for
func (g *PSEGateway) Supports(method MethodType) bool {
	return method == MethodPSE
}

// CreateCardToken is not a PSE capability
func (g *PSEGateway) CreateCardToken(ctx context.Context, in CardTokenInput) (*CardToken, error) {
	return nil, &UnsupportedCapabilityError{Provider: g.provider, Capability: "card_token"}
}

// ChargeCard is not a PSE capability
func (g *PSEGateway) ChargeCard(ctx context.Context, in ChargeInput) (*ChargeResult, error) {
	return nil, &UnsupportedCapabilityError{Provider: g.provider, Capability: "card_charge"}
}

type pseDebitRequest struct {
	Bank           string `json:"bank"`
	Value          string `json:"value"`
	Currency       string `json:"currency"`
	DocType        string `json:"docType"`
	DocNumber      string `json:"docNumber"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Invoice        string `json:"invoice"`
	URLResponse    string `json:"urlResponse"`
	MethodConfirma string `json:"methodConfirmation"`
}

type pseDebitResponse struct {
	Success bool `json:"success"`
	Data    struct {
		RefPayco      json.Number `json:"ref_payco"`
		TransactionID string      `json:"transactionID"`
		Status        string      `json:"estado"`
		URLBank       string      `json:"urlbanco"`
		Reason        string      `json:"respuesta"`
	} `json:"data"`
	TextResponse string `json:"textResponse"`
}

// ProcessPSEPayment starts a bank debit and returns the redirect the
// customer must follow to authorize it at their bank.
func (g *PSEGateway) ProcessPSEPayment(ctx context.Context, in PSEPaymentInput) (*PSEPaymentResult, error) {
	req := pseDebitRequest{
		Bank:           in.BankCode,
		Value:          strconv.FormatInt(in.Amount, 10),
		Currency:       in.Currency,
		DocType:        in.DocumentType,
		DocNumber:      in.DocumentNumber,
		Name:           in.CustomerName,
		Email:          in.CustomerEmail,
		Invoice:        in.OrderNumber,
		URLResponse:    in.ResponseURL,
		MethodConfirma: "POST",
	}

	body, err := g.makeAPICall(ctx, http.MethodPost, "/pagos/debitos.json", req)
	if err != nil {
		return nil, err
	}

	var resp pseDebitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse pse debit response: %w", err)
	}
	if !resp.Success {
		return nil, &GatewayError{
			Provider: g.provider,
			Err:      fmt.Errorf("pse debit rejected: %s", resp.TextResponse),
		}
	}

	return &PSEPaymentResult{
		Reference:   resp.Data.RefPayco.String(),
		RawStatus:   strings.ToLower(resp.Data.Status),
		RedirectURL: resp.Data.URLBank,
	}, nil
}

type pseBanksResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Code string `json:"bankCode"`
		Name string `json:"bankName"`
	} `json:"data"`
}

// Banks lists the PSE-participating banks
func (g *PSEGateway) Banks(ctx context.Context) ([]Bank, error) {
	body, err := g.makeAPICall(ctx, http.MethodGet, "/pse/bancos.json", nil)
	if err != nil {
		return nil, err
	}

	var resp pseBanksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse bank list: %w", err)
	}

	banks := make([]Bank, 0, len(resp.Data))
	for _, b := range resp.Data {
		banks = append(banks, Bank{Code: b.Code, Name: b.Name})
	}
	return banks, nil
}

type pseVerifyResponse struct {
	Success bool `json:"success"`
	Data    struct {
		RefPayco json.Number `json:"ref_payco"`
		Status   string      `json:"estado"`
		Value    int64       `json:"valor"`
	} `json:"data"`
}

// VerifyTransaction re-reads a transaction from ePayco
func (g *PSEGateway) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	endpoint := "/pse/transaction?ref_payco=" + reference
	body, err := g.makeAPICall(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp pseVerifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse transaction lookup: %w", err)
	}
	if !resp.Success {
		return nil, &GatewayError{
			Provider: g.provider,
			Err:      fmt.Errorf("transaction %s not found", reference),
		}
	}

	return &VerifyResult{
		Reference: resp.Data.RefPayco.String(),
		RawStatus: strings.ToLower(resp.Data.Status),
		Amount:    resp.Data.Value,
	}, nil
}

type pseWebhookPayload struct {
	RefPayco json.Number `json:"x_ref_payco"`
	Response string      `json:"x_response"`
}

// ParseWebhook authenticates the confirmation callback. The signature is an
// HMAC-SHA256 of the raw body with the shared webhook secret, hex encoded,
// compared in constant time.
func (g *PSEGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return nil, fmt.Errorf("webhook signature verification failed")
	}

	var body pseWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("failed to decode pse webhook: %w", err)
	}
	if body.RefPayco.String() == "" {
		return nil, fmt.Errorf("pse webhook missing transaction reference")
	}

	return &WebhookEvent{
		Reference: body.RefPayco.String(),
		RawStatus: strings.ToLower(body.Response),
	}, nil
}

// makeAPICall performs an authenticated request against the ePayco API.
// Transport failures leave the outcome ambiguous; an HTTP error response
// means the gateway answered and the outcome is known.
func (g *PSEGateway) makeAPICall(ctx context.Context, method, endpoint string, data interface{}) ([]byte, error) {
	var reqBody io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.publicKey, g.privateKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &GatewayError{Provider: g.provider, Ambiguous: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Provider: g.provider, Ambiguous: true, Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &GatewayError{
			Provider:  g.provider,
			Ambiguous: true,
			Err:       fmt.Errorf("gateway returned %d", resp.StatusCode),
		}
	}
	if resp.StatusCode >= 400 {
		return nil, &GatewayError{
			Provider: g.provider,
			Err:      fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body)),
		}
	}

	return body, nil
}
