package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPSEGateway(baseURL string) *PSEGateway {
	return NewPSEGateway("epayco", baseURL, "pub_key", "priv_key", "whsec_test", "test", 5*time.Second)
}

func TestPSEProcessPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pagos/debitos.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "pub_key", user)
		assert.Equal(t, "priv_key", pass)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"ref_payco": 890123,
				"transactionID": "123",
				"estado": "Pendiente",
				"urlbanco": "https://bank.example/authorize/890123"
			}
		}`))
	}))
	defer srv.Close()

	gw := newTestPSEGateway(srv.URL)
	res, err := gw.ProcessPSEPayment(context.Background(), PSEPaymentInput{
		OrderNumber: "ORD-20250314-00001",
		Amount:      5000000, Currency: "COP",
		BankCode:     "1007",
		DocumentType: "CC", DocumentNumber: "1012345678",
		CustomerName: "Ana Gomez", CustomerEmail: "ana@example.com",
		ResponseURL: "https://shop.example/pse/response",
	})
	require.NoError(t, err)
	assert.Equal(t, "890123", res.Reference)
	assert.Equal(t, "pendiente", res.RawStatus)
	assert.Equal(t, "https://bank.example/authorize/890123", res.RedirectURL)
}

func TestPSEProcessPaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "textResponse": "invalid bank code"}`))
	}))
	defer srv.Close()

	gw := newTestPSEGateway(srv.URL)
	_, err := gw.ProcessPSEPayment(context.Background(), PSEPaymentInput{BankCode: "0"})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.False(t, gwErr.Ambiguous)
}

func TestPSEServerErrorIsAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := newTestPSEGateway(srv.URL)
	_, err := gw.ProcessPSEPayment(context.Background(), PSEPaymentInput{BankCode: "1007"})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.Ambiguous)
}

func TestPSETransportErrorIsAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	gw := newTestPSEGateway(srv.URL)
	_, err := gw.Banks(context.Background())

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.Ambiguous)
}

func TestPSEBanks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pse/bancos.json", r.URL.Path)
		w.Write([]byte(`{
			"success": true,
			"data": [
				{"bankCode": "1007", "bankName": "Bancolombia"},
				{"bankCode": "1051", "bankName": "Davivienda"}
			]
		}`))
	}))
	defer srv.Close()

	gw := newTestPSEGateway(srv.URL)
	banks, err := gw.Banks(context.Background())
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, Bank{Code: "1007", Name: "Bancolombia"}, banks[0])
}

func signPSE(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPSEParseWebhook(t *testing.T) {
	gw := newTestPSEGateway("https://unused.example")
	payload := []byte(`{"x_ref_payco": 890123, "x_response": "Aceptada"}`)

	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		evt, err := gw.ParseWebhook(payload, signPSE("whsec_test", payload))
		require.NoError(t, err)
		assert.Equal(t, "890123", evt.Reference)
		assert.Equal(t, "aceptada", evt.RawStatus)
	})

	t.Run("rejects a wrong signature", func(t *testing.T) {
		_, err := gw.ParseWebhook(payload, signPSE("other_secret", payload))
		assert.Error(t, err)
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		sig := signPSE("whsec_test", payload)
		tampered := []byte(`{"x_ref_payco": 890123, "x_response": "Rechazada"}`)
		_, err := gw.ParseWebhook(tampered, sig)
		assert.Error(t, err)
	})

	t.Run("rejects a payload without a reference", func(t *testing.T) {
		body := []byte(`{"x_response": "Aceptada"}`)
		_, err := gw.ParseWebhook(body, signPSE("whsec_test", body))
		assert.Error(t, err)
	})
}

func TestPSECapabilities(t *testing.T) {
	gw := newTestPSEGateway("https://unused.example")

	assert.True(t, gw.Supports(MethodPSE))
	assert.False(t, gw.Supports(MethodCreditCard))

	_, err := gw.ChargeCard(context.Background(), ChargeInput{})
	var unsupported *UnsupportedCapabilityError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "card_charge", unsupported.Capability)
}
