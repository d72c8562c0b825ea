package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"toyshop/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	tokens map[string]*Claims
}

func (f fakeVerifier) Verify(_ context.Context, raw string) (*Claims, error) {
	if c, ok := f.tokens[raw]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

func setupRouter(t *testing.T, initial string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	verifier := fakeVerifier{tokens: map[string]*Claims{
		"rw":   {Subject: "storefront", Scopes: []string{ScopeRead, ScopeWrite}},
		"read": {Subject: "viewer", Scopes: []string{ScopeRead}},
	}}
	NewHandler(newTestService(initial), quietLogger()).Register(r, verifier)
	return r
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth_NoAuth(t *testing.T) {
	r := setupRouter(t, "1000")

	w := do(r, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBalance_Auth(t *testing.T) {
	r := setupRouter(t, "1000")

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/balance", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/balance", "forged", nil).Code)

	w := do(r, http.MethodGet, "/balance", "read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balance":1000,"currency":"RUB"}`, w.Body.String())
}

func TestPay_RequiresWriteScope(t *testing.T) {
	r := setupRouter(t, "1000")

	w := do(r, http.MethodPost, "/pay", "read", map[string]any{"orderId": "1", "amount": 10})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPay_Confirm_Status_Flow(t *testing.T) {
	r := setupRouter(t, "1000")

	w := do(r, http.MethodPost, "/pay", "rw", map[string]any{"orderId": "42", "amount": 600, "currency": "RUB", "method": "BALANCE"})
	require.Equal(t, http.StatusOK, w.Code)
	var pay domain.PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pay))
	assert.Equal(t, domain.PaymentSuccess, pay.Status)

	w = do(r, http.MethodPost, "/confirm", "rw", map[string]any{"orderId": "42", "transactionId": pay.TransactionID})
	require.Equal(t, http.StatusOK, w.Code)
	var conf domain.ConfirmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conf))
	assert.True(t, conf.Confirmed)

	w = do(r, http.MethodGet, "/payments/42", "read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status domain.PaymentStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, domain.TransactionConfirmed, status.Status)

	w = do(r, http.MethodGet, "/balance", "read", nil)
	assert.JSONEq(t, `{"balance":400,"currency":"RUB"}`, w.Body.String())
}

func TestPay_InsufficientFundsIs200(t *testing.T) {
	r := setupRouter(t, "100")

	w := do(r, http.MethodPost, "/pay", "rw", map[string]any{"orderId": "1", "amount": 600})

	require.Equal(t, http.StatusOK, w.Code)
	var pay domain.PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pay))
	assert.Equal(t, domain.PaymentFailed, pay.Status)
	assert.Equal(t, "insufficient funds", pay.Message)
}

func TestPay_BadRequests(t *testing.T) {
	r := setupRouter(t, "100")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/pay", "rw", map[string]any{"amount": 5}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/pay", "rw", map[string]any{"orderId": "1", "amount": -5}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/confirm", "rw", map[string]any{"orderId": "1"}).Code)
}

func TestPaymentStatusEndpoint_NotFound(t *testing.T) {
	r := setupRouter(t, "100")

	w := do(r, http.MethodGet, "/payments/nope", "read", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBearerToken(t *testing.T) {
	tok, err := bearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = bearerToken("Basic abc")
	assert.Error(t, err)
	_, err = bearerToken("Bearer ")
	assert.Error(t, err)
}
