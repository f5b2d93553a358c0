package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/midtrans"
)

func callHandler(t *testing.T, h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func newTestHandler(repo *mockRepo, gw *mockGateway) *Handler {
	return NewHandler(newTestService(repo, gw, nil))
}

func TestCreatePaymentHandler(t *testing.T) {
	h := newTestHandler(newMockRepo(), nil)

	rec := callHandler(t, h.CreatePayment, http.MethodPost, "/payments",
		`{"appointment_id":1,"amount":"150000","payment_method":"cash"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"pending"`) {
		t.Errorf("expected pending payment in response, got %s", rec.Body.String())
	}
}

func TestCreatePaymentHandlerValidation(t *testing.T) {
	h := newTestHandler(newMockRepo(), nil)

	rec := callHandler(t, h.CreatePayment, http.MethodPost, "/payments",
		`{"appointment_id":1,"amount":"0","payment_method":"cash"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetPaymentHandlerNotFound(t *testing.T) {
	h := newTestHandler(newMockRepo(), nil)

	rec := callHandler(t, h.GetPayment, http.MethodGet, "/payments/7", "", "id", "7")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetPaymentHandlerInvalidID(t *testing.T) {
	h := newTestHandler(newMockRepo(), nil)

	rec := callHandler(t, h.GetPayment, http.MethodGet, "/payments/abc", "", "id", "abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestNotificationHandlerRejectsForgedSignature(t *testing.T) {
	repo := newMockRepo()
	h := newTestHandler(repo, nil)

	// Seed a pending payment the notification refers to.
	svc := h.svc
	p := pendingPayment(t, svc)

	rec := callHandler(t, h.Notification, http.MethodPost, "/payments/notification",
		`{"order_id":"`+p.OrderID()+`","status_code":"200","gross_amount":"150000.00","signature_key":"forged","transaction_status":"settlement"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for forged signature, got %d", rec.Code)
	}
}

func TestNotificationHandlerAcknowledgesVerified(t *testing.T) {
	repo := newMockRepo()
	h := newTestHandler(repo, nil)
	p := pendingPayment(t, h.svc)

	n := signedNotification(h.svc, p, "settlement", "", "txn-1")
	body := `{"order_id":"` + n.OrderID + `","status_code":"` + n.StatusCode +
		`","gross_amount":"` + n.GrossAmount + `","signature_key":"` + n.SignatureKey +
		`","transaction_status":"settlement","transaction_id":"txn-1"}`

	rec := callHandler(t, h.Notification, http.MethodPost, "/payments/notification", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"paid"`) {
		t.Errorf("expected paid payment in response, got %s", rec.Body.String())
	}
}

func TestSnapTokenHandlerConflictOnSecondAttempt(t *testing.T) {
	repo := newMockRepo()
	gw := &mockGateway{
		snapFn: func(_ context.Context, _ string, _ decimal.Decimal, _, _ string, _ []midtrans.ItemDetail) (*midtrans.SnapResponse, error) {
			return &midtrans.SnapResponse{Token: "snap-tok"}, nil
		},
	}
	h := newTestHandler(repo, gw)

	rec := callHandler(t, h.CreateSnapToken, http.MethodPost, "/payments/create-snap-token",
		`{"appointment_id":1,"amount":"100","payment_method":"midtrans"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = callHandler(t, h.CreateSnapToken, http.MethodPost, "/payments/create-snap-token",
		`{"payment_id":1}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on second attempt, got %d", rec.Code)
	}
}

func TestCheckStatusHandlerGatewayDown(t *testing.T) {
	repo := newMockRepo()
	gw := &mockGateway{
		statusFn: func(context.Context, string) (*midtrans.TransactionResponse, error) {
			return nil, apperr.Gateway("transaction status", 0, errors.New("timeout"))
		},
	}
	h := newTestHandler(repo, gw)
	p := pendingPayment(t, h.svc)

	rec := callHandler(t, h.CheckStatus, http.MethodGet, "/payments/1/status", "",
		"id", strconv.FormatInt(p.ID, 10))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 when gateway is down, got %d", rec.Code)
	}
}

func TestAddItemHandler(t *testing.T) {
	repo := newMockRepo()
	h := newTestHandler(repo, nil)
	p := pendingPayment(t, h.svc)

	rec := callHandler(t, h.AddItem, http.MethodPost, "/payments/1/items",
		`{"description":"Consultation","quantity":2,"price":"75000"}`,
		"id", strconv.FormatInt(p.ID, 10))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"total":"150000"`) {
		t.Errorf("expected computed total in response, got %s", rec.Body.String())
	}
}
