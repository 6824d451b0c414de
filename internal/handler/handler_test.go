package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"theater/internal/config"
	"theater/internal/domain/model"
	"theater/internal/payment"
	"theater/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// mocks
// =====================

type CartUsecaseMock struct{ mock.Mock }

func (m *CartUsecaseMock) GetCart(ctx context.Context, userID int64) (usecase.CartOutput, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(usecase.CartOutput), args.Error(1)
}

func (m *CartUsecaseMock) AddMovie(ctx context.Context, userID int64, movieID int64) (usecase.CartItemOutput, error) {
	args := m.Called(ctx, userID, movieID)
	return args.Get(0).(usecase.CartItemOutput), args.Error(1)
}

func (m *CartUsecaseMock) RemoveItem(ctx context.Context, userID int64, cartItemID int64) error {
	return m.Called(ctx, userID, cartItemID).Error(0)
}

func (m *CartUsecaseMock) Clear(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

type CheckoutUsecaseMock struct{ mock.Mock }

func (m *CheckoutUsecaseMock) Checkout(ctx context.Context, userID int64) (usecase.OrderOutput, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(usecase.OrderOutput), args.Error(1)
}

type OrderUsecaseMock struct{ mock.Mock }

func (m *OrderUsecaseMock) ListMine(ctx context.Context, userID int64, page, perPage int) (usecase.OrderListOutput, error) {
	args := m.Called(ctx, userID, page, perPage)
	return args.Get(0).(usecase.OrderListOutput), args.Error(1)
}

func (m *OrderUsecaseMock) GetMine(ctx context.Context, userID int64, orderID int64) (usecase.OrderOutput, error) {
	args := m.Called(ctx, userID, orderID)
	return args.Get(0).(usecase.OrderOutput), args.Error(1)
}

func (m *OrderUsecaseMock) Cancel(ctx context.Context, userID int64, orderID int64) (usecase.CancelOutput, error) {
	args := m.Called(ctx, userID, orderID)
	return args.Get(0).(usecase.CancelOutput), args.Error(1)
}

func (m *OrderUsecaseMock) Pay(ctx context.Context, userID int64, orderID int64, req payment.Request) (usecase.PayOutput, error) {
	args := m.Called(ctx, userID, orderID, req)
	return args.Get(0).(usecase.PayOutput), args.Error(1)
}

type PaymentUsecaseMock struct{ mock.Mock }

func (m *PaymentUsecaseMock) List(ctx context.Context, userID int64, page, perPage int) (usecase.PaymentListOutput, error) {
	args := m.Called(ctx, userID, page, perPage)
	return args.Get(0).(usecase.PaymentListOutput), args.Error(1)
}

func (m *PaymentUsecaseMock) Get(ctx context.Context, userID int64, paymentID int64) (usecase.PaymentOutput, error) {
	args := m.Called(ctx, userID, paymentID)
	return args.Get(0).(usecase.PaymentOutput), args.Error(1)
}

type WebhookUsecaseMock struct{ mock.Mock }

func (m *WebhookUsecaseMock) Handle(ctx context.Context, payload []byte, signature string) (usecase.WebhookOutput, error) {
	args := m.Called(ctx, payload, signature)
	return args.Get(0).(usecase.WebhookOutput), args.Error(1)
}

type userRepoStub struct{}

func (userRepoStub) Create(ctx context.Context, user *model.User) error { return nil }

func (userRepoStub) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return &model.User{ID: id, Email: "u@example.com", IsActive: true}, nil
}

// =====================
// helper
// =====================

const testSecret = "handler-secret"

type testServer struct {
	e        *echo.Echo
	cart     *CartUsecaseMock
	checkout *CheckoutUsecaseMock
	orders   *OrderUsecaseMock
	payments *PaymentUsecaseMock
	webhook  *WebhookUsecaseMock
}

func newTestServer() *testServer {
	s := &testServer{
		e:        echo.New(),
		cart:     &CartUsecaseMock{},
		checkout: &CheckoutUsecaseMock{},
		orders:   &OrderUsecaseMock{},
		payments: &PaymentUsecaseMock{},
		webhook:  &WebhookUsecaseMock{},
	}
	cfg := config.Config{JWTSecret: testSecret}
	api := s.e.Group("/api/v1")
	NewCartHandler(s.cart).RegisterRoutes(api, cfg, userRepoStub{})
	NewOrderHandler(s.checkout, s.orders).RegisterRoutes(api, cfg, userRepoStub{})
	NewPaymentHandler(s.payments, s.webhook).RegisterRoutes(api, cfg, userRepoStub{})
	return s
}

func bearer(t *testing.T, userID int64) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"tv":  0,
		"exp": 9999999999,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + raw
}

func (s *testServer) do(method, path, auth, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var r ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	return r
}

// =====================
// cart
// =====================

func TestCartHandler_RequiresAuth(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodGet, "/api/v1/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	s.cart.AssertNotCalled(t, "GetCart", mock.Anything, mock.Anything)
}

func TestCartHandler_GetAndAdd(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	s.cart.On("GetCart", mock.Anything, int64(7)).Return(usecase.CartOutput{ID: 3, Items: []usecase.CartItemOutput{}, TotalAmount: "0.00"}, nil)
	s.cart.On("AddMovie", mock.Anything, int64(7), int64(42)).Return(usecase.CartItemOutput{ID: 9, MovieID: 42, Price: "10.00"}, nil)

	rec := s.do(http.MethodGet, "/api/v1/cart", auth, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":3,"items":[],"total_amount":"0.00"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/cart/items", auth, `{"movie_id":42}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var item usecase.CartItemOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, int64(42), item.MovieID)

	s.cart.AssertExpectations(t)
}

func TestCartHandler_Errors(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	s.cart.On("AddMovie", mock.Anything, int64(7), int64(42)).
		Return(usecase.CartItemOutput{}, usecase.NewHTTPError(http.StatusConflict, usecase.CodeAlreadyInCart, "movie already in cart"))

	rec := s.do(http.MethodPost, "/api/v1/cart/items", auth, `{"movie_id":42}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeErr(t, rec)
	assert.Equal(t, usecase.CodeAlreadyInCart, body.Code)
	assert.Equal(t, "movie already in cart", body.Error)

	rec = s.do(http.MethodPost, "/api/v1/cart/items", auth, `{"movie_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, usecase.CodeBadRequest, decodeErr(t, rec).Code)

	rec = s.do(http.MethodDelete, "/api/v1/cart/items/abc", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHandler_Delete(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	s.cart.On("RemoveItem", mock.Anything, int64(7), int64(5)).Return(nil)
	s.cart.On("RemoveItem", mock.Anything, int64(7), int64(6)).Return(usecase.NotFoundError("cart item"))
	s.cart.On("Clear", mock.Anything, int64(7)).Return(nil)

	rec := s.do(http.MethodDelete, "/api/v1/cart/items/5", auth, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(http.MethodDelete, "/api/v1/cart/items/6", auth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, usecase.CodeNotFound, decodeErr(t, rec).Code)

	rec = s.do(http.MethodDelete, "/api/v1/cart/items", auth, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	s.cart.AssertExpectations(t)
}

// =====================
// orders
// =====================

func TestOrderHandler_Checkout(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	s.checkout.On("Checkout", mock.Anything, int64(7)).Return(usecase.OrderOutput{ID: 11, Status: "PENDING", TotalAmount: "10.00"}, nil).Once()
	s.checkout.On("Checkout", mock.Anything, int64(7)).Return(usecase.OrderOutput{}, usecase.EmptyCartError()).Once()

	rec := s.do(http.MethodPost, "/api/v1/orders", auth, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	var out usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(11), out.ID)

	rec = s.do(http.MethodPost, "/api/v1/orders", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, usecase.CodeEmptyCart, decodeErr(t, rec).Code)
}

func TestOrderHandler_ListPassesPaging(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	s.orders.On("ListMine", mock.Anything, int64(7), 2, 5).Return(usecase.OrderListOutput{Items: []usecase.OrderOutput{}, Page: 2, PerPage: 5}, nil)
	s.orders.On("ListMine", mock.Anything, int64(7), 0, 0).Return(usecase.OrderListOutput{Items: []usecase.OrderOutput{}, Page: 1, PerPage: 20}, nil)

	rec := s.do(http.MethodGet, "/api/v1/orders?page=2&per_page=5", auth, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/orders", auth, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/orders?page=x", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.orders.AssertExpectations(t)
}

func TestOrderHandler_Cancel(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	s.orders.On("Cancel", mock.Anything, int64(7), int64(11)).Return(usecase.CancelOutput{Message: "Order 11 successfully cancelled"}, nil)
	s.orders.On("Cancel", mock.Anything, int64(7), int64(12)).Return(usecase.CancelOutput{}, usecase.InvalidStateError(model.OrderStatusPaid))

	rec := s.do(http.MethodPost, "/api/v1/orders/11/cancel", auth, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Order 11 successfully cancelled")

	rec = s.do(http.MethodPost, "/api/v1/orders/12/cancel", auth, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeErr(t, rec)
	assert.Equal(t, usecase.CodeInvalidState, body.Code)
	assert.Contains(t, body.Error, "PAID")
}

func TestOrderHandler_Pay(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	token := payment.Request{PaymentMethodID: "pm_card_visa", ReturnURL: "https://example.com/done"}

	s.orders.On("Pay", mock.Anything, int64(7), int64(11), token).
		Return(usecase.PayOutput{PaymentID: 3, PaymentStatus: "succeeded", TransactionID: "pi_1", Message: "Payment successful"}, nil)
	s.orders.On("Pay", mock.Anything, int64(7), int64(12), token).
		Return(usecase.PayOutput{PaymentStatus: "requires_action", RequiresAction: true, ClientSecret: "cs"}, nil)
	s.orders.On("Pay", mock.Anything, int64(7), int64(13), token).
		Return(usecase.PayOutput{}, usecase.PaymentDeclinedError(payment.CodeCardDeclined, "Your card was declined.", "Please try a different card.", true))
	s.orders.On("Pay", mock.Anything, int64(7), int64(14), token).
		Return(usecase.PayOutput{}, usecase.PaymentDeclinedError(payment.CodeInvalidRequest, "Invalid payment request: bad currency", "", false))

	body := `{"payment_method_id":"pm_card_visa","return_url":"https://example.com/done"}`

	rec := s.do(http.MethodPost, "/api/v1/orders/11/pay", auth, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	var paid usecase.PayOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, "pi_1", paid.TransactionID)

	rec = s.do(http.MethodPost, "/api/v1/orders/12/pay", auth, body)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requires_action":true`)

	rec = s.do(http.MethodPost, "/api/v1/orders/13/pay", auth, body)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	declined := decodeErr(t, rec)
	assert.Equal(t, usecase.CodePaymentDeclined, declined.Code)
	assert.Equal(t, payment.CodeCardDeclined, declined.Reason)
	assert.Equal(t, "Please try a different card.", declined.Suggestion)
	require.NotNil(t, declined.RetryAllowed)
	assert.True(t, *declined.RetryAllowed)

	rec = s.do(http.MethodPost, "/api/v1/orders/14/pay", auth, body)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retry_allowed":false`)

	s.orders.AssertExpectations(t)
}

func TestOrderHandler_PayCardFields(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	want := payment.Request{CardNumber: "4242424242424242", CardExpMonth: 12, CardExpYear: 2030, CardCVC: "123", SaveCard: true}
	s.orders.On("Pay", mock.Anything, int64(7), int64(11), want).Return(usecase.PayOutput{PaymentStatus: "succeeded"}, nil)

	rec := s.do(http.MethodPost, "/api/v1/orders/11/pay", auth,
		`{"card_number":"4242424242424242","card_exp_month":12,"card_exp_year":2030,"card_cvc":"123","save_card":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	s.orders.AssertExpectations(t)
}

func TestOrderHandler_UnknownErrorIsOpaque(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	s.orders.On("GetMine", mock.Anything, int64(7), int64(11)).Return(usecase.OrderOutput{}, errors.New("pq: relation \"orders\" does not exist"))

	rec := s.do(http.MethodGet, "/api/v1/orders/11", auth, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error","code":"internal"}`, rec.Body.String())
}

// =====================
// payments
// =====================

func TestPaymentHandler_ListAndDetail(t *testing.T) {
	s := newTestServer()
	auth := bearer(t, 7)
	s.payments.On("List", mock.Anything, int64(7), 1, 10).Return(usecase.PaymentListOutput{Items: []usecase.PaymentOutput{{ID: 1}}, Total: 1, Page: 1, PerPage: 10}, nil)
	s.payments.On("Get", mock.Anything, int64(7), int64(1)).Return(usecase.PaymentOutput{ID: 1, Amount: "10.00"}, nil)
	s.payments.On("Get", mock.Anything, int64(7), int64(2)).Return(usecase.PaymentOutput{}, usecase.NotFoundError("payment"))

	rec := s.do(http.MethodGet, "/api/v1/payments?page=1&per_page=10", auth, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/payments/1", auth, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount":"10.00"`)

	rec = s.do(http.MethodGet, "/api/v1/payments/2", auth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/payments/1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentHandler_WebhookWithoutJWT(t *testing.T) {
	s := newTestServer()
	payload := `{"id":"evt_1","type":"payment_intent.succeeded"}`
	s.webhook.On("Handle", mock.Anything, []byte(payload), "t=1,v1=abc").Return(usecase.WebhookOutput{Received: true}, nil)

	rec := s.do(http.MethodPost, "/api/v1/payments/webhook", "", payload, "Stripe-Signature", "t=1,v1=abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	s.webhook.AssertExpectations(t)
}

func TestPaymentHandler_WebhookRejected(t *testing.T) {
	s := newTestServer()
	s.webhook.On("Handle", mock.Anything, mock.Anything, "").
		Return(usecase.WebhookOutput{}, usecase.NewHTTPError(http.StatusBadRequest, usecase.CodeInvalidSignature, "invalid signature"))

	rec := s.do(http.MethodPost, "/api/v1/payments/webhook", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, usecase.CodeInvalidSignature, decodeErr(t, rec).Code)
}

func TestPaymentHandler_WebhookTooLarge(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodPost, "/api/v1/payments/webhook", "", strings.Repeat("a", maxWebhookBody+1), "Stripe-Signature", "x")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	s.webhook.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything, mock.Anything)
}
