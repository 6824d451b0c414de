package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"theater/internal/notification"
	"theater/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// Gateway / Notifier mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) ProcessPayment(ctx context.Context, charge payment.Charge) payment.Result {
	args := m.Called(ctx, charge)
	return args.Get(0).(payment.Result)
}

// 非同期で呼ばれるので受け取ったものを保持するだけ
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.PaymentConfirmation
	err  error
}

func (n *recordingNotifier) Enqueue(ctx context.Context, msg notification.PaymentConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *recordingNotifier) sent() []notification.PaymentConfirmation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.PaymentConfirmation(nil), n.msgs...)
}

func (n *recordingNotifier) waitFor(t *testing.T, count int) []notification.PaymentConfirmation {
	t.Helper()
	assert.Eventually(t, func() bool { return len(n.sent()) >= count }, 2*time.Second, 10*time.Millisecond)
	return n.sent()
}

func succeeded(txID string) payment.Result {
	return payment.Result{Success: true, Status: payment.StatusSucceeded, TransactionID: txID}
}

func declined() payment.Result {
	return payment.Result{
		Success:      false,
		Status:       payment.StatusFailed,
		ErrorCode:    payment.CodeCardDeclined,
		Message:      "Your card was declined.",
		Suggestion:   "Please try a different card.",
		RetryAllowed: true,
	}
}

func tokenRequest() payment.Request {
	return payment.Request{PaymentMethodID: "pm_card_visa"}
}

func requireCode(t *testing.T, err error, code string) *HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	assert.Equal(t, code, he.Code)
	return he
}

// =====================
// fixture
// =====================

type fixture struct {
	store    *fakeStore
	users    fakeUsers
	gateway  *GatewayMock
	notifier *recordingNotifier

	carts    *CartUsecase
	checkout *CheckoutUsecase
	orders   *OrderUsecase
	payments *PaymentUsecase
	settler  *Settler
}

func newFixture() *fixture {
	store := newFakeStore()
	f := &fixture{
		store:    store,
		users:    fakeUsers{store},
		gateway:  &GatewayMock{},
		notifier: &recordingNotifier{},
	}
	f.settler = NewSettler(store, f.notifier, nil)
	f.carts = NewCartUsecase(store)
	f.checkout = NewCheckoutUsecase(store, nil)
	f.orders = NewOrderUsecase(store, f.users, f.gateway, f.settler, nil)
	f.orders.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	f.payments = NewPaymentUsecase(store)
	return f
}

// カートに入れてcheckoutまで
func (f *fixture) pendingOrder(t *testing.T, userID int64, movieIDs ...int64) OrderOutput {
	t.Helper()
	f.store.fillCart(userID, movieIDs...)
	out, err := f.checkout.Checkout(context.Background(), userID)
	require.NoError(t, err)
	return out
}
