package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Stripeのテスト用トークン/カード番号と同じ挙動にする
const (
	MockDeclinedPaymentMethod = "pm_card_chargeDeclined"
	MockActionPaymentMethod   = "pm_card_authenticationRequired"
	mockDeclinedCard          = "4000000000000002"
	mockActionCard            = "4000002500003155"
)

// MockGateway は開発用。外部には一切通信しない
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) ProcessPayment(ctx context.Context, charge Charge) Result {
	pm := strings.TrimSpace(charge.Request.PaymentMethodID)
	card := normalizeCard(charge.Request.CardNumber)
	txID := "mock_" + uuid.NewString()

	switch {
	case pm == MockDeclinedPaymentMethod || card == mockDeclinedCard:
		return failure(CodeCardDeclined, "Your card was declined.", declinedSuggestion, true)
	case pm == MockActionPaymentMethod || card == mockActionCard:
		return Result{
			Success:        true,
			Status:         StatusRequiresAction,
			RequiresAction: true,
			TransactionID:  txID,
			ClientSecret:   txID + "_secret",
			NextAction:     map[string]any{"type": "use_stripe_sdk"},
		}
	}
	return Result{
		Success:       true,
		Status:        StatusSucceeded,
		TransactionID: txID,
	}
}

func normalizeCard(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(number)
}
