package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

const (
	EventIntentSucceeded  = "payment_intent.succeeded"
	EventIntentFailed     = "payment_intent.payment_failed"
	EventIntentProcessing = "payment_intent.processing"
)

// Event はwebhookから必要な項目だけ取り出したもの
type Event struct {
	ID       string
	Type     string
	IntentID string
	Status   string
	Amount   int64
	Currency string
	OrderID  int64
	UserID   int64
	Message  string
}

func (e Event) IsPaymentIntent() bool {
	return e.IntentID != ""
}

type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Parse は署名を検証してからイベントを返す
func (v *WebhookVerifier) Parse(payload []byte, signature string) (Event, error) {
	if v.secret == "" || signature == "" {
		return Event{}, ErrInvalidSignature
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{ID: evt.ID, Type: string(evt.Type)}
	switch out.Type {
	case EventIntentSucceeded, EventIntentFailed, EventIntentProcessing:
	default:
		return out, nil
	}
	if evt.Data == nil {
		return Event{}, fmt.Errorf("event %s has no data", evt.ID)
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
		return Event{}, fmt.Errorf("decode payment intent: %w", err)
	}
	out.IntentID = intent.ID
	out.Status = string(intent.Status)
	out.Amount = intent.Amount
	out.Currency = string(intent.Currency)
	out.OrderID, _ = strconv.ParseInt(intent.Metadata["order_id"], 10, 64)
	out.UserID, _ = strconv.ParseInt(intent.Metadata["user_id"], 10, 64)
	if intent.LastPaymentError != nil {
		out.Message = intent.LastPaymentError.Msg
	}
	return out, nil
}
