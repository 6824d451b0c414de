// Package payment は外部決済ゲートウェイとの境界。
// ゲートウェイの例外はすべて Result に変換し、呼び出し側には返さない。
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Request はクライアントから受け取った支払い手段
type Request struct {
	PaymentMethodID string
	CardNumber      string
	CardExpMonth    int
	CardExpYear     int
	CardCVC         string
	SaveCard        bool
	ReturnURL       string
}

// Charge は1回の課金に必要な情報
type Charge struct {
	OrderID   int64
	UserID    int64
	Email     string
	ItemCount int
	Amount    decimal.Decimal
	Request   Request
}

type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusRequiresAction Status = "requires_action"
	StatusProcessing     Status = "processing"
	StatusFailed         Status = "failed"
)

// ゲートウェイ失敗の安定コード
const (
	CodeCardDeclined         = "card_declined"
	CodeRateLimited          = "rate_limited"
	CodeInvalidRequest       = "invalid_request"
	CodeAuthenticationFailed = "authentication_failed"
	CodeGatewayError         = "gateway_error"
	CodeGatewayUnavailable   = "gateway_unavailable"
	CodeUnexpected           = "unexpected_error"
	CodePaymentFailed        = "payment_failed"
)

type Result struct {
	Success        bool
	Status         Status
	RequiresAction bool
	TransactionID  string
	ClientSecret   string
	NextAction     map[string]any

	ErrorCode    string
	Message      string
	Suggestion   string
	RetryAllowed bool
}

// Settled は確定まで進んだかどうか。requires_action/processing は false
func (r Result) Settled() bool {
	return r.Success && r.Status == StatusSucceeded
}

// Pending はwebhook待ち
func (r Result) Pending() bool {
	return r.Success && (r.Status == StatusRequiresAction || r.Status == StatusProcessing)
}

func failure(code, message, suggestion string, retry bool) Result {
	return Result{
		Success:      false,
		Status:       StatusFailed,
		ErrorCode:    code,
		Message:      message,
		Suggestion:   suggestion,
		RetryAllowed: retry,
	}
}

// Gateway は外部決済の窓口。エラーは返さず Result で表す
type Gateway interface {
	ProcessPayment(ctx context.Context, charge Charge) Result
}
