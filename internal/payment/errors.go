package payment

import (
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v78"
)

const declinedSuggestion = "Please try a different card or contact your bank."

// ClassifyError はゲートウェイが投げたエラーを安定コードに変換する
func ClassifyError(err error) Result {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return failure(CodeGatewayUnavailable, "Payment service is temporarily unavailable.", "Please try again in a few minutes.", true)
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return failure(CodeUnexpected, "An unexpected error occurred while processing the payment.", "", true)
	}

	switch {
	case se.Type == stripe.ErrorTypeCard:
		msg := se.Msg
		if msg == "" {
			msg = "Your card was declined."
		}
		return failure(CodeCardDeclined, msg, declinedSuggestion, true)
	case se.HTTPStatusCode == http.StatusTooManyRequests || se.Code == stripe.ErrorCodeRateLimit:
		return failure(CodeRateLimited, "Too many payment requests. Please try again in a moment.", "", true)
	case se.HTTPStatusCode == http.StatusUnauthorized:
		return failure(CodeAuthenticationFailed, "Payment service authentication failed.", "", false)
	case se.Type == stripe.ErrorTypeInvalidRequest:
		return failure(CodeInvalidRequest, "Invalid payment request: "+se.Msg, "", false)
	default:
		return failure(CodeGatewayError, "Payment processing error. Please try again.", "", true)
	}
}

// カード拒否や不正リクエストは相手側の障害ではないのでブレーカーに数えない
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.Type == stripe.ErrorTypeCard {
			return true
		}
		if se.Type == stripe.ErrorTypeInvalidRequest && se.HTTPStatusCode != http.StatusTooManyRequests {
			return true
		}
	}
	return false
}
