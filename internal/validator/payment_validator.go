package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"theater/internal/payment"
)

var (
	cardNumberRe = regexp.MustCompile(`^[0-9]{13,19}$`)
	cvcRe        = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// 入力エラー。Fieldはjsonのキー名
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ValidatePaymentRequest は支払い入力の形式だけを見る。
// 正規化したリクエストを返す（カード番号の空白/ハイフン除去など）
func ValidatePaymentRequest(req payment.Request, now time.Time) (payment.Request, error) {
	req.PaymentMethodID = strings.TrimSpace(req.PaymentMethodID)
	req.CardNumber = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(req.CardNumber))
	req.CardCVC = strings.TrimSpace(req.CardCVC)
	req.ReturnURL = strings.TrimSpace(req.ReturnURL)

	// どちらか必須
	if req.PaymentMethodID == "" && req.CardNumber == "" {
		return req, invalid("payment_method_id", "payment_method_id or card_number is required")
	}

	if len(req.PaymentMethodID) > 255 {
		return req, invalid("payment_method_id", "too long")
	}

	// カード項目が1つでもあれば全部検査する。課金はトークン優先
	if !hasCardFields(req) {
		return req, nil
	}

	if !cardNumberRe.MatchString(req.CardNumber) {
		return req, invalid("card_number", "must be 13-19 digits")
	}
	if req.CardExpMonth < 1 || req.CardExpMonth > 12 {
		return req, invalid("card_exp_month", "must be between 1 and 12")
	}
	if req.CardExpYear < now.Year() {
		return req, invalid("card_exp_year", "card has expired")
	}
	// 今年なら月まで見る
	if req.CardExpYear == now.Year() && req.CardExpMonth < int(now.Month()) {
		return req, invalid("card_exp_month", "card has expired")
	}
	if !cvcRe.MatchString(req.CardCVC) {
		return req, invalid("card_cvc", "must be 3 or 4 digits")
	}

	return req, nil
}

func hasCardFields(req payment.Request) bool {
	return req.CardNumber != "" || req.CardExpMonth != 0 || req.CardExpYear != 0 || req.CardCVC != ""
}
