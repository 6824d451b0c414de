package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"theater/internal/domain/model"
)

// 外に出すエラーコード
const (
	CodeNotFound                 = "not_found"
	CodeInvalidState             = "invalid_state"
	CodeEmptyCart                = "empty_cart"
	CodeAllItemsAlreadyPurchased = "all_items_already_purchased"
	CodeItemsUnavailable         = "items_unavailable"
	CodeDuplicatePendingOrder    = "duplicate_pending_order"
	CodePaymentValidation        = "payment_validation"
	CodePaymentDeclined          = "payment_declined"
	CodeInvalidSignature         = "invalid_signature"
	CodeAlreadyInCart            = "already_in_cart"
	CodeBadRequest               = "bad_request"
	CodeUnauthorized             = "unauthorized"
	CodeInternal                 = "internal"
)

type HTTPError struct {
	Status     int
	Code       string
	Message    string
	Suggestion string
	// 決済拒否のときだけ。ゲートウェイ側の分類コード
	Reason       string
	RetryAllowed bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func IsCode(err error, code string) bool {
	he, ok := AsHTTPError(err)
	return ok && he.Code == code
}

func NotFoundError(what string) error {
	return NewHTTPError(http.StatusNotFound, CodeNotFound, what+" not found")
}

// メッセージに現在の状態を必ず入れる
func InvalidStateError(current model.OrderStatus) error {
	return NewHTTPError(http.StatusConflict, CodeInvalidState,
		fmt.Sprintf("order is %s; only PENDING orders can be changed", current))
}

func EmptyCartError() error {
	return NewHTTPError(http.StatusBadRequest, CodeEmptyCart, "cart is empty")
}

func AllItemsAlreadyPurchasedError() error {
	return NewHTTPError(http.StatusConflict, CodeAllItemsAlreadyPurchased, "all movies in the cart have already been purchased")
}

func ItemsUnavailableError(names []string) error {
	return NewHTTPError(http.StatusBadRequest, CodeItemsUnavailable,
		"movies not available for purchase: "+strings.Join(names, ", "))
}

func DuplicatePendingOrderError() error {
	return NewHTTPError(http.StatusConflict, CodeDuplicatePendingOrder,
		"a pending order already contains some of these movies; pay or cancel it first")
}

func PaymentValidationError(message string) error {
	return NewHTTPError(http.StatusBadRequest, CodePaymentValidation, message)
}

func PaymentDeclinedError(reason, message, suggestion string, retryAllowed bool) error {
	return &HTTPError{
		Status:       http.StatusPaymentRequired,
		Code:         CodePaymentDeclined,
		Message:      message,
		Suggestion:   suggestion,
		Reason:       reason,
		RetryAllowed: retryAllowed,
	}
}

func dbError() error {
	return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
}
