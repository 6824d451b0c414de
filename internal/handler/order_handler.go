package handler

import (
	"context"
	"net/http"

	"theater/internal/config"
	"theater/internal/middleware"
	"theater/internal/payment"
	"theater/internal/repository"
	"theater/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CheckoutUsecase interface {
	Checkout(ctx context.Context, userID int64) (usecase.OrderOutput, error)
}

type OrderUsecase interface {
	ListMine(ctx context.Context, userID int64, page, perPage int) (usecase.OrderListOutput, error)
	GetMine(ctx context.Context, userID int64, orderID int64) (usecase.OrderOutput, error)
	Cancel(ctx context.Context, userID int64, orderID int64) (usecase.CancelOutput, error)
	Pay(ctx context.Context, userID int64, orderID int64, req payment.Request) (usecase.PayOutput, error)
}

type OrderHandler struct {
	checkout CheckoutUsecase
	uc       OrderUsecase
}

func NewOrderHandler(checkout CheckoutUsecase, uc OrderUsecase) *OrderHandler {
	return &OrderHandler{checkout: checkout, uc: uc}
}

type PayRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
	CardNumber      string `json:"card_number"`
	CardExpMonth    int    `json:"card_exp_month"`
	CardExpYear     int    `json:"card_exp_year"`
	CardCVC         string `json:"card_cvc"`
	SaveCard        bool   `json:"save_card"`
	ReturnURL       string `json:"return_url"`
}

func (h *OrderHandler) RegisterRoutes(api *echo.Group, cfg config.Config, userRepo repository.UserRepository) {
	g := api.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/pay", h.pay)
}

// カートから注文を作る。bodyは不要
func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.checkout.Checkout(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, perPage, ok := parsePage(c)
	if !ok {
		return badRequest(c, "invalid page")
	}

	out, err := h.uc.ListMine(c.Request().Context(), userID, page, perPage)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMine(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Cancel(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 確定したら200、3DSなどでwebhook待ちなら202
func (h *OrderHandler) pay(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req PayRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.Pay(c.Request().Context(), userID, id, payment.Request{
		PaymentMethodID: req.PaymentMethodID,
		CardNumber:      req.CardNumber,
		CardExpMonth:    req.CardExpMonth,
		CardExpYear:     req.CardExpYear,
		CardCVC:         req.CardCVC,
		SaveCard:        req.SaveCard,
		ReturnURL:       req.ReturnURL,
	})
	if err != nil {
		return writeError(c, err)
	}

	if !out.Settled() {
		return c.JSON(http.StatusAccepted, out)
	}
	return c.JSON(http.StatusOK, out)
}
