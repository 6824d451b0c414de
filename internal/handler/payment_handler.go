package handler

import (
	"context"
	"io"
	"net/http"

	"theater/internal/config"
	"theater/internal/middleware"
	"theater/internal/repository"
	"theater/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Stripeの推奨上限
const maxWebhookBody = 65536

type PaymentUsecase interface {
	List(ctx context.Context, userID int64, page, perPage int) (usecase.PaymentListOutput, error)
	Get(ctx context.Context, userID int64, paymentID int64) (usecase.PaymentOutput, error)
}

type WebhookUsecase interface {
	Handle(ctx context.Context, payload []byte, signature string) (usecase.WebhookOutput, error)
}

type PaymentHandler struct {
	uc      PaymentUsecase
	webhook WebhookUsecase
}

func NewPaymentHandler(uc PaymentUsecase, webhook WebhookUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc, webhook: webhook}
}

// webhookだけJWTなし（署名で検証する）
func (h *PaymentHandler) RegisterRoutes(api *echo.Group, cfg config.Config, userRepo repository.UserRepository) {
	api.POST("/payments/webhook", h.handleWebhook)

	g := api.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

func (h *PaymentHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, perPage, ok := parsePage(c)
	if !ok {
		return badRequest(c, "invalid page")
	}

	out, err := h.uc.List(c.Request().Context(), userID, page, perPage)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Get(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 署名検証には生のbodyが要るのでBindしない
func (h *PaymentHandler) handleWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return badRequest(c, "invalid body")
	}
	if len(payload) > maxWebhookBody {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large", Code: usecase.CodeBadRequest})
	}

	out, err := h.webhook.Handle(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
