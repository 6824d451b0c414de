package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripePaymentMethodAPI interface {
	New(params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
}

type stripeClients struct {
	intents        stripePaymentIntentAPI
	paymentMethods stripePaymentMethodAPI
}

// StripeConfig configures the StripeGateway.
type StripeConfig struct {
	APIKey    string
	Currency  string
	ReturnURL string
	Backends  *stripe.Backends
	Logger    *zap.Logger

	// 連続失敗でOPENにする回数と、OPENのまま待つ時間
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	Clients *stripeClients
}

// StripeGateway は PaymentIntent を作って即時confirmする
type StripeGateway struct {
	api       stripeClients
	currency  string
	returnURL string
	logger    *zap.Logger
	breaker   *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents:        sc.PaymentIntents,
			paymentMethods: sc.PaymentMethods,
		}
	}
	if clients.intents == nil || clients.paymentMethods == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	g := &StripeGateway{
		api:       clients,
		currency:  currency,
		returnURL: cfg.ReturnURL,
		logger:    logger.Named("stripe"),
	}
	g.breaker = gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g, nil
}

func (g *StripeGateway) ProcessPayment(ctx context.Context, charge Charge) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("stripe panic", zap.Int64("order_id", charge.OrderID), zap.Any("panic", r))
			res = failure(CodeUnexpected, "An unexpected error occurred while processing the payment.", "", true)
		}
	}()

	intent, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		pmID, err := g.resolvePaymentMethod(ctx, charge.Request)
		if err != nil {
			return nil, err
		}
		return g.api.intents.New(g.intentParams(ctx, charge, pmID))
	})
	if err != nil {
		res = ClassifyError(err)
		g.logger.Warn("stripe payment failed",
			zap.Int64("order_id", charge.OrderID),
			zap.String("code", res.ErrorCode),
			zap.Error(err),
		)
		return res
	}

	res = intentResult(intent)
	g.logger.Info("stripe payment intent",
		zap.Int64("order_id", charge.OrderID),
		zap.String("intent_id", intent.ID),
		zap.String("status", string(intent.Status)),
	)
	return res
}

// カード番号が来たときは先にPaymentMethodを作る
func (g *StripeGateway) resolvePaymentMethod(ctx context.Context, req Request) (string, error) {
	if id := strings.TrimSpace(req.PaymentMethodID); id != "" {
		return id, nil
	}

	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(req.CardNumber),
			ExpMonth: stripe.Int64(int64(req.CardExpMonth)),
			ExpYear:  stripe.Int64(int64(req.CardExpYear)),
			CVC:      stripe.String(req.CardCVC),
		},
	}
	params.Context = ctx

	pm, err := g.api.paymentMethods.New(params)
	if err != nil {
		return "", err
	}
	return pm.ID, nil
}

func (g *StripeGateway) intentParams(ctx context.Context, charge Charge, paymentMethodID string) *stripe.PaymentIntentParams {
	returnURL := charge.Request.ReturnURL
	if returnURL == "" {
		returnURL = g.returnURL
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(ToMinorUnits(charge.Amount)),
		Currency:           stripe.String(g.currency),
		PaymentMethod:      stripe.String(paymentMethodID),
		Confirm:            stripe.Bool(true),
		ConfirmationMethod: stripe.String(string(stripe.PaymentIntentConfirmationMethodAutomatic)),
		Description:        stripe.String(fmt.Sprintf("Order #%d - %d movies", charge.OrderID, charge.ItemCount)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("always"),
		},
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	if charge.Email != "" {
		params.ReceiptEmail = stripe.String(charge.Email)
	}
	if charge.Request.SaveCard {
		params.SetupFutureUsage = stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession))
	}

	params.Context = ctx
	//試行ごとに別キー。同じ試行の再送だけが重複排除される
	params.SetIdempotencyKey(fmt.Sprintf("order_%d_%s", charge.OrderID, uuid.NewString()))
	params.AddMetadata("order_id", strconv.FormatInt(charge.OrderID, 10))
	params.AddMetadata("user_id", strconv.FormatInt(charge.UserID, 10))
	params.AddMetadata("user_email", charge.Email)
	params.AddMetadata("movie_count", strconv.Itoa(charge.ItemCount))
	return params
}

func intentResult(intent *stripe.PaymentIntent) Result {
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return Result{
			Success:       true,
			Status:        StatusSucceeded,
			TransactionID: intent.ID,
		}
	case stripe.PaymentIntentStatusRequiresAction:
		return Result{
			Success:        true,
			Status:         StatusRequiresAction,
			RequiresAction: true,
			TransactionID:  intent.ID,
			ClientSecret:   intent.ClientSecret,
			NextAction:     nextAction(intent.NextAction),
		}
	case stripe.PaymentIntentStatusProcessing:
		return Result{
			Success:       true,
			Status:        StatusProcessing,
			TransactionID: intent.ID,
			ClientSecret:  intent.ClientSecret,
		}
	}

	res := failure(CodePaymentFailed, fmt.Sprintf("Payment failed with status: %s", intent.Status), "", true)
	res.TransactionID = intent.ID
	if pe := intent.LastPaymentError; pe != nil {
		if pe.Msg != "" {
			res.Message = pe.Msg
		}
		if pe.Type == stripe.ErrorTypeCard {
			res.ErrorCode = CodeCardDeclined
			res.Suggestion = declinedSuggestion
		}
	}
	return res
}

func nextAction(na *stripe.PaymentIntentNextAction) map[string]any {
	if na == nil {
		return nil
	}
	out := map[string]any{"type": string(na.Type)}
	if na.RedirectToURL != nil {
		out["redirect_to_url"] = map[string]any{
			"url":        na.RedirectToURL.URL,
			"return_url": na.RedirectToURL.ReturnURL,
		}
	}
	return out
}
