package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"theater/internal/domain/model"
	"theater/internal/payment"
	repo "theater/internal/repository"

	"go.uber.org/zap"
)

type WebhookParser interface {
	Parse(payload []byte, signature string) (payment.Event, error)
}

// イベントIDの重複排除。初回だけ true
type EventDeduplicator interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type WebhookOutput struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type WebhookUsecase struct {
	parser   WebhookParser
	dedup    EventDeduplicator
	tx       repo.TransactionManager
	users    repo.UserRepository
	settler  *Settler
	currency string // 小文字。空なら照合しない
	logger   *zap.Logger
}

func NewWebhookUsecase(parser WebhookParser, dedup EventDeduplicator, tx repo.TransactionManager, users repo.UserRepository, settler *Settler, currency string, logger *zap.Logger) *WebhookUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookUsecase{
		parser:   parser,
		dedup:    dedup,
		tx:       tx,
		users:    users,
		settler:  settler,
		currency: strings.ToLower(strings.TrimSpace(currency)),
		logger:   logger.Named("webhook"),
	}
}

func (u *WebhookUsecase) Handle(ctx context.Context, payload []byte, signature string) (WebhookOutput, error) {
	evt, err := u.parser.Parse(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			u.logger.Warn("rejected webhook with invalid signature", zap.Error(err))
			return WebhookOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidSignature, "invalid signature")
		}
		u.logger.Warn("malformed webhook payload", zap.Error(err))
		return WebhookOutput{}, NewHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid payload")
	}

	log := u.logger.With(zap.String("event_id", evt.ID), zap.String("type", evt.Type))

	first, err := u.dedup.MarkProcessed(ctx, evt.ID)
	if err != nil {
		//確定処理は条件付きUPDATEで守られているので続行する
		log.Warn("event dedup unavailable", zap.Error(err))
		first = true
	}
	if !first {
		log.Info("duplicate webhook event ignored")
		return WebhookOutput{Received: true, Duplicate: true}, nil
	}

	switch evt.Type {
	case payment.EventIntentSucceeded:
		if err := u.handleSucceeded(ctx, log, evt); err != nil {
			//再送を受けられるように戻す
			if ferr := u.dedup.Forget(ctx, evt.ID); ferr != nil {
				log.Warn("forget event failed", zap.Error(ferr))
			}
			return WebhookOutput{}, err
		}
	case payment.EventIntentFailed:
		log.Warn("payment failed",
			zap.Int64("order_id", evt.OrderID),
			zap.String("intent_id", evt.IntentID),
			zap.String("message", evt.Message),
		)
	case payment.EventIntentProcessing:
		log.Info("payment processing",
			zap.Int64("order_id", evt.OrderID),
			zap.String("intent_id", evt.IntentID),
		)
	default:
		log.Debug("unhandled webhook event")
	}

	return WebhookOutput{Received: true}, nil
}

// 注文が見つからない/金額不一致は再送しても直らないので確認応答して終わる
func (u *WebhookUsecase) handleSucceeded(ctx context.Context, log *zap.Logger, evt payment.Event) error {
	log = log.With(zap.Int64("order_id", evt.OrderID), zap.String("intent_id", evt.IntentID))
	if !evt.IsPaymentIntent() || evt.OrderID <= 0 {
		log.Warn("payment intent without order metadata")
		return nil
	}

	var (
		order    model.Order
		existing *model.Payment
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, evt.OrderID)
		if err != nil {
			return err
		}
		order = o
		if o.Status != model.OrderStatusPaid {
			return nil
		}
		p, err := r.Payments().FindByOrderID(ctx, o.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existing = &p
		return nil
	})
	if errors.Is(err, repo.ErrNotFound) {
		log.Warn("payment intent for unknown order")
		return nil
	}
	if err != nil {
		return dbError()
	}

	if order.UserID != evt.UserID {
		log.Error("payment intent user does not match order", zap.Int64("intent_user_id", evt.UserID))
		return nil
	}
	if u.currency != "" && !strings.EqualFold(evt.Currency, u.currency) {
		log.Error("payment intent currency does not match",
			zap.String("intent_currency", evt.Currency),
			zap.String("currency", u.currency),
		)
		return nil
	}
	if payment.ToMinorUnits(order.TotalAmount) != evt.Amount {
		log.Error("payment intent amount does not match order",
			zap.String("intent_amount", money(payment.FromMinorUnits(evt.Amount))),
			zap.String("order_total", money(order.TotalAmount)),
		)
		return nil
	}
	if order.Status.IsTerminal() {
		u.logSettledOrder(log, order, existing, evt.IntentID)
		return nil
	}

	paid, pay, err := u.settler.Settle(ctx, order.ID, evt.IntentID)
	if IsCode(err, CodeInvalidState) {
		//payと競合して負けた
		return nil
	}
	if err != nil {
		return err
	}

	email := ""
	if user, err := u.users.FindByID(ctx, order.UserID); err == nil && user != nil {
		email = user.Email
	}
	u.settler.NotifyPaid(ctx, paid, pay, email)
	return nil
}

// 同じintentなら再送なので問題なし。それ以外は課金済みで台帳に無い
func (u *WebhookUsecase) logSettledOrder(log *zap.Logger, order model.Order, existing *model.Payment, intentID string) {
	if order.Status == model.OrderStatusPaid && existing != nil &&
		existing.ExternalPaymentID != nil && *existing.ExternalPaymentID == intentID {
		log.Info("order already settled by this intent")
		return
	}
	externalID := ""
	if existing != nil && existing.ExternalPaymentID != nil {
		externalID = *existing.ExternalPaymentID
	}
	log.Warn("charge captured but order was not pending",
		zap.String("status", string(order.Status)),
		zap.String("transaction_id", intentID),
		zap.String("recorded_transaction_id", externalID),
	)
}
