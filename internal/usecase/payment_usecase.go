package usecase

import (
	"context"
	"errors"
	"net/http"

	repo "theater/internal/repository"
)

// 決済履歴の参照だけ
type PaymentUsecase struct {
	tx repo.TransactionManager
}

func NewPaymentUsecase(tx repo.TransactionManager) *PaymentUsecase {
	return &PaymentUsecase{tx: tx}
}

func (u *PaymentUsecase) List(ctx context.Context, userID int64, page, perPage int) (PaymentListOutput, error) {
	if userID <= 0 {
		return PaymentListOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	page, perPage, err := normalizePage(page, perPage)
	if err != nil {
		return PaymentListOutput{}, err
	}

	out := PaymentListOutput{Items: []PaymentOutput{}, Page: page, PerPage: perPage}
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		payments, total, err := r.Payments().ListByUserID(ctx, userID, page, perPage)
		if err != nil {
			return dbError()
		}
		for _, p := range payments {
			out.Items = append(out.Items, toPaymentOutput(p))
		}
		out.Total = total
		return nil
	})
	if err != nil {
		return PaymentListOutput{}, err
	}
	return out, nil
}

func (u *PaymentUsecase) Get(ctx context.Context, userID int64, paymentID int64) (PaymentOutput, error) {
	if userID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if paymentID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid id")
	}

	var out PaymentOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByIDForUser(ctx, paymentID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("payment")
		}
		if err != nil {
			return dbError()
		}
		out = toPaymentOutput(p)
		return nil
	})
	if err != nil {
		return PaymentOutput{}, err
	}
	return out, nil
}
